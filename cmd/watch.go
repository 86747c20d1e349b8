package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/FOI-Bioinformatics/nanorunner/watch"
)

var watchDuration time.Duration // How long to observe; 0 = until interrupted

// watchCmd observes a delivery directory from the consumer side
var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Observe a delivery directory and report arrival cadence",
	Long: `watch sits on the receiving end of a simulation: it reports sequencing
files as they arrive in the given directory (including new barcode
subdirectories) and summarizes the observed inter-arrival cadence when
it stops.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		w, err := watch.New(args[0])
		if err != nil {
			logrus.Fatalf("Cannot watch %s: %v", args[0], err)
		}
		defer w.Close()

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)

		var timeout <-chan time.Time
		if watchDuration > 0 {
			timeout = time.After(watchDuration)
		}

		logrus.Infof("Watching %s (Ctrl-C to stop)", args[0])
		var arrivals []watch.Arrival
	loop:
		for {
			select {
			case a, ok := <-w.Arrivals():
				if !ok {
					break loop
				}
				arrivals = append(arrivals, a)
				if a.Barcode != "" {
					logrus.Infof("Arrived: %s/%s", a.Barcode, filepath.Base(a.Path))
				} else {
					logrus.Infof("Arrived: %s", filepath.Base(a.Path))
				}
			case err := <-w.Errors():
				logrus.Warnf("Watcher error: %v", err)
			case <-interrupt:
				break loop
			case <-timeout:
				break loop
			}
		}

		printCadence(watch.Cadence(arrivals))
	},
}

func printCadence(report watch.CadenceReport) {
	fmt.Printf("\nObserved %d arrival(s)\n", report.Count)
	if report.Count == 0 {
		return
	}
	barcodes := make([]string, 0, len(report.PerBarcode))
	for b := range report.PerBarcode {
		barcodes = append(barcodes, b)
	}
	sort.Strings(barcodes)
	for _, b := range barcodes {
		fmt.Printf("  %s: %d\n", b, report.PerBarcode[b])
	}
	if report.Count > 1 {
		fmt.Printf("Span: %s\n", report.Last.Sub(report.First).Round(time.Millisecond))
		fmt.Printf("Intervals: mean %s, min %s, max %s\n",
			report.MeanInterval.Round(time.Millisecond),
			report.MinInterval.Round(time.Millisecond),
			report.MaxInterval.Round(time.Millisecond))
	}
}

func init() {
	watchCmd.Flags().DurationVar(&watchDuration, "duration", 0, "Stop watching after this long (0 = until interrupted)")
	rootCmd.AddCommand(watchCmd)
}
