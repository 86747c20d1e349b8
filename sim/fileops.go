package sim

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// applyOperation materializes one manifest entry in the target tree.
// The target's parent directory is created first; concurrent entries
// never share a target path, so MkdirAll's idempotence is the only
// synchronization needed.
func applyOperation(op Operation, entry ManifestEntry) error {
	if err := os.MkdirAll(filepath.Dir(entry.Target), 0o755); err != nil {
		return err
	}
	switch op {
	case OpCopy:
		return copyFile(entry.Source, entry.Target)
	case OpLink:
		return linkFile(entry.Source, entry.Target)
	default:
		// Unreachable for configs built through NewConfig.
		return fmt.Errorf("unknown operation %q", op)
	}
}

// copyFile duplicates src to dst, overwriting dst if present and
// carrying over the source's mode and timestamps.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if err := os.Chmod(dst, info.Mode()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// linkFile symlinks dst to the absolute source path, replacing any
// existing target first. A missing source yields a broken link, not an
// error; link creation never touches the source.
func linkFile(src, dst string) error {
	abs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return err
		}
	}
	return os.Symlink(abs, dst)
}
