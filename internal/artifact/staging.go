package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/user/gopherthread/internal/types"
)

// withStagedFile creates name inside a fresh directory under root, hands the
// open file to fn, and removes the directory and everything in it before
// returning, whatever fn did. fn may close the file itself. Removal failures
// are logged, never returned.
func withStagedFile(root, name string, fn func(f *os.File) error) error {
	dir := filepath.Join(root, string(types.NewStagingID()))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("failed to remove staged file", "path", dir, "error", err)
		}
	}()

	f, err := os.OpenFile(filepath.Join(dir, name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create staged file: %w", err)
	}
	defer f.Close()

	return fn(f)
}
