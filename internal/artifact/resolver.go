// Package artifact turns file references emitted by the assistant into
// shareable download links.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/user/gopherthread/internal/stream"
	"github.com/user/gopherthread/internal/types"
)

// Downloader fetches the content of a remote file.
type Downloader interface {
	FileContent(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Uploader publishes a local file and returns a time-limited download URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Resolver stages remote files locally and relays them to an Uploader.
type Resolver struct {
	downloader Downloader
	uploader   Uploader
	stagingDir string
}

// NewResolver creates a Resolver. An empty stagingDir means os.TempDir().
func NewResolver(downloader Downloader, uploader Uploader, stagingDir string) *Resolver {
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}
	return &Resolver{
		downloader: downloader,
		uploader:   uploader,
		stagingDir: stagingDir,
	}
}

// Resolve returns a markdown download line for the annotated file, or an
// inline error line if it could not be published. It never fails.
func (r *Resolver) Resolve(ctx context.Context, ann stream.Annotation) string {
	name := ann.DisplayName()

	url, err := r.publish(ctx, ann.FileID, name)
	if err != nil {
		slog.Error("failed to create download link", "file_id", ann.FileID, "name", name, "error", err)
		return fmt.Sprintf("\nError creating download link: %v\n", err)
	}

	slog.Info("download link created", "file_id", ann.FileID, "name", name)
	return fmt.Sprintf("\n\nDownload file: [%s](%s)\n", name, url)
}

func (r *Resolver) publish(ctx context.Context, fileID, name string) (string, error) {
	if fileID == "" {
		return "", fmt.Errorf("%w: annotation %q has no file id", types.ErrArtifact, name)
	}
	if r.uploader == nil {
		return "", fmt.Errorf("%w: no blob storage configured", types.ErrArtifact)
	}

	var url string
	err := withStagedFile(r.stagingDir, name, func(f *os.File) error {
		content, err := r.downloader.FileContent(ctx, fileID)
		if err != nil {
			return fmt.Errorf("%w: download %s: %w", types.ErrArtifact, fileID, err)
		}
		defer content.Close()

		if _, err := io.Copy(f, content); err != nil {
			return fmt.Errorf("%w: write %s: %w", types.ErrArtifact, name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("%w: close %s: %w", types.ErrArtifact, name, err)
		}

		url, err = r.uploader.Upload(ctx, f.Name())
		if err != nil {
			return fmt.Errorf("%w: upload %s: %w", types.ErrArtifact, name, err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, types.ErrArtifact) {
			err = fmt.Errorf("%w: %w", types.ErrArtifact, err)
		}
		return "", err
	}
	return url, nil
}
