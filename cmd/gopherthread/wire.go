package main

import (
	"io"
	"log/slog"

	"github.com/user/gopherthread/internal/artifact"
	"github.com/user/gopherthread/internal/blob"
	"github.com/user/gopherthread/internal/config"
	"github.com/user/gopherthread/internal/runtime"
	"github.com/user/gopherthread/pkg/llm"
	"github.com/user/gopherthread/pkg/llm/openai"
)

// app bundles the collaborators built from configuration.
type app struct {
	service llm.Service
	runtime *runtime.Runtime
}

func newService(cfg *config.Config) llm.Service {
	return openai.New(&llm.Config{
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  cfg.OpenAI.APIKey,
	})
}

func newUploader(cfg *config.Config) (*blob.S3Uploader, error) {
	return blob.NewS3Uploader(blob.S3Config{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Endpoint:        cfg.S3.Endpoint,
		UsePathStyle:    cfg.S3.UsePathStyle,
		PresignTTL:      cfg.PresignTTL(),
	})
}

// newApp wires the runtime. Without a bucket, artifacts resolve to an inline
// error instead of a link.
func newApp(cfg *config.Config, svc llm.Service, console io.Writer) *app {
	var uploader artifact.Uploader
	if err := cfg.ValidateStorage(); err != nil {
		slog.Warn("download links disabled", "reason", err)
	} else if u, err := newUploader(cfg); err != nil {
		slog.Warn("download links disabled", "reason", err)
	} else {
		uploader = u
	}

	resolver := artifact.NewResolver(svc, uploader, cfg.StagingDir)
	return &app{
		service: svc,
		runtime: runtime.New(svc, resolver, console),
	}
}
