package cmd

import (
	"context"
	"fmt"

	"clipdeck/internal/download"
	"clipdeck/internal/formats"
	"clipdeck/internal/history"
	"clipdeck/internal/metrics"
	"clipdeck/internal/mirror"
	"clipdeck/internal/registry"
	"clipdeck/internal/toolexec"
)

// app is the set of components shared by the commands.
type app struct {
	runner    *toolexec.Exec
	ytdlp     toolexec.Tool
	ffmpeg    toolexec.Tool
	metrics   *metrics.Metrics
	formats   *formats.Lister
	downloads *download.Orchestrator
	files     *registry.Registry
	history   *history.Store // nil when disabled
}

// newApp wires components from cfg. Close must be called when done.
func newApp(ctx context.Context) (*app, error) {
	dir, err := cfg.ExpandDownloadDir()
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	a := &app{
		runner:  toolexec.NewExec(logger, m, cfg.Tools.Timeout.Duration),
		ytdlp:   toolexec.YtDlp(cfg.Tools.YtDlp),
		ffmpeg:  toolexec.FFmpeg(cfg.Tools.FFmpeg),
		metrics: m,
		files:   registry.New(dir),
	}
	a.formats = formats.NewLister(a.runner, a.ytdlp, logger)

	opts := []download.Option{download.WithMetrics(m)}

	if cfg.History.Enabled {
		path, err := cfg.HistoryPath()
		if err != nil {
			return nil, err
		}
		a.history, err = history.Open(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, download.WithRecorder(a.history))
	}

	if cfg.Mirror.Bucket != "" {
		mr, err := mirror.New(ctx, mirror.Config{
			Bucket:   cfg.Mirror.Bucket,
			Prefix:   cfg.Mirror.Prefix,
			Region:   cfg.Mirror.Region,
			Endpoint: cfg.Mirror.Endpoint,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("configuring mirror: %w", err)
		}
		opts = append(opts, download.WithUploader(mr))
	}

	a.downloads = download.New(dir, a.runner, a.ytdlp, a.ffmpeg, logger, opts...)
	return a, nil
}

func (a *app) Close() error {
	if a.history != nil {
		return a.history.Close()
	}
	return nil
}
