package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clinigraph/internal/codec"
	"clinigraph/internal/domain"
	"clinigraph/internal/engine"
	"clinigraph/internal/loader"
	"clinigraph/internal/metrics"
	"clinigraph/internal/service"
	"clinigraph/internal/watcher"
)

type replayOptions struct {
	snapshot string
	events   string
	out      string
	format   string
	watch    bool
}

func newReplayCmd(a *app) *cobra.Command {
	opts := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded execution event stream against a session snapshot",
		Long: `Replay loads an optional session snapshot into a fresh document instance,
applies every execution event from the events file in order and writes the
resulting session snapshot. With --watch the replay re-runs whenever either
input file changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.watch {
				return runReplay(a, opts, cmd.OutOrStdout())
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watchReplay(ctx, a, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.snapshot, "snapshot", "", "session snapshot file (.json, .yaml)")
	cmd.Flags().StringVar(&opts.events, "events", "", "execution event file (.ndjson, .jsonl, .json, .yaml)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&opts.format, "format", "", "output format: json or yaml (default: from --out extension, else json)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "re-run when the input files change")
	_ = cmd.MarkFlagRequired("events")

	return cmd
}

func (o *replayOptions) outputFormat() string {
	if o.format != "" {
		return o.format
	}
	if ext := filepath.Ext(o.out); ext != "" {
		return ext
	}
	return "json"
}

// runReplay performs one replay and writes the session snapshot
func runReplay(a *app, opts *replayOptions, stdout io.Writer) error {
	logger := a.logger

	exporter, err := codec.ForFormat(opts.outputFormat())
	if err != nil {
		return err
	}

	var initial *domain.SessionAnalysis
	if opts.snapshot != "" {
		initial, err = loader.LoadSnapshot(opts.snapshot)
		if err != nil {
			return err
		}
	}

	events, err := loader.LoadEvents(opts.events)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector("clinigraph")
	manager := engine.NewManager(a.engineOptions(collector))
	defer manager.CleanupAll()

	e := manager.CreateDocumentInstance(initial)
	applied := service.ReplayEvents(e, events)

	state := e.ExecutionState()
	logger.Info("replay complete",
		zap.String("session_id", e.SessionID()),
		zap.Int("events", len(events)),
		zap.Int("applied", applied),
		zap.String("qom_id", state.QOMID),
		zap.Int("completed_nodes", len(state.CompletedNodes)),
		zap.Int("active_nodes", len(state.ActiveNodes)))

	var buf bytes.Buffer
	if err := exporter.Export(e.CurrentSessionData(), &buf); err != nil {
		return fmt.Errorf("export session: %w", err)
	}

	if opts.out == "" {
		_, err = buf.WriteTo(stdout)
		return err
	}
	if err := os.WriteFile(opts.out, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	logger.Info("session written", zap.String("path", opts.out))
	return nil
}

// watchReplay replays once, then again on every change of the inputs
func watchReplay(ctx context.Context, a *app, opts *replayOptions, stdout io.Writer) error {
	logger := a.logger

	if err := runReplay(a, opts, stdout); err != nil {
		logger.Error("replay failed", zap.Error(err))
	}

	paths := []string{opts.events}
	if opts.snapshot != "" {
		paths = append(paths, opts.snapshot)
	}

	w := watcher.New(paths, func(path string) {
		logger.Info("input changed, replaying", zap.String("path", path))
		if err := runReplay(a, opts, stdout); err != nil {
			logger.Error("replay failed", zap.Error(err))
		}
	}, watcher.WithLogger(logger))

	err := w.Watch(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
