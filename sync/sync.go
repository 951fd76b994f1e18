// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

// Package sync drives the per-stream export state machine: it creates
// jobs through an export driver, polls them, consumes the resulting CSV
// files, and emits RECORD and STATE messages. Every state mutation is
// flushed before the next externally observable action, so an interrupted
// run resumes from the last checkpoint, mid-stream and mid-file included.
package sync

import (
	"context"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"storj.io/common/sync2"

	"github.com/singer-io/tap-zuora/apis"
	"github.com/singer-io/tap-zuora/catalog"
	"github.com/singer-io/tap-zuora/singer"
	"github.com/singer-io/tap-zuora/state"
)

var (
	mon = monkit.Package()

	// Error is the error class for sync errors.
	Error = errs.Class("sync")

	// ErrFileGone marks an export file that was garbage collected
	// upstream before it could be streamed. The next run recomputes the
	// window from the untouched bookmark.
	ErrFileGone = errs.Class("file deleted")

	// ErrCorruptExport marks a non-rectangular CSV file. The upstream
	// session is invalidated by bumping the stream's version.
	ErrCorruptExport = errs.Class("corrupt export")
)

// Defaults for the job lifecycle.
const (
	DefaultPollInterval = time.Minute
	DefaultJobTimeout   = 12 * time.Hour
	DefaultWindowSize   = 30 * 24 * time.Hour
)

// Config bounds the export job lifecycle.
type Config struct {
	PollInterval time.Duration
	JobTimeout   time.Duration
	WindowSize   time.Duration
}

// Syncer runs the sync for a catalog against one export driver. It is
// single-threaded: exactly one export job is in flight at a time.
type Syncer struct {
	log    *zap.Logger
	api    apis.ExportAPI
	out    *singer.Writer
	state  *state.State
	config Config

	nowFn func() time.Time
}

// New creates a Syncer. Zero config values take the defaults.
func New(log *zap.Logger, api apis.ExportAPI, out *singer.Writer, st *state.State, config Config) *Syncer {
	if config.PollInterval == 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.JobTimeout == 0 {
		config.JobTimeout = DefaultJobTimeout
	}
	if config.WindowSize == 0 {
		config.WindowSize = DefaultWindowSize
	}
	return &Syncer{
		log:    log,
		api:    api,
		out:    out,
		state:  st,
		config: config,
		nowFn:  time.Now,
	}
}

// TestingSetNow allows tests to control the clock.
func (syncer *Syncer) TestingSetNow(nowFn func() time.Time) {
	syncer.nowFn = nowFn
}

func (syncer *Syncer) writeState() error {
	return syncer.out.State(syncer.state)
}

// recoverable reports whether an error aborts only the current stream.
// Recoverable errors have already persisted whatever the next run needs to
// make progress.
func recoverable(err error) bool {
	return ErrFileGone.Has(err) ||
		ErrCorruptExport.Has(err) ||
		apis.ExportFailed.Has(err) ||
		apis.ExportTooLarge.Has(err)
}

// Run syncs every selected stream in catalog order, resuming from the
// stream named by the persisted state when there is one. Stream-level
// failures are collected; transport-level failures abort the run.
func (syncer *Syncer) Run(ctx context.Context, cat *catalog.Catalog) (err error) {
	defer mon.Task()(&ctx)(&err)

	starting := syncer.state.CurrentStream
	if starting != "" {
		syncer.log.Info("resuming sync", zap.String("stream", starting))
	} else {
		syncer.log.Info("starting sync")
	}

	var group errs.Group
	for _, stream := range cat.Streams {
		name := stream.TapStreamID
		if !stream.IsSelected() {
			syncer.log.Info("skipping stream, not selected", zap.String("stream", name))
			continue
		}

		if starting != "" {
			if starting != name {
				syncer.log.Info("skipping stream, already synced", zap.String("stream", name))
				continue
			}
			syncer.log.Info("resuming stream", zap.String("stream", name))
			starting = ""
		} else {
			syncer.log.Info("starting stream", zap.String("stream", name))
		}

		syncer.state.CurrentStream = name
		if err := syncer.writeState(); err != nil {
			return err
		}
		if err := syncer.out.Schema(name, stream.Schema, stream.KeyProperties); err != nil {
			return err
		}

		count, err := syncer.syncStream(ctx, stream)
		if err != nil {
			if recoverable(err) {
				syncer.log.Error("stream sync aborted", zap.String("stream", name), zap.Error(err))
				group.Add(err)
				continue
			}
			return err
		}

		syncer.state.Get(name).ClearTransient()
		if err := syncer.writeState(); err != nil {
			return err
		}
		syncer.log.Info("completed sync", zap.String("stream", name), zap.Int64("rows", count))
	}

	syncer.state.CurrentStream = ""
	if err := syncer.writeState(); err != nil {
		return err
	}
	syncer.log.Info("finished sync")

	return group.Err()
}

func (syncer *Syncer) syncStream(ctx context.Context, stream *catalog.Stream) (_ int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if syncer.api.Windowed() {
		return syncer.syncWindowedStream(ctx, stream)
	}
	return syncer.syncBatchStream(ctx, stream)
}

// pollJob waits for a job to finish within the polling budget and returns
// its file ids.
func (syncer *Syncer) pollJob(ctx context.Context, jobID string) (_ []string, err error) {
	defer mon.Task()(&ctx)(&err)

	deadline := syncer.nowFn().Add(syncer.config.JobTimeout)
	for syncer.nowFn().Before(deadline) {
		ready, err := syncer.api.JobReady(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if ready {
			return syncer.api.FileIDs(ctx, jobID)
		}
		if !sync2.Sleep(ctx, syncer.config.PollInterval) {
			return nil, Error.Wrap(ctx.Err())
		}
	}
	return nil, apis.ExportTimedOut.New("the job took longer than %d minutes",
		int64(syncer.config.JobTimeout/time.Minute))
}
