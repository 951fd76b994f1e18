// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/singer-io/tap-zuora/apis"
	"github.com/singer-io/tap-zuora/catalog"
	"github.com/singer-io/tap-zuora/private/dates"
	"github.com/singer-io/tap-zuora/state"
)

// syncWindowedStream walks fixed time windows from the bookmark to the
// moment the sync started, one synchronous export job per window. A
// timed-out window is retried at half its length; once a window succeeds
// the length resets to the configured size.
func (syncer *Syncer) syncWindowedStream(ctx context.Context, stream *catalog.Stream) (count int64, err error) {
	defer mon.Task()(&ctx)(&err)

	bookmark := syncer.state.Get(stream.TapStreamID)

	// Files left over from an interrupted run are consumed before any new
	// job is created.
	if len(bookmark.FileIDs) > 0 {
		n, err := syncer.syncFileIDs(ctx, stream, bookmark)
		count += n
		if err != nil {
			return count, err
		}
	}

	if stream.ReplicationKey == "" {
		n, err := syncer.runWindowedJob(ctx, stream, bookmark, apis.JobParams{})
		return count + n, err
	}

	windowLength := syncer.config.WindowSize
	if bookmark.WindowLength > 0 {
		// A persisted window length means the previous run was mid-retry
		// after a timeout.
		windowLength = time.Duration(bookmark.WindowLength) * time.Second
	}

	syncStarted := syncer.nowFn().UTC()
	start, err := dates.Parse(bookmark.Value(stream.ReplicationKey))
	if err != nil {
		return count, Error.Wrap(err)
	}

	for start.Before(syncStarted) {
		end := start.Add(windowLength)
		if end.After(syncStarted) {
			end = syncStarted
		}

		n, err := syncer.runWindowedJob(ctx, stream, bookmark, apis.JobParams{Start: start, End: end})
		count += n
		if err != nil {
			if !apis.ExportTimedOut.Has(err) {
				return count, err
			}
			windowLength, err = syncer.halveWindowLength(stream, bookmark, windowLength)
			if err != nil {
				return count, err
			}
			syncer.log.Info("retrying timed out sync job",
				zap.String("stream", stream.TapStreamID),
				zap.Duration("window_length", windowLength))
			continue
		}

		start = end
		windowLength = syncer.config.WindowSize
		bookmark.WindowLength = 0
		bookmark.SetValue(stream.ReplicationKey, end.Format(dates.ISOFormat))
		if err := syncer.writeState(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// runWindowedJob creates one export job, waits for it, and consumes its
// file.
func (syncer *Syncer) runWindowedJob(ctx context.Context, stream *catalog.Stream, bookmark *state.Bookmark, params apis.JobParams) (_ int64, err error) {
	defer mon.Task()(&ctx)(&err)

	jobID, err := syncer.api.CreateJob(ctx, stream, params)
	if err != nil {
		return 0, err
	}

	fileIDs, err := syncer.pollJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	bookmark.FileIDs = fileIDs
	if err := syncer.writeState(); err != nil {
		return 0, err
	}

	return syncer.syncFileIDs(ctx, stream, bookmark)
}

// halveWindowLength shrinks the retry window, persisting it so an
// interrupted retry resumes at the same size.
func (syncer *Syncer) halveWindowLength(stream *catalog.Stream, bookmark *state.Bookmark, windowLength time.Duration) (time.Duration, error) {
	halvedSeconds := int(windowLength/time.Second) / 2
	if halvedSeconds < 1 {
		return 0, apis.ExportTooLarge.New(
			"export too large for smallest possible query window, cannot subdivide any further (%s: %s)",
			stream.TapStreamID, bookmark.Value(stream.ReplicationKey))
	}
	bookmark.WindowLength = halvedSeconds
	if err := syncer.writeState(); err != nil {
		return 0, err
	}
	return time.Duration(halvedSeconds) * time.Second, nil
}
