// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/singer-io/tap-zuora/apis"
	"github.com/singer-io/tap-zuora/catalog"
	"github.com/singer-io/tap-zuora/private/dates"
	"github.com/singer-io/tap-zuora/state"
)

// syncBatchStream runs the batch-export cursor for one stream. A single
// job covers everything from the bookmark forward; when the job times out
// the window is halved, persisted as current_window_end, and the job is
// retried until it completes or cannot shrink further.
func (syncer *Syncer) syncBatchStream(ctx context.Context, stream *catalog.Stream) (count int64, err error) {
	defer mon.Task()(&ctx)(&err)

	bookmark := syncer.state.Get(stream.TapStreamID)
	for {
		n, err := syncer.runBatchAttempt(ctx, stream, bookmark)
		count += n
		if err == nil || !apis.ExportTimedOut.Has(err) {
			return count, err
		}
		if stream.ReplicationKey == "" {
			// A full-table export has no window to shrink.
			return count, err
		}
		if err := syncer.halveBatchWindow(stream, bookmark); err != nil {
			return count, err
		}
		syncer.log.Info("retrying timed out sync job",
			zap.String("stream", stream.TapStreamID),
			zap.String("current_window_end", bookmark.CurrentWindowEnd))
	}
}

func (syncer *Syncer) runBatchAttempt(ctx context.Context, stream *catalog.Stream, bookmark *state.Bookmark) (_ int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(bookmark.FileIDs) == 0 {
		jobID, err := syncer.api.CreateJob(ctx, stream, apis.JobParams{
			Bookmark:  bookmark.Value(stream.ReplicationKey),
			WindowEnd: bookmark.CurrentWindowEnd,
			Version:   bookmark.Version,
		})
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
	}

	windowEnd := bookmark.CurrentWindowEnd
	count, err := syncer.syncFileIDs(ctx, stream, bookmark)
	if err != nil {
		return count, err
	}

	// Once the whole window is consumed its upper bound becomes the
	// bookmark, so an empty window still advances the cursor.
	if windowEnd != "" && stream.ReplicationKey != "" {
		if dates.Compare(windowEnd, bookmark.Value(stream.ReplicationKey)) > 0 {
			bookmark.SetValue(stream.ReplicationKey, windowEnd)
		}
		bookmark.CurrentWindowEnd = ""
		if err := syncer.writeState(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// halveBatchWindow moves current_window_end to the midpoint between the
// bookmark and the previous upper bound (or now, on the first timeout).
func (syncer *Syncer) halveBatchWindow(stream *catalog.Stream, bookmark *state.Bookmark) error {
	start, err := dates.Parse(bookmark.Value(stream.ReplicationKey))
	if err != nil {
		return Error.Wrap(err)
	}

	end := syncer.nowFn().UTC()
	if bookmark.CurrentWindowEnd != "" {
		end, err = dates.Parse(bookmark.CurrentWindowEnd)
		if err != nil {
			return Error.Wrap(err)
		}
	}

	halved := end.Add(-end.Sub(start) / 2)
	if !halved.After(start) {
		return apis.ExportTooLarge.New(
			"export too large for smallest possible query window, cannot subdivide any further (%s: %s)",
			stream.TapStreamID, bookmark.Value(stream.ReplicationKey))
	}

	bookmark.CurrentWindowEnd = halved.Format(dates.ISOFormat)
	return syncer.writeState()
}
