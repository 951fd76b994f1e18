// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package sync

import (
	"context"
	"errors"
	"io"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/singer-io/tap-zuora/catalog"
	"github.com/singer-io/tap-zuora/csvstream"
	"github.com/singer-io/tap-zuora/private/dates"
	"github.com/singer-io/tap-zuora/state"
	"github.com/singer-io/tap-zuora/zuora"
)

// syncFileIDs consumes the pending export files in order, emitting records
// and advancing the bookmark. A file id is popped from the persisted list
// only after its whole file is consumed, so a mid-file interruption
// re-streams that file; the bookmark filter keeps delivery at-least-once
// without walking backwards.
func (syncer *Syncer) syncFileIDs(ctx context.Context, stream *catalog.Stream, bookmark *state.Bookmark) (count int64, err error) {
	defer mon.Task()(&ctx)(&err)

	startDate := ""
	if stream.ReplicationKey != "" {
		startDate = bookmark.Value(stream.ReplicationKey)
	}

	for len(bookmark.FileIDs) > 0 {
		fileID := bookmark.FileIDs[0]

		body, err := syncer.api.StreamFile(ctx, fileID)
		if err != nil {
			if zuora.ErrNotFound.Has(err) {
				// The server garbage collected the file. The whole window is
				// unusable, but the bookmark still covers it; the next run
				// re-exports from there.
				bookmark.FileIDs = nil
				if err := syncer.writeState(); err != nil {
					return count, err
				}
				return count, ErrFileGone.New(
					"file %s for stream %s was deleted upstream; removing sync window from state, will resume from bookmark",
					fileID, stream.TapStreamID)
			}
			return count, err
		}

		n, err := syncer.syncFile(ctx, stream, bookmark, body, fileID, startDate)
		count += n
		if err != nil {
			if csvstream.ErrRowWidth.Has(err) {
				// A non-rectangular file means the upstream export session
				// is corrupted. Bumping the version starts a fresh session
				// on the next run.
				bookmark.FileIDs = nil
				bookmark.Version = syncer.nowFn().UTC().Unix()
				if writeErr := syncer.writeState(); writeErr != nil {
					return count, errs.Combine(err, writeErr)
				}
				return count, ErrCorruptExport.New(
					"file %s for stream %s is malformed: %v; will retry with a new export session",
					fileID, stream.TapStreamID, err)
			}
			return count, err
		}

		bookmark.FileIDs = bookmark.FileIDs[1:]
		if err := syncer.writeState(); err != nil {
			return count, err
		}
		syncer.log.Info("completed sync of file", zap.String("file_id", fileID),
			zap.String("stream", stream.TapStreamID), zap.Int64("rows", n))
	}
	return count, nil
}

// syncFile emits the records of one export file. Rows whose
// replication-key value is missing or older than the bookmark at the start
// of consumption are dropped.
func (syncer *Syncer) syncFile(ctx context.Context, stream *catalog.Stream, bookmark *state.Bookmark, body io.ReadCloser, fileID, startDate string) (count int64, err error) {
	defer mon.Task()(&ctx)(&err)
	defer func() { err = errs.Combine(err, body.Close()) }()

	reader, err := csvstream.NewRecordReader(body, stream)
	if err != nil {
		return 0, err
	}

	extracted := syncer.nowFn()
	sawDeleted := false
	for {
		if err := ctx.Err(); err != nil {
			return count, Error.Wrap(err)
		}

		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, err
		}

		if deleted, ok := record["Deleted"].(bool); ok && deleted {
			sawDeleted = true
		}

		if stream.ReplicationKey != "" {
			value, _ := record[stream.ReplicationKey].(string)
			if value == "" {
				// Records without a replication-key value cannot advance the
				// bookmark and would be re-fetched forever; drop them.
				continue
			}
			if dates.Compare(value, startDate) < 0 {
				continue
			}
			if err := syncer.out.Record(stream.TapStreamID, record, extracted); err != nil {
				return count, err
			}
			count++
			if dates.Compare(value, bookmark.Value(stream.ReplicationKey)) > 0 {
				bookmark.SetValue(stream.ReplicationKey, value)
			}
			if err := syncer.writeState(); err != nil {
				return count, err
			}
			continue
		}

		if err := syncer.out.Record(stream.TapStreamID, record, extracted); err != nil {
			return count, err
		}
		count++
	}

	if sawDeleted {
		syncer.log.Info("saw deleted records in export file", zap.String("file_id", fileID),
			zap.String("stream", stream.TapStreamID))
	}
	return count, nil
}
