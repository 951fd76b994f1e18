// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

// Package apis implements the two interchangeable export protocol
// drivers: Aqua, Zuora's asynchronous bulk-export interface, and Rest,
// the synchronous time-windowed export interface. Both expose the same
// job lifecycle so the sync engine depends only on ExportAPI.
package apis

import (
	"context"
	"io"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/singer-io/tap-zuora/catalog"
	"github.com/singer-io/tap-zuora/zuora"
)

var (
	mon = monkit.Package()

	// Error is the error class for export driver errors.
	Error = errs.Class("export api")

	// ExportFailed is reported when the server marks a job failed or
	// cancelled, or rejects the submission.
	ExportFailed = errs.Class("export failed")

	// ExportTimedOut is reported when a job does not complete within the
	// polling budget. It is recoverable: the sync engine reacts by
	// shrinking the query window.
	ExportTimedOut = errs.Class("export timed out")

	// ExportTooLarge is reported when the query window cannot shrink any
	// further. Fatal for the stream.
	ExportTooLarge = errs.Class("export too large")
)

// Availability classifies the outcome of a probe export during discovery.
type Availability int

const (
	// Unavailable means the object cannot be exported at all.
	Unavailable Availability = iota
	// Available means the object exports, without deleted-record support.
	Available
	// AvailableWithDeleted means the object exports and supports the
	// deleted-column extension.
	AvailableWithDeleted
)

// JobParams bounds one export job. The batch driver uses Bookmark,
// WindowEnd and Version; the windowed driver uses Start and End.
type JobParams struct {
	Bookmark  string // incremental lower bound, ISO-8601
	WindowEnd string // upper bound set by timeout halving, ISO-8601
	Version   int64  // stable export-session label

	Start time.Time
	End   time.Time
}

// ExportAPI is the capability set shared by both drivers.
type ExportAPI interface {
	// Name identifies the driver in logs.
	Name() string
	// Windowed reports whether jobs are bounded by explicit time windows
	// (the synchronous REST driver) rather than a bookmark cursor.
	Windowed() bool
	// CreateJob submits an export job and returns its id.
	CreateJob(ctx context.Context, stream *catalog.Stream, params JobParams) (string, error)
	// JobReady reports whether the job completed. A failed or cancelled
	// job returns an ExportFailed error.
	JobReady(ctx context.Context, jobID string) (bool, error)
	// FileIDs lists the export files produced by a completed job.
	FileIDs(ctx context.Context, jobID string) ([]string, error)
	// StreamFile opens one export file for reading.
	StreamFile(ctx context.Context, fileID string) (io.ReadCloser, error)
	// ObjectStatus probes whether the object is exportable via a one-row
	// job.
	ObjectStatus(ctx context.Context, name string) (Availability, error)
}

// ForClient returns the driver matching the client's configured API type.
func ForClient(log *zap.Logger, client *zuora.Client) ExportAPI {
	if client.UseRest() {
		return NewRest(log, client)
	}
	return NewAqua(log, client)
}
