// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package apis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/singer-io/tap-zuora/catalog"
	"github.com/singer-io/tap-zuora/zuora"
)

// restZOQLFormat pins the date literal spelling accepted by the current
// object/export contract. Historical tap versions disagreed about this;
// the tests reference this constant as the single source of truth.
const restZOQLFormat = "2006-01-02T15:04:05Z"

// Rest drives the synchronous object/export interface. Each job covers a
// fixed time window and yields exactly one file. The interface has no
// deleted-record support.
type Rest struct {
	log    *zap.Logger
	client *zuora.Client
}

// NewRest creates the windowed driver.
func NewRest(log *zap.Logger, client *zuora.Client) *Rest {
	return &Rest{log: log.Named("rest"), client: client}
}

// Name implements ExportAPI.
func (rest *Rest) Name() string { return "REST" }

// Windowed implements ExportAPI.
func (rest *Rest) Windowed() bool { return true }

type restExportPayload struct {
	Format string `json:"Format"`
	Query  string `json:"Query"`
}

type restExportResponse struct {
	ID           string `json:"Id"`
	Status       string `json:"Status"`
	StatusReason string `json:"StatusReason"`
	FileID       string `json:"FileId"`
	Success      *bool  `json:"Success"`
}

func (rest *Rest) buildQuery(stream *catalog.Stream, params JobParams) string {
	fields := strings.Join(stream.QueryFields(stream.SelectedFields()), ", ")
	query := fmt.Sprintf("select %s from %s", fields, stream.TapStreamID)

	if stream.ReplicationKey != "" && !params.Start.IsZero() && !params.End.IsZero() {
		query += fmt.Sprintf(" where %s >= '%s'", stream.ReplicationKey, params.Start.UTC().Format(restZOQLFormat))
		query += fmt.Sprintf(" and %s < '%s'", stream.ReplicationKey, params.End.UTC().Format(restZOQLFormat))
	}

	rest.log.Info("executing query", zap.String("query", query))
	return query
}

// CreateJob implements ExportAPI.
func (rest *Rest) CreateJob(ctx context.Context, stream *catalog.Stream, params JobParams) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	payload := restExportPayload{Format: "csv", Query: rest.buildQuery(stream, params)}
	resp, err := rest.client.RestRequest(ctx, http.MethodPost, "v1/object/export", payload)
	if err != nil {
		return "", err
	}
	var job restExportResponse
	if err := resp.JSON(&job); err != nil {
		return "", err
	}
	return job.ID, nil
}

func (rest *Rest) jobStatus(ctx context.Context, jobID string) (*restExportResponse, error) {
	resp, err := rest.client.RestRequest(ctx, http.MethodGet, "v1/object/export/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	var job restExportResponse
	if err := resp.JSON(&job); err != nil {
		return nil, err
	}
	return &job, nil
}

// JobReady implements ExportAPI.
func (rest *Rest) JobReady(ctx context.Context, jobID string) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)

	job, err := rest.jobStatus(ctx, jobID)
	if err != nil {
		return false, err
	}
	switch job.Status {
	case "Completed":
		return true, nil
	case "Cancelled", "Failed":
		return false, ExportFailed.New("%s", job.StatusReason)
	default:
		return false, nil
	}
}

// FileIDs implements ExportAPI. A synchronous export always produces one
// file.
func (rest *Rest) FileIDs(ctx context.Context, jobID string) (_ []string, err error) {
	defer mon.Task()(&ctx)(&err)

	job, err := rest.jobStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return []string{job.FileID}, nil
}

// StreamFile implements ExportAPI.
func (rest *Rest) StreamFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	return rest.client.RestStream(ctx, "v1/files/"+fileID)
}

// ObjectStatus implements ExportAPI. A noSuchDataSource rejection means
// the object cannot be queried at all; any other API-level rejection of
// the probe also marks the object unavailable. Only transport failures
// propagate.
func (rest *Rest) ObjectStatus(ctx context.Context, name string) (_ Availability, err error) {
	defer mon.Task()(&ctx)(&err)

	payload := restExportPayload{Format: "csv", Query: fmt.Sprintf("select * from %s limit 1", name)}
	resp, err := rest.client.RestRequest(ctx, http.MethodPost, "v1/object/export", payload)
	if err != nil {
		if resp.NoSuchDataSource() {
			rest.log.Info("stream is not a queryable data source", zap.String("stream", name))
			return Unavailable, nil
		}
		if resp != nil {
			rest.log.Info("error probing status for stream, assuming unavailable",
				zap.String("stream", name), zap.Error(err))
			return Unavailable, nil
		}
		return Unavailable, err
	}

	var job restExportResponse
	if err := resp.JSON(&job); err != nil {
		return Unavailable, err
	}
	if job.Success == nil || !*job.Success {
		return Unavailable, nil
	}
	return Available, nil
}
