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
	"github.com/singer-io/tap-zuora/private/dates"
	"github.com/singer-io/tap-zuora/zuora"
)

// AQuA signals probe outcomes through well-known message strings rather
// than status codes.
const (
	aquaSyntaxError = "There is a syntax error in one of the queries in the AQuA input"

	aquaNoDeletedSupport = "Objects included in the queries do not support the querying of deleted " +
		"records. Remove Deleted section in the JSON request and retry the request"
)

// Aqua drives the asynchronous batch-query export interface. One job per
// stream covers everything from the bookmark forward, possibly split into
// multiple files.
type Aqua struct {
	log    *zap.Logger
	client *zuora.Client
}

// NewAqua creates the batch driver.
func NewAqua(log *zap.Logger, client *zuora.Client) *Aqua {
	return &Aqua{log: log.Named("aqua"), client: client}
}

// Name implements ExportAPI.
func (aqua *Aqua) Name() string { return "AQuA" }

// Windowed implements ExportAPI.
func (aqua *Aqua) Windowed() bool { return false }

type aquaBatch struct {
	FileID   string   `json:"fileId"`
	Segments []string `json:"segments"`
	Message  string   `json:"message"`
	Full     *bool    `json:"full"`
}

type aquaJobResponse struct {
	ID      string      `json:"id"`
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Batches []aquaBatch `json:"batches"`
}

// deletedRequested reports whether the job should carry the
// deleted-column declaration for this stream.
func (aqua *Aqua) deletedRequested(stream *catalog.Stream) bool {
	if !SupportsDeleted(stream.TapStreamID) {
		aqua.log.Info("deleted fields are not supported for stream, not selecting deleted records",
			zap.String("stream", stream.TapStreamID))
		return false
	}
	return stream.DeletedSelected()
}

// buildQuery renders the export ZOQL. When a timed-out job forced the
// window to shrink, the halved upper bound becomes a where clause so the
// retried export actually covers less data.
func (aqua *Aqua) buildQuery(stream *catalog.Stream, params JobParams) (string, error) {
	fields := strings.Join(stream.QueryFields(stream.SelectedFields()), ", ")
	query := fmt.Sprintf("select %s from %s", fields, stream.TapStreamID)

	if stream.ReplicationKey != "" {
		if params.WindowEnd != "" {
			end, err := dates.Parse(params.WindowEnd)
			if err != nil {
				return "", err
			}
			query += fmt.Sprintf(" where %s < '%s'",
				stream.ReplicationKey, end.Format(dates.ZOQLFormat))
		}
		query += fmt.Sprintf(" order by %s asc", stream.ReplicationKey)
	}

	aqua.log.Info("executing query", zap.String("query", query))
	return query, nil
}

// CreateJob implements ExportAPI. The job always carries incrementalTime
// when the stream is incremental; per the upstream documentation that
// prevents a full baseline export, so deletion tracking never actually
// activates. Preserved as a documented limitation.
func (aqua *Aqua) CreateJob(ctx context.Context, stream *catalog.Stream, params JobParams) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	query, err := aqua.buildQuery(stream, params)
	if err != nil {
		return "", err
	}

	project := fmt.Sprintf("%s_%d", stream.TapStreamID, params.Version)
	payload := zuora.MakeAquaPayload(project, query, aqua.client.PartnerID(), aqua.deletedRequested(stream))

	if stream.ReplicationKey != "" {
		bookmark, err := dates.Parse(params.Bookmark)
		if err != nil {
			return "", err
		}
		payload.IncrementalTime = dates.FormatParameter(bookmark)
	}

	aqua.log.Info("submitting aqua request",
		zap.String("partner", payload.Partner),
		zap.String("project", payload.Project),
		zap.String("incremental_time", payload.IncrementalTime))

	resp, err := aqua.client.AquaRequest(ctx, http.MethodPost, "v1/batch-query/", payload)
	if err != nil {
		return "", err
	}

	var job aquaJobResponse
	if err := resp.JSON(&job); err != nil {
		return "", err
	}

	if len(job.Batches) > 0 {
		fulls := make([]bool, 0, len(job.Batches))
		for _, batch := range job.Batches {
			fulls = append(fulls, batch.Full != nil && *batch.Full)
		}
		aqua.log.Info("received aqua response", zap.Bools("batch_fulls", fulls))
	} else {
		aqua.log.Info("received aqua response with no batches")
	}

	if job.Message != "" {
		return "", ExportFailed.New("%s", job.Message)
	}
	return job.ID, nil
}

func (aqua *Aqua) jobStatus(ctx context.Context, jobID string) (*aquaJobResponse, error) {
	resp, err := aqua.client.AquaRequest(ctx, http.MethodGet, "v1/batch-query/jobs/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	var job aquaJobResponse
	if err := resp.JSON(&job); err != nil {
		return nil, err
	}
	return &job, nil
}

// JobReady implements ExportAPI.
func (aqua *Aqua) JobReady(ctx context.Context, jobID string) (_ bool, err error) {
	defer mon.Task()(&ctx)(&err)

	job, err := aqua.jobStatus(ctx, jobID)
	if err != nil {
		return false, err
	}
	switch job.Status {
	case "completed":
		return true, nil
	case "failed":
		message := "unknown failure"
		if len(job.Batches) > 0 {
			message = job.Batches[0].Message
		}
		return false, ExportFailed.New("%s", message)
	default:
		return false, nil
	}
}

// FileIDs implements ExportAPI. A large export is segmented into several
// files.
func (aqua *Aqua) FileIDs(ctx context.Context, jobID string) (_ []string, err error) {
	defer mon.Task()(&ctx)(&err)

	job, err := aqua.jobStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(job.Batches) == 0 {
		return nil, Error.New("job %s has no batches", jobID)
	}
	if len(job.Batches[0].Segments) > 0 {
		return job.Batches[0].Segments, nil
	}
	return []string{job.Batches[0].FileID}, nil
}

// StreamFile implements ExportAPI.
func (aqua *Aqua) StreamFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	return aqua.client.AquaStream(ctx, "v1/file/"+fileID)
}

// ObjectStatus implements ExportAPI. The one-row probe job is deleted
// right after submission to keep the tenant's concurrent job count low
// during discovery.
func (aqua *Aqua) ObjectStatus(ctx context.Context, name string) (_ Availability, err error) {
	defer mon.Task()(&ctx)(&err)

	query := fmt.Sprintf("select * from %s limit 1", name)
	payload := zuora.MakeAquaPayload("discover", query, aqua.client.PartnerID(), false)

	resp, err := aqua.client.AquaRequest(ctx, http.MethodPost, "v1/batch-query/", payload)
	if err != nil {
		return Unavailable, err
	}
	var job aquaJobResponse
	if err := resp.JSON(&job); err != nil {
		return Unavailable, err
	}

	if job.ID != "" {
		if _, err := aqua.client.AquaRequest(ctx, http.MethodDelete, "v1/batch-query/jobs/"+job.ID, nil); err != nil {
			aqua.log.Warn("failed to delete probe job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}

	switch job.Message {
	case "":
		return AvailableWithDeleted, nil
	case aquaSyntaxError:
		return Unavailable, nil
	case aquaNoDeletedSupport:
		return Available, nil
	default:
		return Unavailable, Error.New("error probing %s: %s", name, job.Message)
	}
}
