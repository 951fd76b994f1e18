// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package zuora

// AquaQuery is one ZOQL entry inside an AQuA batch-query job.
type AquaQuery struct {
	Name    string             `json:"name"`
	Query   string             `json:"query"`
	Type    string             `json:"type"`
	Deleted *AquaDeletedColumn `json:"deleted,omitempty"`
}

// AquaDeletedColumn asks AQuA to surface soft-deletes as an extra column.
type AquaDeletedColumn struct {
	Column string `json:"column"`
	Format string `json:"format"`
}

// AquaPayload is the body of an AQuA batch-query job submission.
type AquaPayload struct {
	Name            string      `json:"name"`
	Partner         string      `json:"partner"`
	Project         string      `json:"project"`
	Format          string      `json:"format"`
	Version         string      `json:"version"`
	Encrypted       string      `json:"encrypted"`
	UseQueryLabels  string      `json:"useQueryLabels"`
	DateTimeUTC     string      `json:"dateTimeUtc"`
	IncrementalTime string      `json:"incrementalTime,omitempty"`
	Queries         []AquaQuery `json:"queries"`
}

// MakeAquaPayload builds an AQuA job submission for a single ZOQL export
// query. Zuora support advises using the same value for both name and
// project to imply an incremental export.
func MakeAquaPayload(project, query, partnerID string, deleted bool) *AquaPayload {
	payload := &AquaPayload{
		Name:           project,
		Partner:        partnerID,
		Project:        project,
		Format:         "csv",
		Version:        "1.2",
		Encrypted:      "none",
		UseQueryLabels: "true",
		DateTimeUTC:    "true",
		Queries: []AquaQuery{{
			Name:  project,
			Query: query,
			Type:  "zoqlexport",
		}},
	}
	if deleted {
		payload.Queries[0].Deleted = &AquaDeletedColumn{
			Column: "Deleted",
			Format: "Boolean",
		}
	}
	return payload
}
