// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

// Package discover enumerates the tenant's object types, synthesizes a
// schema per object, and probes each one with a one-row export to find
// out whether it can actually be exported. Zuora's describe endpoints
// advertise more objects than are available.
package discover

import (
	"context"
	"strings"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/singer-io/tap-zuora/apis"
	"github.com/singer-io/tap-zuora/catalog"
	"github.com/singer-io/tap-zuora/zuora"
)

var (
	mon = monkit.Package()

	// Error is the error class for discovery errors.
	Error = errs.Class("discover")
)

// typeMap translates describe types to tap types. Anything missing here
// surfaces as an unsupported field.
var typeMap = map[string]string{
	"picklist": "string",
	"text":     "string",
	"boolean":  "boolean",
	"integer":  "integer",
	"decimal":  "number",
	"date":     "date",
	"datetime": "datetime",
}

// replicationKeys lists the candidate replication-key columns in priority
// order.
var replicationKeys = []string{
	"UpdatedDate",
	"TransactionDate",
	"UpdatedOn",
}

func isRequiredKey(name string) bool {
	if name == "Id" {
		return true
	}
	for _, key := range replicationKeys {
		if key == name {
			return true
		}
	}
	return false
}

func chooseReplicationKey(fields []fieldInfo) string {
	for _, key := range replicationKeys {
		for _, field := range fields {
			if field.Name == key {
				return key
			}
		}
	}
	return ""
}

// DiscoverStream builds the catalog entry for one object, or returns nil
// when the object cannot be exported.
func DiscoverStream(ctx context.Context, log *zap.Logger, client *zuora.Client, api apis.ExportAPI, streamName string) (_ *catalog.Stream, err error) {
	defer mon.Task()(&ctx)(&err)

	fields, err := describeFields(ctx, log, client, streamName)
	if err != nil {
		// An unreadable describe document excludes the object rather than
		// failing the whole discovery.
		if zuora.APIErrorStatus(err) != 0 {
			return nil, nil
		}
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	replicationKey := chooseReplicationKey(fields)
	replicationMethod := catalog.ReplicationFullTable
	if replicationKey != "" {
		replicationMethod = catalog.ReplicationIncremental
	}

	stream := &catalog.Stream{
		TapStreamID:   streamName,
		Name:          streamName,
		KeyProperties: []string{"Id"},
		Schema: catalog.Schema{
			Type:       "object",
			Properties: map[string]*catalog.Property{},
		},
		ReplicationKey:    replicationKey,
		ReplicationMethod: replicationMethod,
	}

	stream.WriteMetadata([]string{}, "table-key-properties", []string{"Id"})
	stream.WriteMetadata([]string{}, "forced-replication-method", replicationMethod)
	if replicationKey != "" {
		stream.WriteMetadata([]string{}, "valid-replication-keys", []string{replicationKey})
	}
	stream.WriteMetadata([]string{}, "inclusion", catalog.InclusionAvailable)

	for _, field := range fields {
		name := field.Name
		if field.Joined {
			parent, _, _ := strings.Cut(name, ".")
			name = strings.ReplaceAll(name, ".", "")
			stream.WriteMetadata([]string{"properties", name}, "tap-zuora.joined_object", parent)
		}

		property := &catalog.Property{}
		switch field.Type {
		case "date", "datetime":
			property.Types = []string{"string"}
			property.Format = "date-time"
		case "":
			// Keeps the unmapped type visible as an explicit null.
		default:
			property.Types = []string{field.Type}
		}
		if field.Supported {
			property.Types = append(property.Types, "null")
		}

		switch {
		case isRequiredKey(name):
			stream.WriteMetadata([]string{"properties", name}, "inclusion", catalog.InclusionAutomatic)
		case field.Supported && !(client.UseRest() && apis.FieldUnsupportedForRest(streamName, name)):
			stream.WriteMetadata([]string{"properties", name}, "inclusion", catalog.InclusionAvailable)
		default:
			stream.WriteMetadata([]string{"properties", name}, "inclusion", catalog.InclusionUnsupported)
		}

		stream.Schema.Properties[name] = property
	}

	// Describe lists more objects than are exportable, so probe with a
	// one-row job. AQuA probes additionally learn whether the object
	// supports the deleted column.
	status, err := api.ObjectStatus(ctx, streamName)
	if err != nil {
		return nil, err
	}
	switch status {
	case apis.Unavailable:
		log.Info("stream is unavailable to export", zap.String("stream", streamName))
		return nil, nil
	case apis.AvailableWithDeleted:
		stream.Schema.Properties["Deleted"] = &catalog.Property{Types: []string{"boolean"}}
		stream.WriteMetadata([]string{"properties", "Deleted"}, "inclusion", catalog.InclusionAvailable)
	}

	return stream, nil
}

// DiscoverStreams performs discovery for every object the tenant exposes.
func DiscoverStreams(ctx context.Context, log *zap.Logger, client *zuora.Client, api apis.ExportAPI) (_ *catalog.Catalog, err error) {
	defer mon.Task()(&ctx)(&err)

	names, err := listObjectNames(ctx, client)
	if err != nil {
		return nil, err
	}

	cat := &catalog.Catalog{}
	var failed []string
	for _, name := range names {
		stream, err := DiscoverStream(ctx, log, client, api, name)
		if err != nil {
			return nil, err
		}
		if stream == nil {
			failed = append(failed, name)
			continue
		}
		cat.Streams = append(cat.Streams, stream)
	}

	if len(failed) > 0 {
		log.Info("failed to discover streams", zap.Strings("streams", failed))
	}
	return cat, nil
}
