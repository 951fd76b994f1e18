// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package discover

import (
	"context"
	"encoding/xml"
	"net/http"

	"go.uber.org/zap"

	"github.com/singer-io/tap-zuora/apis"
	"github.com/singer-io/tap-zuora/zuora"
)

// The describe endpoints answer XML. It is parsed into plain structs here
// and nothing downstream touches raw XML.

type describeList struct {
	Objects []struct {
		Name string `xml:"name"`
	} `xml:"object"`
}

type describeField struct {
	Name     string   `xml:"name"`
	Type     string   `xml:"type"`
	Contexts []string `xml:"contexts>context"`
}

type describeRelated struct {
	Name string `xml:"name"`
}

type describeObject struct {
	Fields  []describeField   `xml:"fields>field"`
	Related []describeRelated `xml:"related-objects>object"`
}

// fieldInfo is the normalized view of one exportable field.
type fieldInfo struct {
	Name      string
	Type      string // "" when the upstream type has no mapping
	Supported bool
	Joined    bool
}

func (field describeField) hasContext(name string) bool {
	for _, ctx := range field.Contexts {
		if ctx == name {
			return true
		}
	}
	return false
}

// listObjectNames fetches the tenant's object list.
func listObjectNames(ctx context.Context, client *zuora.Client) (_ []string, err error) {
	defer mon.Task()(&ctx)(&err)

	resp, err := client.RestRequest(ctx, http.MethodGet, "v1/describe", nil)
	if err != nil {
		return nil, err
	}

	var list describeList
	if err := xml.Unmarshal(resp.Body, &list); err != nil {
		return nil, Error.Wrap(err)
	}

	names := make([]string, 0, len(list.Objects))
	for _, object := range list.Objects {
		names = append(names, object.Name)
	}
	return names, nil
}

// describeFields fetches and normalizes an object's field metadata. A nil
// result without error means the object cannot be exported at all: one of
// its required keys is missing the export context.
func describeFields(ctx context.Context, log *zap.Logger, client *zuora.Client, streamName string) (_ []fieldInfo, err error) {
	defer mon.Task()(&ctx)(&err)

	resp, err := client.RestRequest(ctx, http.MethodGet, "v1/describe/"+streamName, nil)
	if err != nil {
		return nil, err
	}

	var object describeObject
	if err := xml.Unmarshal(resp.Body, &object); err != nil {
		return nil, Error.Wrap(err)
	}

	var fields []fieldInfo
	for _, field := range object.Fields {
		mappedType, mapped := typeMap[field.Type]
		if !mapped {
			log.Info("field has an unsupported data type",
				zap.String("stream", streamName),
				zap.String("field", field.Name),
				zap.String("type", field.Type))
		}

		if !field.hasContext("export") {
			if isRequiredKey(field.Name) {
				log.Info("skipping stream since required field is not available for export",
					zap.String("stream", streamName),
					zap.String("field", field.Name))
				return nil, nil
			}
			log.Info("field is not available for export",
				zap.String("stream", streamName),
				zap.String("field", field.Name))
			continue
		}

		fields = append(fields, fieldInfo{
			Name:      field.Name,
			Type:      mappedType,
			Supported: mapped,
		})
	}

	for _, related := range object.Related {
		if !apis.RelatedObjectSupported(related.Name) {
			log.Info("related object cannot be queried with stream",
				zap.String("stream", streamName),
				zap.String("related", related.Name))
			continue
		}
		fields = append(fields, fieldInfo{
			Name:      related.Name + ".Id",
			Type:      "string",
			Supported: true,
			Joined:    true,
		})
	}

	return fields, nil
}
