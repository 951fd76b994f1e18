// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package discover_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/singer-io/tap-zuora/apis"
	"github.com/singer-io/tap-zuora/catalog"
	"github.com/singer-io/tap-zuora/discover"
	"github.com/singer-io/tap-zuora/private/httpmock"
	"github.com/singer-io/tap-zuora/zuora"
)

const base = "https://rest.na.zuora.com/"

const accountDescribe = `<?xml version="1.0" encoding="UTF-8"?>
<object>
  <name>Account</name>
  <fields>
    <field>
      <name>Id</name>
      <type>text</type>
      <required>true</required>
      <contexts><context>export</context></contexts>
    </field>
    <field>
      <name>UpdatedDate</name>
      <type>datetime</type>
      <required>false</required>
      <contexts><context>export</context></contexts>
    </field>
    <field>
      <name>Balance</name>
      <type>decimal</type>
      <required>false</required>
      <contexts><context>export</context></contexts>
    </field>
    <field>
      <name>Mrr</name>
      <type>currency</type>
      <required>false</required>
      <contexts><context>export</context></contexts>
    </field>
    <field>
      <name>InternalOnly</name>
      <type>text</type>
      <required>false</required>
      <contexts><context>soap</context></contexts>
    </field>
    <field>
      <name>SequenceSetId</name>
      <type>text</type>
      <required>false</required>
      <contexts><context>export</context></contexts>
    </field>
  </fields>
  <related-objects>
    <object><name>DefaultPaymentMethod</name></object>
    <object><name>SubscriptionStatusHistory</name></object>
  </related-objects>
</object>`

func newTestSetup(t *testing.T, useRest bool) (*zuora.Client, apis.ExportAPI, *httpmock.Transport) {
	t.Helper()
	httpClient, transport := httpmock.NewClient()

	if useRest {
		transport.AddResponse(http.MethodGet, base+"v1/describe/Account",
			httpmock.Response{StatusCode: 200, Body: "<object/>"})
	} else {
		transport.AddResponse(http.MethodPost, base+"v1/batch-query/",
			httpmock.Response{StatusCode: 200, Body: `{"id":"probe"}`})
		transport.AddResponse(http.MethodDelete, base+"v1/batch-query/jobs/probe",
			httpmock.Response{StatusCode: 200, Body: `{}`})
	}

	client, err := zuora.NewClient(context.Background(), zaptest.NewLogger(t), zuora.Config{
		Username:  "user",
		Password:  "pass",
		PartnerID: "partner",
		UseRest:   useRest,
	}, httpClient)
	require.NoError(t, err)

	return client, apis.ForClient(zaptest.NewLogger(t), client), transport
}

func addAquaProbe(transport *httpmock.Transport, jobID, message string) {
	body := `{"id":"` + jobID + `"}`
	if message != "" {
		body = `{"message":"` + message + `"}`
	}
	transport.AddResponse(http.MethodPost, base+"v1/batch-query/",
		httpmock.Response{StatusCode: 200, Body: body})
	if message == "" {
		transport.AddResponse(http.MethodDelete, base+"v1/batch-query/jobs/"+jobID,
			httpmock.Response{StatusCode: 200, Body: `{}`})
	}
}

func TestDiscoverStream(t *testing.T) {
	client, api, transport := newTestSetup(t, false)
	log := zaptest.NewLogger(t)

	transport.AddResponse(http.MethodGet, base+"v1/describe/Account",
		httpmock.Response{StatusCode: 200, Body: accountDescribe})
	addAquaProbe(transport, "probe-1", "")

	stream, err := discover.DiscoverStream(context.Background(), log, client, api, "Account")
	require.NoError(t, err)
	require.NotNil(t, stream)

	require.Equal(t, "Account", stream.TapStreamID)
	require.Equal(t, []string{"Id"}, stream.KeyProperties)
	require.Equal(t, "UpdatedDate", stream.ReplicationKey)
	require.Equal(t, catalog.ReplicationIncremental, stream.ReplicationMethod)
	require.Equal(t, []string{"UpdatedDate"},
		stream.GetMetadata([]string{}, "valid-replication-keys"))
	require.Equal(t, catalog.ReplicationIncremental,
		stream.GetMetadata([]string{}, "forced-replication-method"))

	// Required keys are automatic, others available.
	require.Equal(t, catalog.InclusionAutomatic, stream.FieldInclusion("Id"))
	require.Equal(t, catalog.InclusionAutomatic, stream.FieldInclusion("UpdatedDate"))
	require.Equal(t, catalog.InclusionAvailable, stream.FieldInclusion("Balance"))

	// A field whose type has no mapping stays visible but unsupported.
	require.Equal(t, catalog.InclusionUnsupported, stream.FieldInclusion("Mrr"))
	require.Empty(t, stream.Schema.Properties["Mrr"].Types)

	// Fields without the export context are dropped entirely.
	require.NotContains(t, stream.Schema.Properties, "InternalOnly")

	// Date-times surface as formatted strings.
	require.Equal(t, []string{"string", "null"}, stream.Schema.Properties["UpdatedDate"].Types)
	require.Equal(t, "date-time", stream.Schema.Properties["UpdatedDate"].Format)

	// The supported related object contributes a joined column; the
	// denylisted one does not.
	require.Contains(t, stream.Schema.Properties, "DefaultPaymentMethodId")
	require.Equal(t, "DefaultPaymentMethod", stream.JoinedObject("DefaultPaymentMethodId"))
	require.NotContains(t, stream.Schema.Properties, "SubscriptionStatusHistoryId")

	// The clean AQuA probe adds the Deleted property.
	require.Contains(t, stream.Schema.Properties, "Deleted")
	require.Equal(t, []string{"boolean"}, stream.Schema.Properties["Deleted"].Types)
	require.Equal(t, catalog.InclusionAvailable, stream.FieldInclusion("Deleted"))
}

func TestDiscoverStreamUnavailable(t *testing.T) {
	client, api, transport := newTestSetup(t, false)

	transport.AddResponse(http.MethodGet, base+"v1/describe/Bogus",
		httpmock.Response{StatusCode: 200, Body: accountDescribe})
	addAquaProbe(transport, "", "There is a syntax error in one of the queries in the AQuA input")

	stream, err := discover.DiscoverStream(context.Background(), zaptest.NewLogger(t), client, api, "Bogus")
	require.NoError(t, err)
	require.Nil(t, stream)
}

func TestDiscoverStreamNoDeletedSupport(t *testing.T) {
	client, api, transport := newTestSetup(t, false)

	transport.AddResponse(http.MethodGet, base+"v1/describe/ContactSnapshot",
		httpmock.Response{StatusCode: 200, Body: accountDescribe})
	addAquaProbe(transport, "",
		"Objects included in the queries do not support the querying of deleted "+
			"records. Remove Deleted section in the JSON request and retry the request")

	stream, err := discover.DiscoverStream(context.Background(), zaptest.NewLogger(t), client, api, "ContactSnapshot")
	require.NoError(t, err)
	require.NotNil(t, stream)
	require.NotContains(t, stream.Schema.Properties, "Deleted")
}

func TestDiscoverStreamDescribeRejected(t *testing.T) {
	client, api, transport := newTestSetup(t, false)

	transport.AddResponse(http.MethodGet, base+"v1/describe/Hidden",
		httpmock.Response{StatusCode: 403, Body: "forbidden"})

	stream, err := discover.DiscoverStream(context.Background(), zaptest.NewLogger(t), client, api, "Hidden")
	require.NoError(t, err)
	require.Nil(t, stream)
}

func TestDiscoverStreamMissingRequiredKey(t *testing.T) {
	client, api, transport := newTestSetup(t, false)

	// Id lacks the export context, so the whole object is skipped.
	describe := `<object><fields><field>
		<name>Id</name><type>text</type><required>true</required>
		<contexts><context>soap</context></contexts>
	</field></fields></object>`
	transport.AddResponse(http.MethodGet, base+"v1/describe/Odd",
		httpmock.Response{StatusCode: 200, Body: describe})

	stream, err := discover.DiscoverStream(context.Background(), zaptest.NewLogger(t), client, api, "Odd")
	require.NoError(t, err)
	require.Nil(t, stream)
}

func TestDiscoverStreamRestUnsupportedField(t *testing.T) {
	client, api, transport := newTestSetup(t, true)

	transport.AddResponse(http.MethodGet, base+"v1/describe/Account",
		httpmock.Response{StatusCode: 200, Body: accountDescribe})
	transport.AddResponse(http.MethodPost, base+"v1/object/export",
		httpmock.Response{StatusCode: 200, Body: `{"Id":"exp-1","Success":true}`})

	stream, err := discover.DiscoverStream(context.Background(), zaptest.NewLogger(t), client, api, "Account")
	require.NoError(t, err)
	require.NotNil(t, stream)

	// SequenceSetId cannot be selected through the REST export.
	require.Equal(t, catalog.InclusionUnsupported, stream.FieldInclusion("SequenceSetId"))
	// The REST probe never adds Deleted.
	require.NotContains(t, stream.Schema.Properties, "Deleted")
}

func TestDiscoverStreams(t *testing.T) {
	client, api, transport := newTestSetup(t, false)

	transport.AddResponse(http.MethodGet, base+"v1/describe", httpmock.Response{
		StatusCode: 200,
		Body: `<objects>
			<object><name>Account</name></object>
			<object><name>Bogus</name></object>
		</objects>`,
	})
	transport.AddResponse(http.MethodGet, base+"v1/describe/Account",
		httpmock.Response{StatusCode: 200, Body: accountDescribe})
	addAquaProbe(transport, "probe-1", "")
	transport.AddResponse(http.MethodGet, base+"v1/describe/Bogus",
		httpmock.Response{StatusCode: 404, Body: "not found"})

	cat, err := discover.DiscoverStreams(context.Background(), zaptest.NewLogger(t), client, api)
	require.NoError(t, err)
	require.Len(t, cat.Streams, 1)
	require.Equal(t, "Account", cat.Streams[0].TapStreamID)
}
