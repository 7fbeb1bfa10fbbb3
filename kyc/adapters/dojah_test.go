package adapters_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentbase/idverify/kyc"
	"github.com/rentbase/idverify/kyc/adapters"
	"github.com/rentbase/idverify/kyc/kyctest"
	"github.com/rentbase/idverify/model"
)

const dojahBase = "https://dojah.test"

func newDojah(t *testing.T) *adapters.Dojah {
	t.Helper()
	d, err := adapters.NewDojah(adapters.DojahConfig{AppID: "app-1", SecretKey: "sk_test", BaseURL: dojahBase + "/"})
	require.NoError(t, err)
	return d
}

func authorized(req *http.Request) bool {
	return req.Header.Get("AppId") == "app-1" && req.Header.Get("Authorization") == "sk_test"
}

func lookupResponder(param string, known map[string]string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		if !authorized(req) {
			return httpmock.NewStringResponse(http.StatusUnauthorized, `{"error":"unauthorized"}`), nil
		}
		body, ok := known[req.URL.Query().Get(param)]
		if !ok {
			return httpmock.NewStringResponse(http.StatusNotFound, `{"error":"not found"}`), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, body), nil
	}
}

func registerDojahLookups() {
	httpmock.RegisterRegexpResponder(http.MethodGet, mustRegexp(`^https://dojah\.test/api/v1/kyc/nin\?`),
		lookupResponder("nin", map[string]string{
			"70123456789": `{"entity":{"first_name":"Ada","last_name":"Lovelace","nin":"70123456789"}}`,
		}))
	httpmock.RegisterRegexpResponder(http.MethodGet, mustRegexp(`^https://dojah\.test/api/v1/kyc/passport\?`),
		lookupResponder("passport_number", map[string]string{
			"A00000001": `{"entity":{"first_name":"Grace","surname":"Hopper","passport_number":"A00000001"}}`,
		}))
	httpmock.RegisterRegexpResponder(http.MethodGet, mustRegexp(`^https://dojah\.test/api/v1/kyc/dl\?`),
		lookupResponder("license_number", map[string]string{
			"DL000000001": `{"entity":{"uuid":"dl-uuid","firstName":"Alan","lastName":"Turing"}}`,
		}))
	httpmock.RegisterRegexpResponder(http.MethodGet, mustRegexp(`^https://dojah\.test/api/v1/kyc/vin\?`),
		lookupResponder("vin", map[string]string{
			"VC000000001": `{"entity":{"full_name":"Katherine Coleman Johnson"}}`,
		}))
}

func TestDojahContract(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	registerDojahLookups()

	suite := kyctest.ContractSuite{
		Provider: newDojah(t),
		Name:     adapters.DojahName,
		Known: []kyctest.Lookup{
			{DocumentType: model.DocumentNIN, DocumentNumber: "70123456789", FirstName: "Ada", LastName: "Lovelace", DOB: "1815-12-10"},
			{DocumentType: model.DocumentPassport, DocumentNumber: "A00000001", FirstName: "Grace", LastName: "Hopper"},
			{DocumentType: model.DocumentDriversLicense, DocumentNumber: "DL000000001", FirstName: "Alan", LastName: "Turing"},
			{DocumentType: model.DocumentVotersCard, DocumentNumber: "VC000000001", FirstName: "Katherine", LastName: "Johnson"},
		},
		Unknown: []kyctest.Lookup{
			{DocumentType: model.DocumentNIN, DocumentNumber: "00000000000", FirstName: "No", LastName: "Body", DOB: "1990-01-01"},
			{DocumentType: model.DocumentVotersCard, DocumentNumber: "VC999", FirstName: "No", LastName: "Body"},
		},
	}
	suite.Run(t)
}

func TestDojahRequiresCredentials(t *testing.T) {
	_, err := adapters.NewDojah(adapters.DojahConfig{AppID: "app-1"})
	require.Error(t, err)

	r := kyc.NewRegistry()
	r.Register(adapters.DojahName, adapters.DojahConstructor(adapters.DojahConfig{}))
	_, err = r.Get(adapters.DojahName)
	require.Error(t, err)
	assert.Equal(t, model.ErrorConfiguration, kyc.KindOf(err))
}

func TestDojahRegistryReturnsSameInstance(t *testing.T) {
	r := kyc.NewRegistry()
	r.Register(adapters.DojahName, adapters.DojahConstructor(adapters.DojahConfig{AppID: "app-1", SecretKey: "sk_test"}))

	first, err := r.Get("dojah")
	require.NoError(t, err)
	second, err := r.Get("dojah")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = r.Get("unknown-vendor")
	assert.Equal(t, model.ErrorConfiguration, kyc.KindOf(err))
}

func TestDojahDocumentAnalysis(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, dojahBase+"/api/v1/document/analysis",
		func(req *http.Request) (*http.Response, error) {
			if !authorized(req) || req.Header.Get("Content-Type") != "application/json" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, `{}`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"entity":{"reference_id":"doc-ref-1","status":"pending"}}`), nil
		})
	httpmock.RegisterResponder(http.MethodGet, dojahBase+"/api/v1/document/analysis/doc-ref-1",
		httpmock.ResponderFromMultipleResponses([]*http.Response{
			httpmock.NewStringResponse(http.StatusOK, `{"entity":{"reference_id":"doc-ref-1","status":"processing"}}`),
			httpmock.NewStringResponse(http.StatusOK, `{"entity":{"reference_id":"doc-ref-1","status":"completed","text_data":[{"field_key":"first_name","value":"Ada"},{"field_key":"last_name","value":"Lovelace"}]}}`),
		}))

	d := newDojah(t)
	ctx := context.Background()

	answer, err := d.VerifyDocument(ctx, "DOCUMENT", "https://files.example.com/bill.pdf", map[string]interface{}{"tenant": "t-1"})
	require.NoError(t, err)
	assert.Equal(t, model.LookupPending, answer.Status)
	assert.Equal(t, "doc-ref-1", answer.ProviderReferenceID)

	answer, err = d.CheckStatus(ctx, "doc-ref-1")
	require.NoError(t, err)
	assert.Equal(t, model.LookupPending, answer.Status)

	answer, err = d.CheckStatus(ctx, "doc-ref-1")
	require.NoError(t, err)
	require.Equal(t, model.LookupFound, answer.Status)
	assert.Equal(t, "Ada", answer.Record.ReturnedFirstName)
	assert.Equal(t, "Lovelace", answer.Record.ReturnedLastName)
	assert.Equal(t, "doc-ref-1", answer.Record.ProviderReferenceID)
}

func TestDojahErrorClassification(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	d := newDojah(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		responder httpmock.Responder
		kind      model.ErrorKind
		retryable bool
	}{
		{"unavailable", httpmock.NewStringResponder(http.StatusServiceUnavailable, `{"error":"down"}`), model.ErrorNetwork, true},
		{"gateway timeout", httpmock.NewStringResponder(http.StatusGatewayTimeout, ``), model.ErrorTimeout, true},
		{"unauthorized", httpmock.NewStringResponder(http.StatusUnauthorized, `{"error":"bad key"}`), model.ErrorProvider, false},
		{"malformed", httpmock.NewStringResponder(http.StatusOK, `not json`), model.ErrorProvider, false},
		{"connection refused", httpmock.NewErrorResponder(assert.AnError), model.ErrorNetwork, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpmock.RegisterRegexpResponder(http.MethodGet, mustRegexp(`^https://dojah\.test/api/v1/kyc/nin`), tt.responder)

			_, err := d.VerifyNIN(ctx, "70123456789", "Ada", "Lovelace", "1815-12-10")
			require.Error(t, err)
			assert.Equal(t, tt.kind, kyc.KindOf(err))
			assert.Equal(t, tt.retryable, kyc.IsRetryable(err))
		})
	}
}

func TestDojahThroughOrchestrator(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	registerDojahLookups()

	r := kyc.NewRegistry()
	r.Register(adapters.DojahName, adapters.DojahConstructor(adapters.DojahConfig{AppID: "app-1", SecretKey: "sk_test", BaseURL: dojahBase}))
	o, err := kyc.NewOrchestrator(r, kyc.Options{DefaultProvider: adapters.DojahName})
	require.NoError(t, err)

	result := o.Verify(context.Background(), model.VerificationRequest{
		DocumentType:     model.DocumentNIN,
		DocumentNumber:   "70123456789",
		ClaimedFirstName: "Ada",
		ClaimedLastName:  "Lovelace",
		DateOfBirth:      "1815-12-10",
	})

	assert.Equal(t, model.StatusVerified, result.Status)
	require.NotNil(t, result.Confidence)
	assert.Equal(t, 100, *result.Confidence)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}
