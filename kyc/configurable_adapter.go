package kyc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rentbase/idverify/internal/request"
	"github.com/rentbase/idverify/model"
	"github.com/sirupsen/logrus"
)

type configurableProvider struct {
	config     ProviderConfig
	httpClient *http.Client
}

func newConfigurableProvider(config ProviderConfig) *configurableProvider {
	// the orchestrator bounds every call with its own deadline
	return &configurableProvider{
		config:     config,
		httpClient: &http.Client{},
	}
}

func (p *configurableProvider) Name() string {
	return p.config.Name
}

func (p *configurableProvider) VerifyNIN(ctx context.Context, documentNumber, firstName, lastName, dob string) (*model.ProviderAnswer, error) {
	if err := RequireFields("verify_nin", map[string]string{"document_number": documentNumber, "dob": dob}); err != nil {
		return nil, err
	}
	return p.lookup(ctx, "verify_nin", p.config.Endpoints.NIN, map[string]string{
		"document_number": documentNumber,
		"first_name":      firstName,
		"last_name":       lastName,
		"dob":             dob,
	})
}

func (p *configurableProvider) VerifyPassport(ctx context.Context, documentNumber, firstName, lastName string) (*model.ProviderAnswer, error) {
	return p.numbered(ctx, "verify_passport", p.config.Endpoints.Passport, documentNumber, firstName, lastName)
}

func (p *configurableProvider) VerifyDriversLicense(ctx context.Context, documentNumber, firstName, lastName string) (*model.ProviderAnswer, error) {
	return p.numbered(ctx, "verify_drivers_license", p.config.Endpoints.DriversLicense, documentNumber, firstName, lastName)
}

func (p *configurableProvider) VerifyVotersCard(ctx context.Context, documentNumber, firstName, lastName string) (*model.ProviderAnswer, error) {
	return p.numbered(ctx, "verify_voters_card", p.config.Endpoints.VotersCard, documentNumber, firstName, lastName)
}

func (p *configurableProvider) VerifyDocument(ctx context.Context, documentType, fileURL string, metadata map[string]interface{}) (*model.ProviderAnswer, error) {
	if err := RequireFields("verify_document", map[string]string{"file_url": fileURL}); err != nil {
		return nil, err
	}
	fields := map[string]string{
		"document_type": documentType,
		"file_url":      fileURL,
	}
	for key, value := range metadata {
		if s, ok := value.(string); ok {
			if _, taken := fields[key]; !taken {
				fields[key] = s
			}
		}
	}
	return p.lookup(ctx, "verify_document", p.config.Endpoints.Document, fields)
}

func (p *configurableProvider) CheckStatus(ctx context.Context, providerReferenceID string) (*model.ProviderAnswer, error) {
	if err := RequireFields("check_status", map[string]string{"provider_reference_id": providerReferenceID}); err != nil {
		return nil, err
	}
	if p.config.Endpoints.GetStatus == "" {
		return nil, NewConfigurationError(p.config.Name, "status checks are not configured", nil)
	}
	endpoint := strings.ReplaceAll(p.config.Endpoints.GetStatus, "{reference}", providerReferenceID)
	endpoint = strings.ReplaceAll(endpoint, "{provider_ref}", providerReferenceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+endpoint, nil)
	if err != nil {
		return nil, NewProviderError(p.config.Name, "check_status", "failed to create request", false, err)
	}
	p.addAuth(req)

	answer, err := p.do(ctx, "check_status", req)
	if err != nil {
		return nil, err
	}
	if answer.ProviderReferenceID == "" {
		answer.ProviderReferenceID = providerReferenceID
		if answer.Record != nil {
			answer.Record.ProviderReferenceID = providerReferenceID
		}
	}
	return answer, nil
}

func (p *configurableProvider) numbered(ctx context.Context, op, endpoint, documentNumber, firstName, lastName string) (*model.ProviderAnswer, error) {
	if err := RequireFields(op, map[string]string{"document_number": documentNumber}); err != nil {
		return nil, err
	}
	return p.lookup(ctx, op, endpoint, map[string]string{
		"document_number": documentNumber,
		"first_name":      firstName,
		"last_name":       lastName,
	})
}

func (p *configurableProvider) lookup(ctx context.Context, op, endpoint string, fields map[string]string) (*model.ProviderAnswer, error) {
	if endpoint == "" {
		return nil, NewConfigurationError(p.config.Name, op+" is not supported by this provider", nil)
	}

	bodyBytes, err := json.Marshal(p.buildRequestBody(fields))
	if err != nil {
		return nil, NewProviderError(p.config.Name, op, "failed to marshal request body", false, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, NewProviderError(p.config.Name, op, "failed to create request", false, err)
	}

	p.addAuth(req)
	contentType := p.config.RequestConfig.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)

	return p.do(ctx, op, req)
}

func (p *configurableProvider) do(ctx context.Context, op string, req *http.Request) (*model.ProviderAnswer, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, ClassifyHTTPError(ctx, p.config.Name, op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ClassifyHTTPError(ctx, p.config.Name, op, err)
	}

	logrus.WithFields(logrus.Fields{
		"provider":    p.config.Name,
		"op":          op,
		"status_code": resp.StatusCode,
	}).Debugf("provider response: %s", truncate(string(bodyBytes), 1024))

	if resp.StatusCode == http.StatusNotFound {
		return NoRecord(""), nil
	}
	if resp.StatusCode >= 300 {
		return nil, ClassifyStatus(p.config.Name, op, resp.StatusCode, bodyBytes)
	}

	return p.parseResponse(op, bodyBytes)
}

func (p *configurableProvider) addAuth(req *http.Request) {
	switch strings.ToLower(p.config.AuthType) {
	case "basic":
		req.Header.Set("Authorization", "Basic "+request.BasicAuth(p.config.APIKey, p.config.APISecret))
	case "header":
		header := p.config.AuthHeader
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, p.config.APIKey)
	default:
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}
}

func (p *configurableProvider) buildRequestBody(fields map[string]string) map[string]interface{} {
	body := make(map[string]interface{}, len(fields))
	mapping := p.config.RequestConfig.FieldMapping
	for key, value := range fields {
		if value == "" {
			continue
		}
		target := key
		if mapping != nil {
			mapped, ok := mapping[key]
			if !ok {
				continue
			}
			target = mapped
		}
		body[target] = value
	}
	return body
}

func (p *configurableProvider) parseResponse(op string, bodyBytes []byte) (*model.ProviderAnswer, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &data); err != nil {
		return nil, NewProviderError(p.config.Name, op, "malformed response body", false, errors.Wrap(err, "failed to parse response JSON"))
	}

	rm := p.config.ResponseMapping
	status, _ := getNestedValue(data, rm.StatusField).(string)
	reference, _ := getNestedValue(data, rm.ReferenceField).(string)

	switch {
	case matchesAny(status, rm.FoundValues):
		first, _ := getNestedValue(data, rm.FirstNameField).(string)
		last, _ := getNestedValue(data, rm.LastNameField).(string)
		return Found(first, last, reference, bodyBytes), nil
	case matchesAny(status, rm.NoRecordValues):
		return NoRecord(reference), nil
	case matchesAny(status, rm.PendingValues):
		if reference == "" {
			return nil, NewProviderError(p.config.Name, op, "pending response without a reference", false, nil)
		}
		return Pending(reference), nil
	case matchesAny(status, rm.FailedValues):
		return nil, NewProviderError(p.config.Name, op, "provider reported status "+status, false, nil)
	default:
		return nil, NewProviderError(p.config.Name, op, "unrecognised provider status "+status, false, nil)
	}
}

func getNestedValue(data map[string]interface{}, path string) interface{} {
	if path == "" {
		return nil
	}
	current := interface{}(data)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func matchesAny(value string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(c, value) {
			return true
		}
	}
	return false
}
