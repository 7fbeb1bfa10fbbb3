package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/rentbase/idverify/kyc"
	"github.com/rentbase/idverify/model"
	"github.com/sirupsen/logrus"
)

const (
	DojahName           = "dojah"
	DojahDefaultBaseURL = "https://api.dojah.io"
)

type DojahConfig struct {
	AppID     string
	SecretKey string
	BaseURL   string
}

// Dojah looks identities up against the Dojah KYC API. Numbered documents are
// answered synchronously, document analysis resolves through CheckStatus.
type Dojah struct {
	config DojahConfig
	client *http.Client
}

func NewDojah(cfg DojahConfig) (*Dojah, error) {
	if cfg.AppID == "" || cfg.SecretKey == "" {
		return nil, errors.New("dojah app id and secret key are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DojahDefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Dojah{config: cfg, client: &http.Client{}}, nil
}

// DojahConstructor adapts NewDojah for registration in a kyc.Registry.
func DojahConstructor(cfg DojahConfig) kyc.Constructor {
	return func() (kyc.Provider, error) {
		return NewDojah(cfg)
	}
}

func (d *Dojah) Name() string {
	return DojahName
}

func (d *Dojah) VerifyNIN(ctx context.Context, documentNumber, firstName, lastName, dob string) (*model.ProviderAnswer, error) {
	const op = "verify_nin"
	if err := kyc.RequireFields(op, map[string]string{"document_number": documentNumber, "dob": dob}); err != nil {
		return nil, err
	}

	var resp dojahNINResponse
	raw, found, err := d.get(ctx, op, "/api/v1/kyc/nin", url.Values{"nin": {documentNumber}}, &resp)
	if err != nil || !found {
		return noRecordOr(err)
	}
	return kyc.Found(resp.Entity.FirstName, resp.Entity.LastName, "", raw), nil
}

func (d *Dojah) VerifyPassport(ctx context.Context, documentNumber, firstName, lastName string) (*model.ProviderAnswer, error) {
	const op = "verify_passport"
	if err := kyc.RequireFields(op, map[string]string{"document_number": documentNumber, "last_name": lastName}); err != nil {
		return nil, err
	}

	var resp dojahPassportResponse
	raw, found, err := d.get(ctx, op, "/api/v1/kyc/passport", url.Values{
		"passport_number": {documentNumber},
		"surname":         {lastName},
	}, &resp)
	if err != nil || !found {
		return noRecordOr(err)
	}
	last := resp.Entity.LastName
	if last == "" {
		last = resp.Entity.Surname
	}
	return kyc.Found(resp.Entity.FirstName, last, "", raw), nil
}

func (d *Dojah) VerifyDriversLicense(ctx context.Context, documentNumber, firstName, lastName string) (*model.ProviderAnswer, error) {
	const op = "verify_drivers_license"
	if err := kyc.RequireFields(op, map[string]string{"document_number": documentNumber}); err != nil {
		return nil, err
	}

	var resp dojahLicenseResponse
	raw, found, err := d.get(ctx, op, "/api/v1/kyc/dl", url.Values{"license_number": {documentNumber}}, &resp)
	if err != nil || !found {
		return noRecordOr(err)
	}
	return kyc.Found(resp.Entity.FirstName, resp.Entity.LastName, resp.Entity.UUID, raw), nil
}

func (d *Dojah) VerifyVotersCard(ctx context.Context, documentNumber, firstName, lastName string) (*model.ProviderAnswer, error) {
	const op = "verify_voters_card"
	if err := kyc.RequireFields(op, map[string]string{"document_number": documentNumber}); err != nil {
		return nil, err
	}

	var resp dojahVINResponse
	raw, found, err := d.get(ctx, op, "/api/v1/kyc/vin", url.Values{"vin": {documentNumber}}, &resp)
	if err != nil || !found {
		return noRecordOr(err)
	}
	first, last := resp.Entity.FirstName, resp.Entity.LastName
	if first == "" && last == "" {
		first, last = splitFullName(resp.Entity.FullName)
	}
	return kyc.Found(first, last, "", raw), nil
}

func (d *Dojah) VerifyDocument(ctx context.Context, documentType, fileURL string, metadata map[string]interface{}) (*model.ProviderAnswer, error) {
	const op = "verify_document"
	if err := kyc.RequireFields(op, map[string]string{"file_url": fileURL}); err != nil {
		return nil, err
	}

	body, err := json.Marshal(dojahAnalysisRequest{
		InputType:    "url",
		InputValue:   fileURL,
		DocumentType: documentType,
		MetaData:     metadata,
	})
	if err != nil {
		return nil, kyc.NewValidationError(op, "metadata cannot be encoded", err)
	}

	req, err := d.newRequest(ctx, http.MethodPost, "/api/v1/document/analysis", nil, bytes.NewReader(body))
	if err != nil {
		return nil, kyc.NewProviderError(DojahName, op, "failed to create request", false, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp dojahAnalysisResponse
	if _, _, err := d.do(ctx, op, req, &resp); err != nil {
		return nil, err
	}
	if resp.Entity.ReferenceID == "" {
		return nil, kyc.NewProviderError(DojahName, op, "document analysis returned no reference", false, nil)
	}
	return kyc.Pending(resp.Entity.ReferenceID), nil
}

func (d *Dojah) CheckStatus(ctx context.Context, providerReferenceID string) (*model.ProviderAnswer, error) {
	const op = "check_status"
	if err := kyc.RequireFields(op, map[string]string{"provider_reference_id": providerReferenceID}); err != nil {
		return nil, err
	}

	req, err := d.newRequest(ctx, http.MethodGet, "/api/v1/document/analysis/"+url.PathEscape(providerReferenceID), nil, nil)
	if err != nil {
		return nil, kyc.NewProviderError(DojahName, op, "failed to create request", false, err)
	}

	var resp dojahAnalysisResponse
	raw, found, err := d.do(ctx, op, req, &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return kyc.NoRecord(providerReferenceID), nil
	}

	switch strings.ToLower(resp.Entity.Status) {
	case "pending", "processing", "":
		return kyc.Pending(providerReferenceID), nil
	case "failed", "rejected", "not_found":
		return kyc.NoRecord(providerReferenceID), nil
	default:
		return kyc.Found(resp.field("first_name"), resp.field("last_name"), providerReferenceID, raw), nil
	}
}

func (d *Dojah) get(ctx context.Context, op, path string, query url.Values, out interface{}) ([]byte, bool, error) {
	req, err := d.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, false, kyc.NewProviderError(DojahName, op, "failed to create request", false, err)
	}
	return d.do(ctx, op, req, out)
}

func (d *Dojah) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	base, err := url.Parse(d.config.BaseURL + path)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		base.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, base.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("AppId", d.config.AppID)
	req.Header.Set("Authorization", d.config.SecretKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx body into out. A 404 is reported as found == false.
func (d *Dojah) do(ctx context.Context, op string, req *http.Request, out interface{}) ([]byte, bool, error) {
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, false, kyc.ClassifyHTTPError(ctx, DojahName, op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, kyc.ClassifyHTTPError(ctx, DojahName, op, err)
	}

	logFields := logrus.Fields{
		"provider":    DojahName,
		"op":          op,
		"status_code": resp.StatusCode,
		"url":         req.URL.Path,
	}
	logrus.WithFields(logFields).Debugf("response from Dojah API: %s", string(bodyBytes))

	if resp.StatusCode == http.StatusNotFound {
		return bodyBytes, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr dojahErrorResponse
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error != "" {
			logFields["error"] = apiErr.Error
		}
		logrus.WithFields(logFields).Error("Unexpected response from Dojah API")
		return nil, false, kyc.ClassifyStatus(DojahName, op, resp.StatusCode, bodyBytes)
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return nil, false, kyc.NewProviderError(DojahName, op, "malformed response body", false, errors.Wrap(err, "error decoding Dojah response"))
	}
	return bodyBytes, true, nil
}

func noRecordOr(err error) (*model.ProviderAnswer, error) {
	if err != nil {
		return nil, err
	}
	return kyc.NoRecord(""), nil
}

func splitFullName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], parts[len(parts)-1]
	}
}
