package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DocumentType identifies the kind of identity proof being checked.
type DocumentType string

const (
	DocumentNIN            DocumentType = "NIN"
	DocumentPassport       DocumentType = "PASSPORT"
	DocumentDriversLicense DocumentType = "DRIVERS_LICENSE"
	DocumentVotersCard     DocumentType = "VOTERS_CARD"
	DocumentOther          DocumentType = "DOCUMENT" // utility bills, proof of address, etc.
)

// DocumentTypes lists every supported document type.
var DocumentTypes = []DocumentType{
	DocumentNIN,
	DocumentPassport,
	DocumentDriversLicense,
	DocumentVotersCard,
	DocumentOther,
}

// IsNumbered reports whether the document is identified by a printed number
// rather than an uploaded file.
func (d DocumentType) IsNumbered() bool {
	switch d {
	case DocumentNIN, DocumentPassport, DocumentDriversLicense, DocumentVotersCard:
		return true
	}
	return false
}

// VerificationStatus is the verdict of an orchestrated verification.
type VerificationStatus string

const (
	StatusVerified    VerificationStatus = "VERIFIED"
	StatusRejected    VerificationStatus = "REJECTED"
	StatusNeedsReview VerificationStatus = "NEEDS_REVIEW"
	StatusFailed      VerificationStatus = "FAILED"
	StatusPending     VerificationStatus = "PENDING"
)

// ErrorKind classifies why a verification could not be completed.
type ErrorKind string

const (
	ErrorValidation    ErrorKind = "VALIDATION_ERROR"
	ErrorConfiguration ErrorKind = "CONFIGURATION_ERROR"
	ErrorNetwork       ErrorKind = "NETWORK_ERROR"
	ErrorTimeout       ErrorKind = "PROVIDER_TIMEOUT"
	ErrorProvider      ErrorKind = "PROVIDER_ERROR"
	ErrorCancelled     ErrorKind = "CANCELLED"
)

// VerificationRequest is the input to a single verification attempt.
// DocumentNumber is used by numbered documents, FileURL and MetaData by DocumentOther.
type VerificationRequest struct {
	Provider         string                 `json:"provider,omitempty"`
	DocumentType     DocumentType           `json:"document_type"`
	DocumentNumber   string                 `json:"document_number,omitempty"`
	ClaimedFirstName string                 `json:"first_name"`
	ClaimedLastName  string                 `json:"last_name"`
	DateOfBirth      string                 `json:"dob,omitempty"` // YYYY-MM-DD, NIN only
	FileURL          string                 `json:"file_url,omitempty"`
	MetaData         map[string]interface{} `json:"meta_data,omitempty"`
}

// Claim returns the names the caller expects the data source to hold.
func (r VerificationRequest) Claim() NameClaim {
	return NameClaim{FirstName: r.ClaimedFirstName, LastName: r.ClaimedLastName}
}

// Validate checks that the fields required by the document type are present.
// Whitespace-only values count as missing.
func (r *VerificationRequest) Validate() error {
	numbered := r.DocumentType.IsNumbered()
	return validation.ValidateStruct(r,
		validation.Field(&r.DocumentType, validation.Required, validation.In(
			DocumentNIN, DocumentPassport, DocumentDriversLicense, DocumentVotersCard, DocumentOther,
		)),
		validation.Field(&r.DocumentNumber,
			validation.When(numbered, validation.Required, notBlank),
			validation.When(r.DocumentType == DocumentOther, validation.Empty.Error("must be blank for DOCUMENT verifications")),
		),
		validation.Field(&r.FileURL,
			validation.When(r.DocumentType == DocumentOther, validation.Required, notBlank),
			validation.When(numbered, validation.Empty.Error("must be blank for numbered documents")),
		),
		validation.Field(&r.ClaimedFirstName, validation.When(numbered, validation.Required, notBlank)),
		validation.Field(&r.ClaimedLastName, validation.When(numbered, validation.Required, notBlank)),
		validation.Field(&r.DateOfBirth,
			validation.When(r.DocumentType == DocumentNIN, validation.Required),
			validation.Date("2006-01-02").Error("must be formatted as YYYY-MM-DD"),
		),
	)
}

var notBlank = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s != "" && strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})

// NameClaim holds the claimed names remembered while a vendor answer is pending.
type NameClaim struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// IsEmpty reports whether no name was claimed.
func (c NameClaim) IsEmpty() bool {
	return c.FirstName == "" && c.LastName == ""
}

// VerifiedIdentityRecord is the normalized record a provider returns after a lookup.
type VerifiedIdentityRecord struct {
	ReturnedFirstName   string          `json:"returned_first_name"`
	ReturnedLastName    string          `json:"returned_last_name"`
	ProviderReferenceID string          `json:"provider_reference_id,omitempty"`
	RawPayload          json.RawMessage `json:"raw_payload,omitempty"`
}

// HasName reports whether the record carries any name to match against.
func (r *VerifiedIdentityRecord) HasName() bool {
	return r != nil && (r.ReturnedFirstName != "" || r.ReturnedLastName != "")
}

// LookupStatus is a provider's raw answer, before any matching policy is applied.
type LookupStatus string

const (
	LookupFound    LookupStatus = "FOUND"
	LookupNoRecord LookupStatus = "NO_RECORD"
	LookupPending  LookupStatus = "PENDING"
)

// ProviderAnswer is what every adapter returns from a verify or status call.
type ProviderAnswer struct {
	Status              LookupStatus            `json:"status"`
	Record              *VerifiedIdentityRecord `json:"record,omitempty"`
	ProviderReferenceID string                  `json:"provider_reference_id,omitempty"`
}

// Validate rejects answers that contradict their own status.
func (a *ProviderAnswer) Validate() error {
	switch a.Status {
	case LookupFound:
		if a.Record == nil {
			return errors.New("found answer without a record")
		}
	case LookupPending:
		if a.ProviderReferenceID == "" {
			return errors.New("pending answer without a provider reference")
		}
	case LookupNoRecord:
	default:
		return errors.New("unknown lookup status " + string(a.Status))
	}
	return nil
}

// VerificationResult is the output of an orchestrated verification and the
// shape a storage layer records for audit.
type VerificationResult struct {
	Status              VerificationStatus      `json:"status"`
	Confidence          *int                    `json:"confidence,omitempty"`
	ProviderName        string                  `json:"provider_name"`
	ProviderReferenceID string                  `json:"provider_reference_id,omitempty"`
	DocumentType        DocumentType            `json:"document_type,omitempty"`
	ErrorKind           ErrorKind               `json:"error_kind,omitempty"`
	Reason              string                  `json:"reason,omitempty"`
	Attempts            int                     `json:"attempts"`
	Record              *VerifiedIdentityRecord `json:"record,omitempty"`
	CheckedAt           time.Time               `json:"checked_at"`
}
