package kyc

import (
	"context"

	"github.com/rentbase/idverify/model"
)

// Provider is the capability set every identity vendor adapter implements.
// Adapters report what the vendor returned and never decide acceptance.
type Provider interface {
	Name() string
	VerifyNIN(ctx context.Context, documentNumber, firstName, lastName, dob string) (*model.ProviderAnswer, error)
	VerifyPassport(ctx context.Context, documentNumber, firstName, lastName string) (*model.ProviderAnswer, error)
	VerifyDriversLicense(ctx context.Context, documentNumber, firstName, lastName string) (*model.ProviderAnswer, error)
	VerifyVotersCard(ctx context.Context, documentNumber, firstName, lastName string) (*model.ProviderAnswer, error)
	VerifyDocument(ctx context.Context, documentType, fileURL string, metadata map[string]interface{}) (*model.ProviderAnswer, error)
	CheckStatus(ctx context.Context, providerReferenceID string) (*model.ProviderAnswer, error)
}

// Constructor builds a provider instance, typically reading credentials.
type Constructor func() (Provider, error)

// Found is a convenience for adapters answering with a record.
func Found(first, last, reference string, raw []byte) *model.ProviderAnswer {
	return &model.ProviderAnswer{
		Status:              model.LookupFound,
		ProviderReferenceID: reference,
		Record: &model.VerifiedIdentityRecord{
			ReturnedFirstName:   first,
			ReturnedLastName:    last,
			ProviderReferenceID: reference,
			RawPayload:          raw,
		},
	}
}

// NoRecord is the explicit "vendor holds nothing for this number" answer.
func NoRecord(reference string) *model.ProviderAnswer {
	return &model.ProviderAnswer{Status: model.LookupNoRecord, ProviderReferenceID: reference}
}

// Pending is the answer for vendors that resolve asynchronously.
func Pending(reference string) *model.ProviderAnswer {
	return &model.ProviderAnswer{Status: model.LookupPending, ProviderReferenceID: reference}
}
