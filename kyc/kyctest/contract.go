// Package kyctest holds the behaviour every kyc.Provider must share, so each
// adapter's tests can check it against the same contract.
package kyctest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentbase/idverify/kyc"
	"github.com/rentbase/idverify/model"
)

// Lookup is a document the provider under test is expected to hold.
type Lookup struct {
	DocumentType   model.DocumentType
	DocumentNumber string
	FirstName      string
	LastName       string
	DOB            string
}

// ContractSuite checks a provider against the shared adapter contract.
// Providers answering over HTTP must have their transport stubbed before Run.
type ContractSuite struct {
	Provider kyc.Provider
	Name     string
	Known    []Lookup
	// Unknown lookups must answer NO_RECORD.
	Unknown []Lookup
}

func (s *ContractSuite) Run(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	t.Run("name", func(t *testing.T) {
		assert.Equal(t, s.Name, s.Provider.Name())
	})

	t.Run("missing document number is a validation error", func(t *testing.T) {
		for _, dt := range []model.DocumentType{model.DocumentNIN, model.DocumentPassport, model.DocumentDriversLicense, model.DocumentVotersCard} {
			_, err := Call(ctx, s.Provider, Lookup{DocumentType: dt, FirstName: "Ada", LastName: "Lovelace", DOB: "1815-12-10"})
			require.Error(t, err, dt)
			assert.Equal(t, model.ErrorValidation, kyc.KindOf(err), dt)
		}
	})

	t.Run("nin without date of birth is a validation error", func(t *testing.T) {
		_, err := s.Provider.VerifyNIN(ctx, "70123456789", "Ada", "Lovelace", "")
		require.Error(t, err)
		assert.Equal(t, model.ErrorValidation, kyc.KindOf(err))
	})

	t.Run("document without file is a validation error", func(t *testing.T) {
		_, err := s.Provider.VerifyDocument(ctx, string(model.DocumentOther), "", nil)
		require.Error(t, err)
		assert.Equal(t, model.ErrorValidation, kyc.KindOf(err))
	})

	t.Run("status check without reference is a validation error", func(t *testing.T) {
		_, err := s.Provider.CheckStatus(ctx, "")
		require.Error(t, err)
		assert.Equal(t, model.ErrorValidation, kyc.KindOf(err))
	})

	for _, l := range s.Known {
		l := l
		t.Run("found "+string(l.DocumentType), func(t *testing.T) {
			answer, err := Call(ctx, s.Provider, l)
			require.NoError(t, err)
			require.NoError(t, answer.Validate())
			require.Equal(t, model.LookupFound, answer.Status)
			assert.Equal(t, l.FirstName, answer.Record.ReturnedFirstName)
			assert.Equal(t, l.LastName, answer.Record.ReturnedLastName)
		})
	}

	for _, l := range s.Unknown {
		l := l
		t.Run("no record "+string(l.DocumentType), func(t *testing.T) {
			answer, err := Call(ctx, s.Provider, l)
			require.NoError(t, err)
			require.NoError(t, answer.Validate())
			assert.Equal(t, model.LookupNoRecord, answer.Status)
			assert.Nil(t, answer.Record)
		})
	}
}

// Call dispatches a numbered lookup to the matching provider method.
func Call(ctx context.Context, p kyc.Provider, l Lookup) (*model.ProviderAnswer, error) {
	switch l.DocumentType {
	case model.DocumentNIN:
		return p.VerifyNIN(ctx, l.DocumentNumber, l.FirstName, l.LastName, l.DOB)
	case model.DocumentPassport:
		return p.VerifyPassport(ctx, l.DocumentNumber, l.FirstName, l.LastName)
	case model.DocumentDriversLicense:
		return p.VerifyDriversLicense(ctx, l.DocumentNumber, l.FirstName, l.LastName)
	case model.DocumentVotersCard:
		return p.VerifyVotersCard(ctx, l.DocumentNumber, l.FirstName, l.LastName)
	default:
		return p.VerifyDocument(ctx, string(l.DocumentType), "", nil)
	}
}
