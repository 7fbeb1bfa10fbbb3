package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rentbase/idverify"
	"github.com/rentbase/idverify/kyc"
	"github.com/rentbase/idverify/model"
)

type verifyFlags struct {
	provider  string
	docType   string
	number    string
	firstName string
	lastName  string
	dob       string
	fileURL   string
	wait      time.Duration
}

// verifyCommands runs a single verification in process, without Redis.
// With --wait a pending answer is polled until it resolves.
func verifyCommands(app *idverifyInstance) *cobra.Command {
	f := &verifyFlags{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "verify an identity document against a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := idverify.NewOrchestrator(app.cnf, nil, nil)
			if err != nil {
				return err
			}

			req := model.VerificationRequest{
				Provider:         f.provider,
				DocumentType:     model.DocumentType(f.docType),
				DocumentNumber:   f.number,
				ClaimedFirstName: f.firstName,
				ClaimedLastName:  f.lastName,
				DateOfBirth:      f.dob,
				FileURL:          f.fileURL,
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			result := o.Verify(ctx, req)
			if result.Status == model.StatusPending && f.wait > 0 {
				waitCtx, cancel := context.WithTimeout(ctx, f.wait)
				defer cancel()
				interval := app.cnf.Verification.PollInterval()
				poller := kyc.NewPoller(o, interval, interval*4)
				result = poller.Await(waitCtx, result.ProviderName, result.ProviderReferenceID)
			}

			data, err := json.MarshalIndent(result, "", "    ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&f.provider, "provider", "", "provider to use, defaults to the configured default provider")
	cmd.Flags().StringVar(&f.docType, "type", string(model.DocumentNIN), "document type")
	cmd.Flags().StringVar(&f.number, "number", "", "document number")
	cmd.Flags().StringVar(&f.firstName, "first", "", "claimed first name")
	cmd.Flags().StringVar(&f.lastName, "last", "", "claimed last name")
	cmd.Flags().StringVar(&f.dob, "dob", "", "date of birth, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.fileURL, "file", "", "document image url for DOCUMENT verifications")
	cmd.Flags().DurationVar(&f.wait, "wait", 0, "how long to wait for a pending verification to resolve")

	return cmd
}
