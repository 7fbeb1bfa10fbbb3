package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rentbase/idverify"
)

func providersCommands(app *idverifyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "list the verification providers this configuration can reach",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := idverify.BuildRegistry(app.cnf)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tDEFAULT")
			for _, name := range registry.ListAvailable() {
				def := ""
				if name == app.cnf.Verification.DefaultProvider {
					def = "*"
				}
				fmt.Fprintf(w, "%s\t%s\n", name, def)
			}
			return w.Flush()
		},
	}
	return cmd
}
