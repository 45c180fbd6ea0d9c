package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/mirage/pkg/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario>",
		Short: "Check a scenario without serving it",
		Long: `Validate loads a scenario file or directory, builds its schema and route
table, and loads its fixtures into a scratch store. Every problem found in the
declarations is reported at once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := sc.Validate(); err != nil {
				return fmt.Errorf("invalid scenario %s:\n%w", args[0], err)
			}
			routes, err := sc.RouteTable().Routes()
			if err != nil {
				return err
			}
			fixtures := 0
			for _, set := range sc.Fixtures {
				fixtures += len(set.Records)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d models, %d routes, %d fixtures\n",
				args[0], len(sc.Models), len(routes), fixtures)
			return nil
		},
	}
}
