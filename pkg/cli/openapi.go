package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/mirage/pkg/config"
	"github.com/getmockd/mirage/pkg/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		format  string
		output  string
		title   string
		version string
	)
	cmd := &cobra.Command{
		Use:   "openapi <scenario>",
		Short: "Export the routes of a scenario as an OpenAPI 3 document",
		Example: `  mirage openapi contacts.yaml
  mirage openapi contacts.yaml --format yaml -o openapi.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := sc.Validate(); err != nil {
				return fmt.Errorf("invalid scenario %s: %w", args[0], err)
			}
			s, err := sc.Schema()
			if err != nil {
				return err
			}
			if title == "" {
				title = sc.Name
			}

			doc, err := openapi.Export(sc.RouteTable(), s, openapi.Info{Title: title, Version: version})
			if err != nil {
				return err
			}
			if err := doc.Validate(cmd.Context()); err != nil {
				return err
			}

			var data []byte
			switch strings.ToLower(format) {
			case "json":
				data, err = doc.JSON()
			case "yaml", "yml":
				data, err = doc.YAML()
			default:
				return fmt.Errorf("unknown format %q: use json or yaml", format)
			}
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().StringVar(&title, "title", "", "API title (defaults to the scenario name)")
	cmd.Flags().StringVar(&version, "api-version", "", "API version (defaults to 1.0.0)")
	return cmd
}
