package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/getmockd/mirage/pkg/config"
	"github.com/getmockd/mirage/pkg/route"
)

// routeRow is one line of `mirage routes`.
type routeRow struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Handler string `json:"handler"`
	Timing  string `json:"timing,omitempty"`
}

func newRoutesCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "routes <scenario>",
		Short: "Print the routes and pass-through entries of a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := loadRoutes(args[0])
			if err != nil {
				return err
			}
			routes, err := tbl.Routes()
			if err != nil {
				return err
			}
			rows := make([]routeRow, 0, len(routes))
			for _, r := range routes {
				rows = append(rows, toRow(r))
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tPATH\tHANDLER\tTIMING")
			for _, r := range rows {
				timing := r.Timing
				if timing == "" {
					timing = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Method, r.Path, r.Handler, timing)
			}
			for _, p := range tbl.PassthroughPatterns() {
				fmt.Fprintf(w, "*\t%s\tpassthrough\t-\n", p)
			}
			if tbl.PassesUnmatched() {
				fmt.Fprintln(w, "*\t(unmatched)\tpassthrough\t-")
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func toRow(r *route.Route) routeRow {
	row := routeRow{Method: r.Method, Path: r.Path, Handler: "custom"}
	if sh := r.Shorthand; sh != nil {
		row.Handler = sh.Model + "#" + string(sh.Action)
	}
	if r.Timing != nil {
		row.Timing = r.Timing.String()
	}
	return row
}

// loadRoutes loads and validates a scenario and returns its table.
func loadRoutes(path string) (*route.Table, error) {
	sc, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return sc.RouteTable(), nil
}
