package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/errors"
)

func explainCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "explain [code|name]",
		Short: "Describe a diagnostic code",
		Long: `Describe a diagnostic by its code or its snake_case name. Without an
argument, every registered code is listed.

Examples:
  reactor explain E101
  reactor explain each_key_duplicate --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				codes := errors.Codes()
				sort.Strings(codes)
				for _, code := range codes {
					tmpl, _ := errors.GetTemplate(code)
					fmt.Fprintf(out, "  %s  %-32s %s\n", code, tmpl.Name, tmpl.Message)
				}
				return nil
			}

			code := strings.ToUpper(args[0])
			if _, ok := errors.GetTemplate(code); !ok {
				named, ok := errors.Lookup(strings.ToLower(args[0]))
				if !ok {
					return errors.New("E141").
						WithDetail(fmt.Sprintf("Nothing is registered as %q.", args[0])).
						WithSuggestion("Run 'reactor explain' to list every code")
				}
				code = named
			}

			d := errors.New(code)
			if asJSON {
				fmt.Fprintln(out, d.FormatJSON())
				return nil
			}
			fmt.Fprint(out, d.Format())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the diagnostic as JSON")

	return cmd
}
