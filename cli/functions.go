package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petal-labs/integrald/expr"
)

// NewFunctionsCmd creates the "functions" subcommand.
func NewFunctionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "functions",
		Short: "List the functions and constants expressions may use",
		Args:  cobra.NoArgs,
		RunE:  runFunctions,
	}

	cmd.Flags().String("format", "text", "Output format: text | json")

	return cmd
}

type builtinOutput struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Arity       int      `json:"arity,omitempty"`
	Value       *float64 `json:"value,omitempty"`
}

func runFunctions(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	builtins := expr.Builtins()
	out := cmd.OutOrStdout()

	if format == "json" {
		items := make([]builtinOutput, 0, len(builtins))
		for _, b := range builtins {
			item := builtinOutput{Name: b.Name, Description: b.Description}
			if b.Constant {
				v := b.Value
				item.Kind, item.Value = "constant", &v
			} else {
				item.Kind, item.Arity = "function", b.Arity
			}
			items = append(items, item)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"variable": expr.Variable, "builtins": items})
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tDESCRIPTION")
	for _, b := range builtins {
		if b.Constant {
			fmt.Fprintf(tw, "%s\tconstant\t%s (%g)\n", b.Name, b.Description, b.Value)
			continue
		}
		fmt.Fprintf(tw, "%s(x)\tfunction\t%s\n", b.Name, b.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nThe variable is %s. Operators: + - * / ^ (** is accepted for ^).\n", expr.Variable)
	return nil
}
