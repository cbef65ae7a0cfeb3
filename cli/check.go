package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petal-labs/integrald/expr"
)

// NewCheckCmd creates the "check" subcommand.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <expression>",
		Short: "Compile an expression without integrating it",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}

	cmd.Flags().String("format", "text", "Output format: text | json")

	return cmd
}

type checkOutput struct {
	Valid     bool   `json:"valid"`
	Canonical string `json:"canonical,omitempty"`
	Error     string `json:"error,omitempty"`
	Position  *int   `json:"position,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	result := checkExpression(args[0])
	out := cmd.OutOrStdout()

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintf(out, "ok: %s\n", result.Canonical)
		if result.Warning != "" {
			fmt.Fprintf(out, "warning: %s\n", result.Warning)
		}
	}

	if !result.Valid {
		return exitError(exitExpression, "%s", result.Error)
	}
	return nil
}

func checkExpression(source string) checkOutput {
	prog, err := expr.Compile(source)
	if err == nil {
		return checkOutput{Valid: true, Canonical: prog.String()}
	}
	if prog != nil && errors.Is(err, expr.ErrUndefinedAtProbe) {
		return checkOutput{Valid: true, Canonical: prog.String(), Warning: err.Error()}
	}

	result := checkOutput{Error: err.Error()}
	var exprErr *expr.Error
	if errors.As(err, &exprErr) && exprErr.Pos >= 0 {
		pos := exprErr.Pos
		result.Position = &pos
	}
	return result
}
