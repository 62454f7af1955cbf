package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/project-flogo/petriflow/analysis"
	"github.com/project-flogo/petriflow/definition"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <net.json>",
	Short: "Print the incidence matrix of a net and check token conservation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := readDefinitionRep(args[0])
		if err != nil {
			return err
		}
		def, err := definition.NewDefinition(rep)
		if err != nil {
			return err
		}
		return analyze(cmd.OutOrStdout(), def)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func analyze(out io.Writer, def *definition.Definition) error {
	n := analysis.New(def)

	fmt.Fprintf(out, "net:         %s\n", def.ID())
	fmt.Fprintf(out, "places:      %s\n", strings.Join(n.Places(), " "))
	fmt.Fprintf(out, "transitions: %s\n", strings.Join(n.Transitions(), " "))
	fmt.Fprintf(out, "incidence:\n%v\n", mat.Formatted(n.Incidence(), mat.Prefix(""), mat.Squeeze()))

	fmt.Fprintf(out, "exact:       %t\n", n.IsExact())
	if unbalanced := n.Unbalanced(); len(unbalanced) > 0 {
		fmt.Fprintf(out, "unbalanced:  %s\n", strings.Join(unbalanced, " "))
	} else {
		fmt.Fprintln(out, "unbalanced:  none")
	}
	return nil
}
