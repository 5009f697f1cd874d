package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/josephlewis42/rsh/core/parser"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

const (
	formatYAML = "yaml"
	formatText = "text"
)

var parseFormat string

// parseCmd prints the command-structure tree of a line without running it.
var parseCmd = &cobra.Command{
	Use:   "parse LINE...",
	Short: "Print the command-structure tree of a command line.",
	Long: `Builds the command-structure tree of the arguments joined with spaces and
prints it. Nothing is executed, substitutions appear unresolved.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}
		e, err := newEnvironment(configuration)
		if err != nil {
			return err
		}

		tree := parser.Build(strings.Join(args, " "), e)
		return writeTree(cmd.OutOrStdout(), tree, parseFormat)
	},
}

func writeTree(w io.Writer, tree *parser.CommandNode, format string) error {
	switch format {
	case formatText:
		return parser.Dump(w, tree)
	case formatYAML:
		out, err := yaml.Marshal(tree)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown format %q, expected %s or %s", format, formatYAML, formatText)
	}
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVar(&parseFormat, "format", formatYAML, "output format: yaml or text")
}
