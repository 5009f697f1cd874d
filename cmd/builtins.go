package cmd

import (
	"fmt"
	"sort"

	"github.com/josephlewis42/rsh/core/builtins"
	"github.com/spf13/cobra"
)

// builtinsCmd lists the capabilities the shell resolves without a PATH search.
var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the builtins, keywords and configured functions of the shell.",
	Args:  cobra.ExactArgs(0),
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

		var names []string
		for _, name := range builtins.Names(e.Builtins) {
			names = append(names, "builtin:"+name)
		}
		for _, name := range builtins.Names(e.Keywords) {
			names = append(names, "keyword:"+name)
		}
		for name := range e.Functions {
			names = append(names, "function:"+name)
		}

		sort.Strings(names)

		for _, v := range names {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
