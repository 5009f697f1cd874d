package builtins

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/josephlewis42/rsh/core/env"
	"github.com/josephlewis42/rsh/core/interp"
	"github.com/spf13/afero"
)

// HeadingColor is used for section headings in help output.
var HeadingColor = color.New(color.Bold)

// Cd changes the working directory of the shell.
func Cd(c *env.Call) (env.Status, error) {
	cmd := &SimpleCommand{
		Use:   "cd DIR",
		Short: "Change the shell working directory.",
	}

	return cmd.Run(c, func() (env.Status, error) {
		args := cmd.Flags().Args()
		if len(args) != 1 {
			return cmd.Usage(c)
		}

		old, err := os.Getwd()
		if err != nil {
			return env.Continued(1), err
		}
		if err := os.Chdir(args[0]); err != nil {
			return env.Continued(1), err
		}
		wd, err := os.Getwd()
		if err != nil {
			return env.Continued(1), err
		}

		if err := c.Env.Set(env.VarOldPWD, old); err != nil {
			return env.Continued(1), err
		}
		if err := c.Env.Set(env.VarPWD, wd); err != nil {
			return env.Continued(1), err
		}
		return env.Continued(0), nil
	})
}

// Export sets a shell variable that children inherit.
func Export(c *env.Call) (env.Status, error) {
	cmd := &SimpleCommand{
		Use:   "export KEY=VALUE",
		Short: "Set a variable in the environment of the shell and its children.",
	}

	return cmd.Run(c, func() (env.Status, error) {
		args := cmd.Flags().Args()
		if len(args) != 1 {
			return cmd.Usage(c)
		}

		kv := strings.Split(args[0], "=")
		if len(kv) != 2 || kv[0] == "" {
			return cmd.Usage(c)
		}

		if err := c.Env.Set(kv[0], kv[1]); err != nil {
			return env.Continued(1), err
		}
		return env.Continued(0), nil
	})
}

// Exit ends the shell with an optional numeric status.
func Exit(c *env.Call) (env.Status, error) {
	cmd := &SimpleCommand{
		Use:   "exit [N]",
		Short: "Exit the shell with a status of N, or 0.",
	}

	return cmd.Run(c, func() (env.Status, error) {
		args := cmd.Flags().Args()
		switch len(args) {
		case 0:
			return env.Exited(0), nil
		case 1:
			code, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return cmd.Usage(c)
			}
			return env.Exited(int(code)), nil
		default:
			return cmd.Usage(c)
		}
	})
}

// Help lists the builtins and keywords.
func Help(c *env.Call) (env.Status, error) {
	cmd := &SimpleCommand{
		Use:   "help [NAME...]",
		Short: "Display information about builtin commands.",
	}

	return cmd.Run(c, func() (env.Status, error) {
		w := c.Stdout

		if topics := cmd.Flags().Args(); len(topics) > 0 {
			status := env.Continued(0)
			for _, name := range topics {
				short := Describe(name)
				if short == "" {
					fmt.Fprintf(c.Stderr, "help: no help topics match `%s'\n", name)
					status = env.Continued(1)
					continue
				}
				fmt.Fprintf(w, "%s: %s\n", name, short)
			}
			return status, nil
		}

		fmt.Fprintln(w, "rsh, an interactive shell.")
		fmt.Fprintln(w, "These shell commands are defined internally.  Type `help' to see this list.")
		fmt.Fprintln(w, "Type `help name' to find out more about the command `name'.")

		sections := []struct {
			heading string
			table   map[string]env.Builtin
		}{
			{"Builtins:", c.Env.Builtins},
			{"Keywords:", c.Env.Keywords},
		}
		for _, section := range sections {
			fmt.Fprintln(w)
			HeadingColor.Fprintln(w, section.heading)

			tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
			for _, name := range Names(section.table) {
				fmt.Fprintf(tw, "  %s\t%s\n", name, Describe(name))
			}
			tw.Flush()
		}

		if names := functionNames(c.Env); len(names) > 0 {
			fmt.Fprintln(w)
			HeadingColor.Fprintln(w, "Functions:")

			tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
			for _, name := range names {
				fmt.Fprintf(tw, "  %s\t%s\n", name, c.Env.Functions[name])
			}
			tw.Flush()
		}

		return env.Continued(0), nil
	})
}

// Pwd prints the working directory.
func Pwd(c *env.Call) (env.Status, error) {
	cmd := &SimpleCommand{
		Use:   "pwd",
		Short: "Print the name of the current working directory.",
	}

	return cmd.Run(c, func() (env.Status, error) {
		if len(cmd.Flags().Args()) != 0 {
			return cmd.Usage(c)
		}

		wd, err := os.Getwd()
		if err != nil {
			return env.Continued(1), err
		}
		fmt.Fprintln(c.Stdout, wd)
		return env.Continued(0), nil
	})
}

// Set prints the shell variables.
func Set(c *env.Call) (env.Status, error) {
	cmd := &SimpleCommand{
		Use:   "set",
		Short: "Display the shell variables sorted by name.",
	}

	return cmd.Run(c, func() (env.Status, error) {
		if len(cmd.Flags().Args()) != 0 {
			return cmd.Usage(c)
		}

		for _, kv := range c.Env.Environ() {
			fmt.Fprintln(c.Stdout, kv)
		}
		return env.Continued(0), nil
	})
}

// Unset removes variables or functions.
func Unset(c *env.Call) (env.Status, error) {
	cmd := &SimpleCommand{
		Use:   "unset [-fv] NAME...",
		Short: "Unset shell variables and functions.",
	}

	opts := cmd.Flags()
	functions := opts.Bool('f', "treat each NAME as a function")
	opts.Bool('v', "treat each NAME as a variable")

	return cmd.Run(c, func() (env.Status, error) {
		for _, name := range opts.Args() {
			if *functions {
				delete(c.Env.Functions, name)
				continue
			}
			if err := c.Env.Unset(name); err != nil {
				return env.Continued(1), err
			}
		}
		return env.Continued(0), nil
	})
}

var errNotFound = errors.New("not found")

// Type reports how each name would be run.
func Type(c *env.Call) (env.Status, error) {
	cmd := &SimpleCommand{
		Use:   "type [-t] NAME...",
		Short: "Display how each NAME would be interpreted as a command.",
	}

	opts := cmd.Flags()
	terse := opts.Bool('t', "print a single word: builtin, function, keyword or file")

	return cmd.Run(c, func() (env.Status, error) {
		names := opts.Args()
		if len(names) == 0 {
			return cmd.Usage(c)
		}

		status := env.Continued(0)
		for _, name := range names {
			kind, detail, err := describeCommand(c.Env, name)
			if err != nil {
				fmt.Fprintf(c.Stderr, "type: %s: %v\n", name, err)
				status = env.Continued(1)
				continue
			}

			if *terse {
				fmt.Fprintln(c.Stdout, kind)
			} else {
				fmt.Fprintf(c.Stdout, "%s is %s\n", name, detail)
			}
		}
		return status, nil
	})
}

// describeCommand resolves name in the same order the interpreter does.
func describeCommand(e *env.Environment, name string) (kind, detail string, err error) {
	switch {
	case e.IsBuiltin(name):
		return "builtin", "a shell builtin", nil
	case e.IsFunction(name):
		return "function", fmt.Sprintf("a function: %s", e.Functions[name]), nil
	case e.IsKeyword(name):
		return "keyword", "a shell keyword", nil
	}

	path, err := interp.LookPath(afero.NewOsFs(), e.Get("PATH"), name)
	if err != nil {
		return "", "", errNotFound
	}
	return "file", path, nil
}

func functionNames(e *env.Environment) []string {
	var out []string
	for name := range e.Functions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func init() {
	addBuiltin("cd", "Change the shell working directory.", Cd)
	addBuiltin("export", "Set a variable in the environment of the shell and its children.", Export)
	addBuiltin("exit", "Exit the shell.", Exit)
	addBuiltin("help", "Display information about builtin commands.", Help)
	addBuiltin("pwd", "Print the name of the current working directory.", Pwd)
	addBuiltin("set", "Display the shell variables.", Set)
	addBuiltin("unset", "Unset shell variables and functions.", Unset)
	addBuiltin("type", "Display how a name would be interpreted as a command.", Type)
}
