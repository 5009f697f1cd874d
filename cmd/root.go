package cmd

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/josephlewis42/rsh/core/builtins"
	"github.com/josephlewis42/rsh/core/config"
	"github.com/josephlewis42/rsh/core/env"
	"github.com/josephlewis42/rsh/core/input"
	"github.com/josephlewis42/rsh/core/interp"
	"github.com/josephlewis42/rsh/core/logger"
	"github.com/josephlewis42/rsh/core/shell"
	"github.com/josephlewis42/rsh/core/ttylog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cfgPath    string
	logLevel   = logger.LevelWarn
	command    string
	recordPath string

	exitCode int
)

func loadConfig() (*config.Configuration, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}

	configuration, err := config.Load(afero.NewOsFs(), cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// newEnvironment creates an environment seeded from the process with the
// builtins and the configured variables and functions installed.
func newEnvironment(configuration *config.Configuration) (*env.Environment, error) {
	e := env.New(env.ProcessEnv{})
	if err := e.Load(env.ProcessEnv{}); err != nil {
		return nil, err
	}
	builtins.Install(e)

	if err := configuration.Apply(e); err != nil {
		return nil, err
	}
	return e, nil
}

// openTrace creates the trace logger, the returned func closes its sink.
func openTrace(cmd *cobra.Command, configuration *config.Configuration) (*logger.Logger, func() error, error) {
	level := logLevel
	if !cmd.Flags().Changed("log-level") {
		var err error
		if level, err = configuration.Level(); err != nil {
			return nil, nil, err
		}
	}

	if configuration.LogFile == "" {
		return logger.New(io.Discard, level), func() error { return nil }, nil
	}

	fd, err := configuration.OpenLog()
	if err != nil {
		return nil, nil, err
	}
	return logger.New(fd, level), fd.Close, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rsh [SCRIPT]",
	Short: "A small interactive shell",
	Long: `rsh reads command lines, expands variables and command substitutions,
and runs builtins, functions and external programs with pipelines and output
redirection.

With no SCRIPT and a terminal on standard input the shell is interactive.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		trace, closeTrace, err := openTrace(cmd, configuration)
		if err != nil {
			return err
		}
		defer closeTrace()

		e, err := newEnvironment(configuration)
		if err != nil {
			return err
		}

		color.NoColor = !configuration.UseColor(isTerminal(os.Stderr))

		var stdout, stderr io.Writer = os.Stdout, os.Stderr
		var recorder *ttylog.Recorder
		if recordPath != "" {
			fd, err := os.Create(recordPath)
			if err != nil {
				return err
			}
			defer fd.Close()

			recorder = ttylog.NewRecorder(ttylog.NewCRLFAdapter(ttylog.NewAsciicastLogSink(fd)))
			stdout = recorder.Stdout(stdout)
			stderr = recorder.Stderr(stderr)
		}

		in := interp.New(e)
		in.Stderr = stderr
		in.Log = trace

		sh := shell.New(in, nil)
		sh.Stdout = stdout

		ctx := cmd.Context()
		trace.With("mode", runMode(args)).Infof("shell started")

		if command != "" {
			status := sh.RunLine(ctx, command)
			exitCode = status.Code
			return nil
		}

		var reader input.LineReader
		switch {
		case len(args) == 1:
			fd, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer fd.Close()
			reader = input.NewScanner(fd, nil)

		case !isTerminal(os.Stdin):
			reader = input.NewScanner(os.Stdin, nil)

		default:
			rl, err := input.NewReadline(input.ReadlineConfig{
				Stdin:        os.Stdin,
				Stdout:       stdout,
				Stderr:       stderr,
				HistoryFile:  configuration.HistoryPath(),
				HistoryLimit: configuration.HistoryLimit,
				IsTerminal:   func() bool { return true },
			})
			if err != nil {
				return err
			}
			defer rl.Close()

			reader = rl
			sh.Interactive = true
		}

		if recorder != nil {
			reader = shell.RecordInput(reader, recorder)
		}
		sh.Input = reader

		exitCode = sh.Run(ctx)
		trace.With("status", strconv.Itoa(exitCode)).Infof("shell exited")
		return nil
	},
}

func runMode(args []string) string {
	switch {
	case command != "":
		return "command"
	case len(args) == 1:
		return "script"
	default:
		return "interactive"
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.ExecuteContext(context.Background()))
	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config directory or config.yaml path, the built-in defaults are used when empty")
	rootCmd.PersistentFlags().Var(&logLevel, "log-level", "minimum trace level: debug, info, warn or crit")

	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single command line and exit with its status")
	rootCmd.Flags().StringVar(&recordPath, "record", "", "record the session to an asciicast file")
}
