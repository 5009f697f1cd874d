package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/josephlewis42/rsh/core/env"
	"github.com/josephlewis42/rsh/core/logger"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

//go:embed default/config.yaml
var defaultConfigData []byte

const (
	ConfigurationName = "config.yaml"

	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

var shellName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

type Configuration struct {
	configFs  afero.Fs
	configDir string

	Prompt             string `json:"prompt"`
	ContinuationPrompt string `json:"continuation_prompt"`

	LogLevel string `json:"log_level" validate:"oneof=debug info warn crit"`
	LogFile  string `json:"log_file"`

	HistoryFile  string `json:"history_file"`
	HistoryLimit int    `json:"history_limit" validate:"gte=0"`

	Color string `json:"color" validate:"oneof=always auto never"`

	Variables map[string]string `json:"variables"`
	Functions []Function        `json:"functions" validate:"unique=Name,dive"`
}

type Function struct {
	Name string `json:"name" validate:"required,shellname"`
	Body string `json:"body" validate:"required"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})
	validate.RegisterValidation("shellname", func(fl validator.FieldLevel) bool {
		return shellName.MatchString(fl.Field().String())
	})

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		return afero.NewOsFs()
	}
	return c.configFs
}

// path resolves name relative to the configuration directory.
func (c *Configuration) path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.configDir, name)
}

// HistoryPath returns the resolved history file or an empty string.
func (c *Configuration) HistoryPath() string {
	return c.path(c.HistoryFile)
}

// OpenLog opens the trace file in an append only state.
func (c *Configuration) OpenLog() (afero.File, error) {
	return c.fs().OpenFile(c.path(c.LogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadLog opens the trace file for reading.
func (c *Configuration) ReadLog() (afero.File, error) {
	return c.fs().OpenFile(c.path(c.LogFile), os.O_RDONLY, 0600)
}

// Level parses the configured log level.
func (c *Configuration) Level() (logger.Level, error) {
	return logger.ParseLevel(c.LogLevel)
}

// UseColor reports whether error reports should be colored.
func (c *Configuration) UseColor(isTerminal bool) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return isTerminal
	}
}

// Apply sets the configured prompts, variables and functions on e.
func (c *Configuration) Apply(e *env.Environment) error {
	vars := make(map[string]string)
	for k, v := range c.Variables {
		vars[k] = v
	}
	if c.Prompt != "" {
		vars[env.VarPrompt] = c.Prompt
	}
	if c.ContinuationPrompt != "" {
		vars[env.VarPrompt2] = c.ContinuationPrompt
	}

	var keys []string
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := e.Set(k, vars[k]); err != nil {
			return err
		}
	}

	for _, f := range c.Functions {
		e.Functions[f.Name] = f.Body
	}
	return nil
}

// Default returns the embedded configuration with paths relative to the
// working directory.
func Default() *Configuration {
	out := defaultConfig()
	out.configFs = afero.NewOsFs()
	out.configDir = "."
	return out
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
