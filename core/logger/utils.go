package logger

import (
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Well known entry fields.
const (
	FieldTimestamp = "timestamp_micros"
	FieldLevel     = "level"
	FieldMessage   = "message"
)

// Level is the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelCrit
)

var levelNames = []string{"debug", "info", "warn", "crit"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Set implements the flag.Value interface.
func (l *Level) Set(s string) error {
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Type implements the pflag.Value interface.
func (l *Level) Type() string {
	return "level"
}

// ParseLevel converts a level name to a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelWarn, fmt.Errorf("unknown log level %q, expected one of: %s", s, strings.Join(levelNames, ", "))
}

// LogRecorder is a callback that stores entries in an external datastore.
type LogRecorder func(le *structpb.Struct) error

// Logger writes leveled trace entries. A nil Logger drops everything.
type Logger struct {
	Record LogRecorder
	Level  Level

	fields map[string]string
}

// New creates a Logger that writes entries at or above level to w as JSON
// lines.
func New(w io.Writer, level Level) *Logger {
	return &Logger{
		Record: NewJsonLinesLogRecorder(w),
		Level:  level,
	}
}

// NewJsonLinesLogRecorder creates a LogRecorder that exports entries in
// newline delimited JSON object format.
func NewJsonLinesLogRecorder(w io.Writer) LogRecorder {
	return func(le *structpb.Struct) error {
		entry, err := protojson.Marshal(le)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(entry))
		return err
	}
}

// With returns a Logger that adds key to every entry.
func (l *Logger) With(key, value string) *Logger {
	if l == nil {
		return nil
	}

	fields := make(map[string]string, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value

	return &Logger{
		Record: l.Record,
		Level:  l.Level,
		fields: fields,
	}
}

// Enabled reports whether entries at level would be recorded.
func (l *Logger) Enabled(level Level) bool {
	return l != nil && l.Record != nil && level >= l.Level
}

func (l *Logger) logf(level Level, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}

	values := map[string]interface{}{
		FieldTimestamp: time.Now().UnixNano() / int64(time.Microsecond),
		FieldLevel:     level.String(),
		FieldMessage:   fmt.Sprintf(format, args...),
	}
	for k, v := range l.fields {
		values[k] = v
	}

	entry, err := structpb.NewStruct(values)
	if err != nil {
		return
	}
	// The trace is best effort, a failed write never stops the shell.
	_ = l.Record(entry)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf(LevelWarn, format, args...)
}

func (l *Logger) Critf(format string, args ...interface{}) {
	l.logf(LevelCrit, format, args...)
}
