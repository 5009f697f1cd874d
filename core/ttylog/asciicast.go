package ttylog

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// AsciicastFileExt holds the suggested file extension for asciicast files.
const AsciicastFileExt = "cast"

const asciicastVersion = 2

// asciicastHeader is the first line of a recording.
//
// See: https://github.com/asciinema/asciinema/blob/develop/doc/asciicast-v2.md
type asciicastHeader struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp,omitempty"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

func newAsciicastHeader(start time.Time) *asciicastHeader {
	// Sizes that display most shell output reasonably.
	return &asciicastHeader{
		Version:   asciicastVersion,
		Width:     80,
		Height:    24,
		Timestamp: start.Unix(),
		Title:     "rsh session",
		Env: map[string]string{
			"TERM":  "xterm-256color",
			"SHELL": "rsh",
		},
	}
}

// NewAsciicastLogSink creates a LogSink that writes asciicast v2 events. The
// header is written along with the first entry, event times are relative to
// that entry.
func NewAsciicastLogSink(w io.Writer) LogSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	var start int64
	started := false

	return func(entry *Entry) error {
		if !started {
			started = true
			start = entry.TimestampMicros
			if err := enc.Encode(newAsciicastHeader(time.UnixMicro(start))); err != nil {
				return err
			}
		}

		event := asciicastEvent{
			Seconds: microsecondsToSeconds(entry.TimestampMicros - start),
			Kind:    "o",
			Data:    string(entry.Data),
		}
		if entry.Fd == FDStdin {
			event.Kind = "i"
		}
		return enc.Encode(&event)
	}
}

// AsciicastLogSource reads entries back out of an asciicast v2 recording.
type AsciicastLogSource struct {
	dec    *json.Decoder
	header *asciicastHeader
}

var _ LogSource = (*AsciicastLogSource)(nil)

// NewAsciicastLogSource reads log events from an Asciicast formatted file.
func NewAsciicastLogSource(r io.Reader) *AsciicastLogSource {
	return &AsciicastLogSource{dec: json.NewDecoder(r)}
}

func (src *AsciicastLogSource) readHeader() error {
	var header asciicastHeader
	if err := src.dec.Decode(&header); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return fmt.Errorf("asciicast header: %w", err)
	}
	if header.Version != asciicastVersion {
		return fmt.Errorf("unsupported asciicast version %d", header.Version)
	}
	src.header = &header
	return nil
}

// Next gets the next log entry, it returns io.EOF if there are no more.
// Stderr was collapsed into stdout when recording and events other than
// input and output are skipped.
func (src *AsciicastLogSource) Next() (*Entry, error) {
	if src.header == nil {
		if err := src.readHeader(); err != nil {
			return nil, err
		}
	}

	for {
		var event asciicastEvent
		if err := src.dec.Decode(&event); err != nil {
			return nil, err
		}

		var fd FD
		switch event.Kind {
		case "o":
			fd = FDStdout
		case "i":
			fd = FDStdin
		default:
			continue
		}

		return &Entry{
			TimestampMicros: secondsToMicroseconds(event.Seconds),
			Fd:              fd,
			Data:            []byte(event.Data),
		}, nil
	}
}

// asciicastEvent is a single [time, kind, data] line.
type asciicastEvent struct {
	Seconds float64
	Kind    string
	Data    string
}

func (e *asciicastEvent) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) != 3 {
		return fmt.Errorf("malformed event, expected 3 fields got %d", len(fields))
	}

	for i, dst := range []interface{}{&e.Seconds, &e.Kind, &e.Data} {
		if err := json.Unmarshal(fields[i], dst); err != nil {
			return fmt.Errorf("malformed event field %d: %w", i, err)
		}
	}
	return nil
}

func (e *asciicastEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.Seconds, e.Kind, e.Data})
}

func microsecondsToSeconds(microseconds int64) float64 {
	return time.Duration(microseconds * int64(time.Microsecond)).Seconds()
}

func secondsToMicroseconds(seconds float64) int64 {
	return int64(seconds*float64(time.Second)) / int64(time.Microsecond)
}
