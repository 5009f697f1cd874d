// Package ttylog records the terminal traffic of a shell session and plays
// it back.
package ttylog

import (
	"io"
	"log"
	"regexp"
	"sync"
	"time"
)

var (
	crlf = regexp.MustCompile(`\r?\n`)
)

// FD identifies the stream an entry was captured from.
type FD int

const (
	FDStdin FD = iota
	FDStdout
	FDStderr
)

// Entry is a single captured chunk of terminal traffic.
type Entry struct {
	TimestampMicros int64
	Fd              FD
	Data            []byte
}

// LogSink receives log events.
type LogSink func(e *Entry) error

// LogSource adapts log readers.
type LogSource interface {
	// Next fetches the next available log entry. It returns io.EOF if the source
	// has no more log entries.
	Next() (*Entry, error)
}

// NewRealTimePlayback plays back the results in real-time.
// If maxSleep > 0, it's used as the maximum duration to pause.
func NewRealTimePlayback(maxSleep time.Duration, next LogSink) LogSink {
	var once sync.Once
	var prevTimeMicros int64

	return func(entry *Entry) error {
		once.Do(func() {
			prevTimeMicros = entry.TimestampMicros
		})

		delta := entry.TimestampMicros - prevTimeMicros
		prevTimeMicros = entry.TimestampMicros

		if maxSleep > 0 {
			sleepDuration := time.Duration(delta) * time.Microsecond
			if sleepDuration > maxSleep {
				sleepDuration = maxSleep
			}
			time.Sleep(sleepDuration)
		}

		return next(entry)
	}
}

// NewCRLFAdapter rewrites bare line feeds as CRLF. Output captured before it
// reaches the terminal driver has plain \n line endings, and players that
// expect raw terminal output would otherwise creep across the screen.
func NewCRLFAdapter(next LogSink) LogSink {
	return func(entry *Entry) error {
		if entry.Fd != FDStdin {
			entry.Data = crlf.ReplaceAll(entry.Data, []byte("\r\n"))
		}

		return next(entry)
	}
}

// NewClientOutput writes stdout and stderr to the given writer
func NewClientOutput(w io.Writer) LogSink {
	return func(entry *Entry) error {
		if entry.Fd == FDStdin {
			return nil
		}
		_, err := w.Write(entry.Data)
		return err
	}
}

// Replay reads a stream of events to a callback.
func Replay(recording LogSource, callback LogSink) (err error) {
	for {
		entry, err := recording.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err := callback(entry); err != nil {
			return err
		}
	}
}

// Recorder forwards the traffic of wrapped streams to a LogSink.
type Recorder struct {
	mutex  sync.Mutex
	output LogSink
	now    func() time.Time
}

// NewRecorder creates a logger that forwards all events to output.
func NewRecorder(output LogSink) *Recorder {
	return &Recorder{
		output: output,
		now:    time.Now,
	}
}

// Record sends a single chunk of data to the output.
func (r *Recorder) Record(fd FD, data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)

	r.mutex.Lock()
	err := r.output(&Entry{
		TimestampMicros: r.now().UnixMicro(),
		Fd:              fd,
		Data:            buf,
	})
	r.mutex.Unlock()
	if err != nil {
		log.Print(err)
	}
}

// Stdout wraps w so everything written is recorded as output.
func (r *Recorder) Stdout(w io.Writer) io.Writer {
	return &recorderWriter{r: r, mockFd: FDStdout, wrapped: w}
}

// Stderr wraps w so everything written is recorded as error output.
func (r *Recorder) Stderr(w io.Writer) io.Writer {
	return &recorderWriter{r: r, mockFd: FDStderr, wrapped: w}
}

type recorderWriter struct {
	r       *Recorder
	mockFd  FD
	wrapped io.Writer
}

var _ io.Writer = (*recorderWriter)(nil)

func (rw *recorderWriter) Write(p []byte) (int, error) {
	n, err := rw.wrapped.Write(p)
	if n > 0 {
		rw.r.Record(rw.mockFd, p[:n])
	}
	return n, err
}
