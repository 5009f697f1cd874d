package shell

import (
	"github.com/josephlewis42/rsh/core/input"
	"github.com/josephlewis42/rsh/core/ttylog"
)

type recordedInput struct {
	input.LineReader
	rec *ttylog.Recorder
}

// RecordInput forwards each line read from r to the recorder as typed input.
func RecordInput(r input.LineReader, rec *ttylog.Recorder) input.LineReader {
	return &recordedInput{LineReader: r, rec: rec}
}

func (r *recordedInput) ReadLine(prompt string) (string, error) {
	line, err := r.LineReader.ReadLine(prompt)
	if err == nil {
		r.rec.Record(ttylog.FDStdin, []byte(line+"\n"))
	}
	return line, err
}
