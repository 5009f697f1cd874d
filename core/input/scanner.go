package input

import (
	"bufio"
	"fmt"
	"io"
)

// Scanner is a LineReader over a plain stream such as a script file.
type Scanner struct {
	scanner *bufio.Scanner
	prompts io.Writer
}

var _ LineReader = (*Scanner)(nil)

// NewScanner reads lines from r. Prompts are written to prompts unless it
// is nil.
func NewScanner(r io.Reader, prompts io.Writer) *Scanner {
	return &Scanner{
		scanner: bufio.NewScanner(r),
		prompts: prompts,
	}
}

// ReadLine implements LineReader.
func (s *Scanner) ReadLine(prompt string) (string, error) {
	if s.prompts != nil {
		fmt.Fprint(s.prompts, prompt)
	}

	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}
