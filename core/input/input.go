// Package input provides logical command lines to the shell.
package input

import (
	"io"
	"strings"
)

// LineReader reads one physical line after displaying prompt.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// ReadLogical reads a line with the primary prompt. While the line ends in
// an unescaped backslash the backslash is removed and the next line, read
// with the secondary prompt, is appended.
//
// End of input inside a continuation returns the text read so far.
func ReadLogical(r LineReader, ps1, ps2 string) (string, error) {
	line, err := r.ReadLine(ps1)
	if err != nil {
		return "", err
	}

	sb := &strings.Builder{}
	for {
		line = strings.TrimRight(line, " \t\r\n")
		if !continues(line) {
			sb.WriteString(line)
			return sb.String(), nil
		}
		sb.WriteString(line[:len(line)-1])

		line, err = r.ReadLine(ps2)
		switch {
		case err == io.EOF:
			return sb.String(), nil
		case err != nil:
			return "", err
		}
	}
}

// continues reports whether line ends with an odd number of backslashes.
func continues(line string) bool {
	count := 0
	for i := len(line) - 1; i >= 0 && line[i] == '\\'; i-- {
		count++
	}
	return count%2 == 1
}
