// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package wsgi

import (
	"bytes"
	"io"
)

// writeDiagnostic dumps b line by line to w, each line prefixed
// with prefix, followed by a blank line. Failures are ignored.
func writeDiagnostic(w io.Writer, prefix string, b []byte) {
	if w == nil {
		return
	}

	var buf bytes.Buffer
	for _, line := range splitLines(b) {
		buf.WriteString(prefix)
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	w.Write(buf.Bytes())
}

func splitLines(b []byte) [][]byte {
	if len(b) == 0 {
		return nil
	}
	lines := bytes.Split(b, []byte("\n"))
	if len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = bytes.TrimSuffix(line, []byte("\r"))
	}
	return lines
}
