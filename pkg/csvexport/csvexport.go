// Package csvexport writes RFC 4180 CSV with every field quoted.
package csvexport

import (
	"bufio"
	"io"
	"strings"
)

// Writer emits quoted CSV records. Call Flush when done and check Error.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write emits one record terminated by CRLF.
func (cw *Writer) Write(record []string) error {
	if cw.err != nil {
		return cw.err
	}
	for i, field := range record {
		if i > 0 {
			cw.writeString(",")
		}
		cw.writeString(`"`)
		cw.writeString(strings.ReplaceAll(field, `"`, `""`))
		cw.writeString(`"`)
	}
	cw.writeString("\r\n")
	return cw.err
}

// WriteAll writes every record and flushes.
func (cw *Writer) WriteAll(records [][]string) error {
	for _, r := range records {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// Flush writes buffered data to the underlying writer.
func (cw *Writer) Flush() error {
	if cw.err != nil {
		return cw.err
	}
	cw.err = cw.w.Flush()
	return cw.err
}

// Error reports the first write error, if any.
func (cw *Writer) Error() error { return cw.err }

func (cw *Writer) writeString(s string) {
	if cw.err != nil {
		return
	}
	_, cw.err = cw.w.WriteString(s)
}
