package sqlserver

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// scriptWriter appends monotonically to the output script. Sections are
// written once and never rewritten.
type scriptWriter struct {
	file   *os.File
	writer *bufio.Writer
	closed bool
}

func newScriptWriter(path string) (*scriptWriter, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open script file: %w", err)
	}
	return &scriptWriter{file: file, writer: bufio.NewWriter(file)}, nil
}

func (s *scriptWriter) Write(p []byte) (int, error) {
	return s.writer.Write(p)
}

func (s *scriptWriter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.writer.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to flush script file: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close script file: %w", err)
	}
	return nil
}

const bannerLine = "-- ============================================="

// banner delimits a script section.
func banner(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n-- %s\n%s\n\n", bannerLine, title, bannerLine)
}
