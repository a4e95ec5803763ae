package utils

import (
	"bufio"
	"bytes"
	"io"
)

// NDJSONScanner reads newline-delimited JSON frames from an io.Reader, the
// raw framing used by Ollama-style streaming endpoints. An incomplete final
// line is held in the reader's buffer across reads and only surfaced once the
// terminating newline (or EOF) arrives, so a frame split across read
// boundaries is never delivered in pieces.
type NDJSONScanner struct {
	reader *bufio.Reader
}

// NewNDJSONScanner creates an NDJSONScanner reading from reader.
func NewNDJSONScanner(reader io.Reader) *NDJSONScanner {
	return &NDJSONScanner{reader: bufio.NewReaderSize(reader, 64*1024)}
}

// Next returns the next non-empty line with its trailing newline removed.
// A pending partial line at EOF is returned as the final frame. Returns
// io.EOF when the stream is exhausted.
func (s *NDJSONScanner) Next() ([]byte, error) {
	for {
		line, err := s.reader.ReadBytes('\n')
		line = bytes.TrimRight(line, "\r\n")

		if err != nil {
			if err == io.EOF {
				if len(line) > 0 {
					return line, nil
				}
				return nil, io.EOF
			}
			return nil, err
		}

		if len(line) == 0 {
			continue
		}
		return line, nil
	}
}
