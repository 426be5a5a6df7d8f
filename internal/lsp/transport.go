package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"callgraph/internal/errors"
)

// ReadMessage reads an LSP message (header + body) from the reader.
func ReadMessage(r *bufio.Reader) ([]byte, error) {
	// 1. Read Headers
	var contentLength int
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			// End of headers
			break
		}

		name, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			contentLength, err = strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, errors.Wrap(err, "invalid Content-Length")
			}
		}
	}

	if contentLength <= 0 {
		return nil, errors.New("missing or zero Content-Length")
	}

	// 2. Read Body
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "failed to read body")
	}

	return body, nil
}

// WriteMessage writes an LSP message to the writer as a single frame.
func WriteMessage(w io.Writer, msg interface{}) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	frame := make([]byte, 0, len(body)+32)
	frame = append(frame, fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))...)
	frame = append(frame, body...)
	_, err = w.Write(frame)
	return err
}
