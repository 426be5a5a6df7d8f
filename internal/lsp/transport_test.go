package lsp

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadMessage(t *testing.T) {
	var buf bytes.Buffer
	req := Request{JSONRPC: "2.0", ID: 7, Method: "textDocument/references"}
	require.NoError(t, WriteMessage(&buf, req))
	assert.True(t, strings.HasPrefix(buf.String(), "Content-Length: "))

	body, err := ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"method":"textDocument/references"}`, string(body))
}

func TestReadMessage_ExtraHeaders(t *testing.T) {
	raw := "Content-Type: application/vscode-jsonrpc; charset=utf-8\r\ncontent-length: 2\r\n\r\n{}"
	body, err := ReadMessage(bufio.NewReader(strings.NewReader(raw)))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(body))
}

func TestReadMessage_MissingLength(t *testing.T) {
	_, err := ReadMessage(bufio.NewReader(strings.NewReader("X-Other: 1\r\n\r\n{}")))
	assert.Error(t, err)
}

func TestReadMessage_TruncatedBody(t *testing.T) {
	_, err := ReadMessage(bufio.NewReader(strings.NewReader("Content-Length: 10\r\n\r\n{}")))
	assert.Error(t, err)
}
