package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"callgraph/internal/errors"
	"callgraph/util"
)

// ClientConfig holds language server client configuration
type ClientConfig struct {
	// Command and Args launch the server; only used by Start.
	Command string
	Args    []string
	// RootDir is the workspace root sent in initialize.
	RootDir string
	// RequestsPerSecond throttles requests to the server. Zero disables it.
	RequestsPerSecond float64
	// RequestTimeout bounds every request. Zero means no timeout.
	RequestTimeout time.Duration
	Logger         *zap.SugaredLogger
}

// Client is a JSON-RPC client speaking LSP to a server over a byte stream.
// It is safe for concurrent use.
type Client struct {
	conn    io.WriteCloser
	reader  *bufio.Reader
	cmd     *exec.Cmd
	logger  *zap.SugaredLogger
	limiter *rate.Limiter
	timeout time.Duration
	rootDir string

	writeMu sync.Mutex
	nextID  atomic.Int64

	mu           sync.Mutex
	pending      map[int64]chan *incoming
	docMu        sync.Mutex
	opened       map[string]openDocument
	capabilities ServerCapabilities
	readErr      error
	done         chan struct{}
}

// Start launches the language server process and connects to its stdio.
func Start(cfg ClientConfig) (*Client, error) {
	if cfg.Command == "" {
		return nil, errors.NewInvalidRequestError("language server command is required")
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.RootDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open server stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open server stdout")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cmd.Stderr = &logWriter{logger: logger.Named("stderr")}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", cfg.Command)
	}

	c := NewClient(stdout, stdin, cfg)
	c.cmd = cmd
	return c, nil
}

// NewClient wraps an already connected stream. r carries server output and w
// carries client output.
func NewClient(r io.Reader, w io.WriteCloser, cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	c := &Client{
		conn:    w,
		reader:  bufio.NewReader(r),
		logger:  logger,
		timeout: cfg.RequestTimeout,
		rootDir: cfg.RootDir,
		pending: make(map[int64]chan *incoming),
		opened:  make(map[string]openDocument),
		done:    make(chan struct{}),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	go c.readLoop()
	return c
}

// Initialize performs the initialize/initialized handshake.
func (c *Client) Initialize(ctx context.Context) error {
	params := InitializeParams{
		ProcessID: os.Getpid(),
		RootURI:   util.PathToURI(c.rootDir),
		Capabilities: ClientCapabilities{
			TextDocument: TextDocumentClientCapabilities{
				DocumentSymbol: DocumentSymbolClientCapabilities{HierarchicalDocumentSymbolSupport: true},
			},
		},
	}

	var result InitializeResult
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		return errors.Wrap(err, "initialize failed")
	}

	c.mu.Lock()
	c.capabilities = result.Capabilities
	c.mu.Unlock()

	if err := c.notify("initialized", struct{}{}); err != nil {
		return errors.Wrap(err, "initialized notification failed")
	}
	c.logger.Infow("language server initialized", "workspace", c.rootDir)
	return nil
}

// Capabilities returns what the server advertised during initialize.
func (c *Client) Capabilities() ServerCapabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capabilities
}

// Shutdown asks the server to exit and releases the connection.
func (c *Client) Shutdown(ctx context.Context) error {
	var shutdownErr error
	if err := c.call(ctx, "shutdown", nil, nil); err != nil {
		shutdownErr = errors.Wrap(err, "shutdown request failed")
	}
	_ = c.notify("exit", nil)
	_ = c.conn.Close()

	if c.cmd != nil {
		waitDone := make(chan error, 1)
		go func() { waitDone <- c.cmd.Wait() }()
		select {
		case <-waitDone:
		case <-time.After(5 * time.Second):
			_ = c.cmd.Process.Kill()
			<-waitDone
		}
	}
	return shutdownErr
}

// openDocument is what the server was last told about a file.
type openDocument struct {
	version int
	hash    string
}

// DidOpen keeps the server's copy of a file in step with the disk. The first
// call sends didOpen; later calls send a full-text didChange with the next
// version when the content changed, and nothing otherwise.
func (c *Client) DidOpen(ctx context.Context, path string) error {
	c.docMu.Lock()
	defer c.docMu.Unlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}
	hash := util.ContentHash(string(content))

	c.mu.Lock()
	doc, ok := c.opened[path]
	c.mu.Unlock()

	if !ok {
		doc = openDocument{version: 1, hash: hash}
		err = c.notify("textDocument/didOpen", DidOpenTextDocumentParams{
			TextDocument: TextDocumentItem{
				URI:        util.PathToURI(path),
				LanguageID: LanguageID(path),
				Version:    doc.version,
				Text:       string(content),
			},
		})
	} else {
		if doc.hash == hash {
			return nil
		}
		doc = openDocument{version: doc.version + 1, hash: hash}
		c.logger.Debugw("document changed on disk", "path", path, "version", doc.version)
		err = c.notify("textDocument/didChange", DidChangeTextDocumentParams{
			TextDocument:   VersionedTextDocumentIdentifier{URI: util.PathToURI(path), Version: doc.version},
			ContentChanges: []TextDocumentContentChangeEvent{{Text: string(content)}},
		})
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.opened[path] = doc
	c.mu.Unlock()
	return nil
}

// DocumentSymbols lists the symbols of a file. Flat SymbolInformation
// answers are converted to DocumentSymbols. A nil result means the server
// had no answer.
func (c *Client) DocumentSymbols(ctx context.Context, path string) ([]DocumentSymbol, error) {
	if err := c.DidOpen(ctx, path); err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	params := DocumentSymbolParams{TextDocument: TextDocumentIdentifier{URI: util.PathToURI(path)}}
	if err := c.call(ctx, "textDocument/documentSymbol", params, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	symbols := make([]DocumentSymbol, 0, len(raw))
	for _, item := range raw {
		var shape struct {
			Location *Location `json:"location"`
		}
		if err := json.Unmarshal(item, &shape); err != nil {
			return nil, errors.Wrap(err, "failed to decode document symbol")
		}
		if shape.Location != nil {
			var info SymbolInformation
			if err := json.Unmarshal(item, &info); err != nil {
				return nil, errors.Wrap(err, "failed to decode symbol information")
			}
			symbols = append(symbols, DocumentSymbol{
				Name:           info.Name,
				Kind:           info.Kind,
				Range:          info.Location.Range,
				SelectionRange: info.Location.Range,
			})
			continue
		}
		var sym DocumentSymbol
		if err := json.Unmarshal(item, &sym); err != nil {
			return nil, errors.Wrap(err, "failed to decode document symbol")
		}
		symbols = append(symbols, sym)
	}
	return symbols, nil
}

// PrepareCallHierarchy resolves the call hierarchy item at a position.
func (c *Client) PrepareCallHierarchy(ctx context.Context, path string, pos Position) ([]HierarchyItem, error) {
	return c.prepare(ctx, "textDocument/prepareCallHierarchy", path, pos)
}

// PrepareTypeHierarchy resolves the type hierarchy item at a position.
func (c *Client) PrepareTypeHierarchy(ctx context.Context, path string, pos Position) ([]HierarchyItem, error) {
	return c.prepare(ctx, "textDocument/prepareTypeHierarchy", path, pos)
}

func (c *Client) prepare(ctx context.Context, method, path string, pos Position) ([]HierarchyItem, error) {
	if err := c.DidOpen(ctx, path); err != nil {
		return nil, err
	}
	var items []HierarchyItem
	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: util.PathToURI(path)},
		Position:     pos,
	}
	if err := c.call(ctx, method, params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// OutgoingCalls lists the calls made by an item.
func (c *Client) OutgoingCalls(ctx context.Context, item HierarchyItem) ([]CallHierarchyOutgoingCall, error) {
	var calls []CallHierarchyOutgoingCall
	if err := c.call(ctx, "callHierarchy/outgoingCalls", HierarchyItemParams{Item: item}, &calls); err != nil {
		return nil, err
	}
	return calls, nil
}

// IncomingCalls lists the callers of an item.
func (c *Client) IncomingCalls(ctx context.Context, item HierarchyItem) ([]CallHierarchyIncomingCall, error) {
	var calls []CallHierarchyIncomingCall
	if err := c.call(ctx, "callHierarchy/incomingCalls", HierarchyItemParams{Item: item}, &calls); err != nil {
		return nil, err
	}
	return calls, nil
}

// Supertypes lists the direct supertypes of an item.
func (c *Client) Supertypes(ctx context.Context, item HierarchyItem) ([]HierarchyItem, error) {
	var items []HierarchyItem
	if err := c.call(ctx, "typeHierarchy/supertypes", HierarchyItemParams{Item: item}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Subtypes lists the direct subtypes of an item.
func (c *Client) Subtypes(ctx context.Context, item HierarchyItem) ([]HierarchyItem, error) {
	var items []HierarchyItem
	if err := c.call(ctx, "typeHierarchy/subtypes", HierarchyItemParams{Item: item}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// References finds all references to the symbol at a position, including
// its declaration.
func (c *Client) References(ctx context.Context, path string, pos Position) ([]Location, error) {
	if err := c.DidOpen(ctx, path); err != nil {
		return nil, err
	}
	var locations []Location
	params := ReferenceParams{
		TextDocument: TextDocumentIdentifier{URI: util.PathToURI(path)},
		Position:     pos,
		Context:      ReferenceContext{IncludeDeclaration: true},
	}
	if err := c.call(ctx, "textDocument/references", params, &locations); err != nil {
		return nil, err
	}
	return locations, nil
}

// call sends a request and decodes the result into result (if non-nil).
func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	id := c.nextID.Add(1)
	ch := make(chan *incoming, 1)

	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return errors.Wrap(errors.ErrServiceUnavailable, err.Error())
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	start := time.Now()
	if err := c.write(Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return errors.Wrapf(err, "failed to send %s", method)
	}

	select {
	case msg := <-ch:
		c.logger.Debugw("lsp request", "method", method, "duration_ms", time.Since(start).Milliseconds())
		if msg.Error != nil {
			return msg.Error
		}
		if result == nil || len(msg.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(msg.Result, result); err != nil {
			return errors.Wrapf(err, "failed to decode %s result", method)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errors.Wrap(errors.ErrServiceUnavailable, "connection closed")
	}
}

func (c *Client) notify(method string, params interface{}) error {
	return c.write(Notification{JSONRPC: "2.0", Method: method, Params: params})
}

func (c *Client) write(msg interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteMessage(c.conn, msg)
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		body, err := ReadMessage(c.reader)
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			if err != io.EOF {
				c.logger.Debugw("language server stream closed", "error", err)
			}
			return
		}

		var msg incoming
		if err := json.Unmarshal(body, &msg); err != nil {
			c.logger.Warnw("dropping malformed message", "error", err)
			continue
		}

		switch {
		case msg.ID != nil && msg.Method == "":
			var id int64
			if err := json.Unmarshal(*msg.ID, &id); err != nil {
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[id]
			c.mu.Unlock()
			if ok {
				ch <- &msg
			}
		case msg.ID != nil:
			go c.answerServerRequest(msg)
		default:
			c.logger.Debugw("server notification", "method", msg.Method)
		}
	}
}

// answerServerRequest replies to requests the server sends to the client.
// Nothing is configurable from here, so every request gets an empty answer.
func (c *Client) answerServerRequest(msg incoming) {
	var result interface{}
	if msg.Method == "workspace/configuration" {
		var params ConfigurationParams
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			result = make([]interface{}, len(params.Items))
		}
	}
	resp := Response{JSONRPC: "2.0", ID: *msg.ID, Result: result}
	if err := c.write(resp); err != nil {
		c.logger.Debugw("failed to answer server request", "method", msg.Method, "error", err)
	}
}

// logWriter forwards server stderr lines to the logger.
type logWriter struct {
	logger *zap.SugaredLogger
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			w.logger.Debug(line)
		}
	}
	return len(p), nil
}
