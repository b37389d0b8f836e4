// Package lspclient is the thin boundary across which this module talks
// to its one true external collaborator: a running language-server
// process. The wire protocol and the server implementation are out of
// scope (spec section 1's Non-goals) — this package only dials a
// process, frames requests/responses the way the teacher's own LSP
// code does, and exposes a single Call method the Query Front-End and
// the Analyzer Manager's semantic-enhancement step build on.
package lspclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/go-lsp"
	"github.com/sourcegraph/jsonrpc2"
)

// wireMsg is a superset of jsonrpc2.Request/Response wide enough to
// decode either shape off the wire: a response to one of our calls
// (ID + Result/Error) or an unsolicited server notification (Method,
// no ID), matching exactly what a real language server sends over the
// same content-length-framed codec the teacher's xpls command used on
// the server side.
type wireMsg struct {
	ID     *jsonrpc2.ID     `json:"id,omitempty"`
	Method string           `json:"method,omitempty"`
	Params *json.RawMessage `json:"params,omitempty"`
	Result *json.RawMessage `json:"result,omitempty"`
	Error  *jsonrpc2.Error  `json:"error,omitempty"`
}

// Client is a single connection to one language-server process for one
// language. It is not safe to share a Client across workspaces with
// conflicting root paths; the Pool keys one Client per (language,
// workspace root).
type Client struct {
	language string
	cmd      *exec.Cmd
	stdin    io.WriteCloser

	writeMu sync.Mutex
	writer  *bufio.Writer
	codec   jsonrpc2.VSCodeObjectCodec

	pendingMu sync.Mutex
	pending   map[jsonrpc2.ID]chan wireMsg

	nextID atomic.Uint64
	closed atomic.Bool
	done   chan struct{}
}

// newClient wires w/r as the JSON-RPC transport for language and
// starts its read loop, without performing the initialize handshake —
// split out from Dial so the protocol-level Call/response matching
// logic can be exercised in tests over an in-process pipe instead of a
// real subprocess.
func newClient(language string, w io.WriteCloser, r io.Reader) *Client {
	c := &Client{
		language: language,
		stdin:    w,
		writer:   bufio.NewWriter(w),
		pending:  make(map[jsonrpc2.ID]chan wireMsg),
		done:     make(chan struct{}),
	}
	go c.readLoop(bufio.NewReader(r))
	return c
}

// Dial starts command as a subprocess, wires its stdio as the JSON-RPC
// transport, and performs the LSP initialize handshake against
// rootPath. The returned Client owns the subprocess and must be
// Closed.
func Dial(ctx context.Context, language string, command []string, rootPath string) (*Client, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("lspclient: empty command for language %q", language)
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("lspclient: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("lspclient: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("lspclient: start %q: %w", command[0], err)
	}

	c := newClient(language, stdin, stdout)
	c.cmd = cmd

	var result lsp.InitializeResult
	if err := c.Call(ctx, "initialize", lsp.InitializeParams{RootPath: rootPath}, &result); err != nil {
		c.Close()
		return nil, fmt.Errorf("lspclient: initialize %s: %w", language, err)
	}
	_ = c.Notify(ctx, "initialized", struct{}{})

	return c, nil
}

// Call sends a request and blocks for its response, unmarshaling the
// result into result (which may be nil to discard it). Respects ctx's
// deadline: on expiry the pending slot is released and ctx.Err() is
// returned, though the server may still answer later (discarded).
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	if c.closed.Load() {
		return fmt.Errorf("lspclient: client for %s is closed", c.language)
	}

	id := jsonrpc2.ID{Num: c.nextID.Add(1)}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("lspclient: marshal params: %w", err)
	}
	rawParams := json.RawMessage(raw)

	ch := make(chan wireMsg, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	req := &jsonrpc2.Request{Method: method, ID: id, Params: &rawParams}
	c.writeMu.Lock()
	writeErr := c.codec.WriteObject(c.writer, req)
	if writeErr == nil {
		writeErr = c.writer.Flush()
	}
	c.writeMu.Unlock()
	if writeErr != nil {
		return fmt.Errorf("lspclient: write %s request: %w", method, writeErr)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("lspclient: connection to %s closed mid-call", c.language)
	case msg := <-ch:
		if msg.Error != nil {
			return fmt.Errorf("lspclient: %s returned error %d: %s", method, msg.Error.Code, msg.Error.Message)
		}
		if result != nil && msg.Result != nil {
			return json.Unmarshal(*msg.Result, result)
		}
		return nil
	}
}

// Notify sends a one-way notification (no response expected), such as
// the post-initialize "initialized" message or didOpen/didChange.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("lspclient: marshal notification params: %w", err)
	}
	rawParams := json.RawMessage(raw)
	req := &jsonrpc2.Request{Method: method, Params: &rawParams, Notif: true}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.codec.WriteObject(c.writer, req); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *Client) readLoop(r *bufio.Reader) {
	defer close(c.done)
	for {
		var msg wireMsg
		if err := c.codec.ReadObject(r, &msg); err != nil {
			return
		}
		if msg.ID == nil {
			// Server-initiated notification (publishDiagnostics, log,
			// etc): this client has no use for it.
			continue
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[*msg.ID]
		c.pendingMu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// Close terminates the subprocess and releases its pipes.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.stdin.Close()
	if c.cmd == nil {
		return nil
	}
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
	return c.cmd.Wait()
}
