package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"sync"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/standardbeagle/lci-cached-nav/internal/debug"
	"github.com/standardbeagle/lci-cached-nav/internal/errs"
)

// rpcRequest is this daemon's one external wire shape: a Query Method
// name, its LSP params verbatim, and an optional workspace root hint
// for workspace/symbol (spec 4.K). Framed with the same
// Content-Length + VSCodeObjectCodec the Client uses against its own
// upstream language servers, so both directions of this process speak
// the identical wire convention.
type rpcRequest struct {
	ID            jsonrpc2.ID     `json:"id"`
	Method        string          `json:"method"`
	Params        json.RawMessage `json:"params"`
	WorkspaceRoot string          `json:"workspaceRoot,omitempty"`
}

type rpcResponse struct {
	ID     jsonrpc2.ID     `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *jsonrpc2.Error `json:"error,omitempty"`
}

// ServeRPC reads rpcRequests from r until EOF or ctx is cancelled,
// answers each one concurrently via d.HandleQuery, and writes its
// rpcResponse to w. Responses may arrive out of order relative to
// requests; callers match them by ID.
func ServeRPC(ctx context.Context, d *Daemon, r io.Reader, w io.Writer) error {
	var codec jsonrpc2.VSCodeObjectCodec
	reader := bufio.NewReader(r)

	var writeMu sync.Mutex
	writeResponse := func(resp rpcResponse) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := codec.WriteObject(w, resp); err != nil {
			debug.LogQuery("daemon: write response: %v", err)
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var req rpcRequest
		if err := codec.ReadObject(reader, &req); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		wg.Add(1)
		go func(req rpcRequest) {
			defer wg.Done()
			writeResponse(d.answer(ctx, req))
		}(req)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (d *Daemon) answer(ctx context.Context, req rpcRequest) rpcResponse {
	result, err := d.HandleQuery(ctx, req.Method, req.Params, req.WorkspaceRoot)
	if err != nil {
		return rpcResponse{ID: req.ID, Error: toJSONRPCError(err)}
	}
	return rpcResponse{ID: req.ID, Result: result}
}

// toJSONRPCError maps this system's client error taxonomy onto
// jsonrpc2.Error codes: a ClientError's numeric code becomes the wire
// error code (and prefixes the message), so a thin client can distinguish
// WorkspaceNotFound from LspUnavailable without parsing prose. Any other
// error is sent as jsonrpc2.CodeInternalError.
func toJSONRPCError(err error) *jsonrpc2.Error {
	if clientErr, ok := err.(*errs.ClientError); ok {
		return &jsonrpc2.Error{
			Code:    int64(clientErr.Code),
			Message: strconv.Itoa(int(clientErr.Code)) + ": " + clientErr.Message,
		}
	}
	return &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
}
