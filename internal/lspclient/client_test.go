package lspclient

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"
)

// fakeServer answers every request over the framed codec the real
// client uses, letting responder decide each reply.
type fakeServer struct {
	reader    *bufio.Reader
	writer    *bufio.Writer
	codec     jsonrpc2.VSCodeObjectCodec
	responder func(method string, params json.RawMessage) (result any, lspErr *jsonrpc2.Error)
}

func (s *fakeServer) run() {
	for {
		var msg wireMsg
		if err := s.codec.ReadObject(s.reader, &msg); err != nil {
			return
		}
		if msg.ID == nil {
			continue // notification, nothing to answer
		}
		var params json.RawMessage
		if msg.Params != nil {
			params = *msg.Params
		}
		result, lspErr := s.responder(msg.Method, params)

		resp := wireMsg{ID: msg.ID}
		if lspErr != nil {
			resp.Error = lspErr
		} else {
			raw, _ := json.Marshal(result)
			rm := json.RawMessage(raw)
			resp.Result = &rm
		}
		if err := s.codec.WriteObject(s.writer, &resp); err != nil {
			return
		}
		s.writer.Flush()
	}
}

func newClientWithFakeServer(t *testing.T, responder func(method string, params json.RawMessage) (any, *jsonrpc2.Error)) (*Client, func()) {
	t.Helper()
	toServer, fromClient := io.Pipe()
	toClient, fromServer := io.Pipe()

	server := &fakeServer{
		reader:    bufio.NewReader(toServer),
		writer:    bufio.NewWriter(fromServer),
		responder: responder,
	}
	go server.run()

	client := newClient("go", fromClient, toClient)
	cleanup := func() {
		client.Close()
		fromClient.Close()
		fromServer.Close()
	}
	return client, cleanup
}

func TestClientCallReturnsUnmarshaledResult(t *testing.T) {
	client, cleanup := newClientWithFakeServer(t, func(method string, params json.RawMessage) (any, *jsonrpc2.Error) {
		if method != "ping" {
			t.Errorf("unexpected method %q", method)
		}
		return "pong", nil
	})
	defer cleanup()

	var result string
	if err := client.Call(context.Background(), "ping", struct{}{}, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != "pong" {
		t.Errorf("expected %q, got %q", "pong", result)
	}
}

func TestClientCallSurfacesServerError(t *testing.T) {
	client, cleanup := newClientWithFakeServer(t, func(method string, params json.RawMessage) (any, *jsonrpc2.Error) {
		return nil, &jsonrpc2.Error{Code: -32601, Message: "method not found"}
	})
	defer cleanup()

	err := client.Call(context.Background(), "unsupported", struct{}{}, nil)
	if err == nil {
		t.Fatalf("expected an error from the server's error response")
	}
}

func TestClientCallTimesOutOnExpiredContext(t *testing.T) {
	block := make(chan struct{})
	client, cleanup := newClientWithFakeServer(t, func(method string, params json.RawMessage) (any, *jsonrpc2.Error) {
		<-block // never answers within the test's timeout
		return nil, nil
	})
	defer func() {
		close(block)
		cleanup()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := client.Call(ctx, "slow", struct{}{}, nil)
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
}

func TestClientConcurrentCallsGetMatchingResponses(t *testing.T) {
	client, cleanup := newClientWithFakeServer(t, func(method string, params json.RawMessage) (any, *jsonrpc2.Error) {
		var n int
		json.Unmarshal(params, &n)
		return n * 2, nil
	})
	defer cleanup()

	errCh := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			var result int
			err := client.Call(context.Background(), "double", n, &result)
			if err == nil && result != n*2 {
				err = &mismatchError{want: n * 2, got: result}
			}
			errCh <- err
		}(i)
	}
	for i := 0; i < 10; i++ {
		if err := <-errCh; err != nil {
			t.Errorf("concurrent call failed: %v", err)
		}
	}
}

type mismatchError struct{ want, got int }

func (e *mismatchError) Error() string {
	return "result mismatch"
}
