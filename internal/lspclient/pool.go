package lspclient

import (
	"context"
	"fmt"
	"sync"
)

// ServerCommand resolves the subprocess command line for a language,
// or ok=false if no upstream collaborator is configured for it —
// spec's LspUnavailable case.
type ServerCommand func(language string) (command []string, ok bool)

// Pool lazily dials and caches one Client per (language, workspace
// root), the unit the spec treats as "an upstream LSP collaborator is
// available for the language" (4.H) or not.
type Pool struct {
	resolve ServerCommand

	mu      sync.Mutex
	clients map[string]*Client // key: language + "\x00" + root
}

// NewPool constructs a Pool that resolves server commands via resolve.
func NewPool(resolve ServerCommand) *Pool {
	return &Pool{resolve: resolve, clients: make(map[string]*Client)}
}

func poolKey(language, root string) string {
	return language + "\x00" + root
}

// Get returns the Client for (language, root), dialing one if none is
// cached yet. Returns ok=false, nil error when no server command is
// configured for language (the caller should treat this as
// LspUnavailable, not as a failure).
func (p *Pool) Get(ctx context.Context, language, root string) (*Client, bool, error) {
	key := poolKey(language, root)

	p.mu.Lock()
	if c, ok := p.clients[key]; ok {
		p.mu.Unlock()
		return c, true, nil
	}
	p.mu.Unlock()

	command, ok := p.resolve(language)
	if !ok {
		return nil, false, nil
	}

	client, err := Dial(ctx, language, command, root)
	if err != nil {
		return nil, false, fmt.Errorf("lspclient: dial %s: %w", language, err)
	}

	p.mu.Lock()
	if existing, ok := p.clients[key]; ok {
		p.mu.Unlock()
		client.Close()
		return existing, true, nil
	}
	p.clients[key] = client
	p.mu.Unlock()

	return client, true, nil
}

// CloseAll terminates every dialed Client, for daemon shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	clients := p.clients
	p.clients = make(map[string]*Client)
	p.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
