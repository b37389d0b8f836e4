// Package queryfe is the Query Front-End (spec 4.K): the single public
// entry point for every Query Method. It parses params down to a file
// path, resolves the owning workspace (internal/workspace), builds a
// content-addressed cache key (internal/cachekey), and asks the cache
// (internal/cachestore) for an answer — computing one via the upstream
// language-server collaborator (internal/lspclient) only on a miss.
package queryfe

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/standardbeagle/lci-cached-nav/internal/cachekey"
	"github.com/standardbeagle/lci-cached-nav/internal/cachestore"
	"github.com/standardbeagle/lci-cached-nav/internal/debug"
	"github.com/standardbeagle/lci-cached-nav/internal/errs"
	"github.com/standardbeagle/lci-cached-nav/internal/indexmgr"
	"github.com/standardbeagle/lci-cached-nav/internal/lspclient"
	"github.com/standardbeagle/lci-cached-nav/internal/types"
	"github.com/standardbeagle/lci-cached-nav/internal/workspace"
)

// FrontEnd wires together one daemon process's resolver, key builder,
// cache, and upstream LSP pool into the handler described by spec 4.K.
type FrontEnd struct {
	cfg      Config
	resolver *workspace.Resolver
	keys     *cachekey.Builder
	cache    *cachestore.Store
	pool     *lspclient.Pool
}

// New builds a FrontEnd. resolver and pool are typically shared process-wide
// with the indexing side of the daemon.
func New(cfg Config, resolver *workspace.Resolver, cache *cachestore.Store, pool *lspclient.Pool) *FrontEnd {
	return &FrontEnd{
		cfg:      cfg,
		resolver: resolver,
		keys:     cachekey.New(resolver),
		cache:    cache,
		pool:     pool,
	}
}

// Handle answers one Query Method call. methodName is the canonical LSP
// method string (e.g. "textDocument/definition"); rawParams is its LSP
// params object verbatim. workspaceRootHint is only consulted for
// methods with no per-file anchor (workspace/symbol) — see
// workspaceRootFor.
//
// The returned error, when non-nil, is always an *errs.ClientError: one
// of WorkspaceNotFound, FileNotFound, LspUnavailable, Timeout,
// UpstreamError, or Internal (spec 4.K).
func (f *FrontEnd) Handle(ctx context.Context, methodName string, rawParams json.RawMessage, workspaceRootHint string) (json.RawMessage, error) {
	method, err := types.ParseMethod(methodName)
	if err != nil {
		return nil, errs.InternalErr(err)
	}

	path, err := f.resolveAnchorPath(method, rawParams, workspaceRootHint)
	if err != nil {
		return nil, errs.InternalErr(err)
	}

	root, _, err := f.resolver.ResolveForFile(path)
	if err != nil {
		return nil, errs.WorkspaceNotFound(path)
	}

	// Register the single-flight slot on a synchronous, I/O-free key
	// before the file is stat'd: two callers racing the same request
	// while the file's mtime is in flux must land in the same slot,
	// which a key built from the (mtime-dependent) CacheKey below
	// cannot guarantee.
	sfKey := f.keys.BuildSingleflightKey(method, path, string(rawParams))

	key, err := f.keys.Build(method, path, string(rawParams))
	if err != nil {
		var keyErr *errs.KeyError
		if errors.As(err, &keyErr) {
			return nil, errs.FileNotFoundErr(relativeTo(path, root))
		}
		return nil, errs.InternalErr(err)
	}

	language := indexmgr.LanguageFromExt(path)

	data, err := f.cache.GetOrCompute(sfKey, key, func() ([]byte, time.Duration, error) {
		return f.computeUpstream(ctx, language, root, method, rawParams)
	})
	if err != nil {
		var clientErr *errs.ClientError
		if errors.As(err, &clientErr) {
			return nil, clientErr
		}
		return nil, errs.InternalErr(err)
	}

	return json.RawMessage(data), nil
}

// resolveAnchorPath extracts the file path a query is anchored to.
// workspace/symbol carries no textDocument, so it anchors on
// workspaceRootHint instead (a directory, which Key Builder can stat
// just as well as a file).
func (f *FrontEnd) resolveAnchorPath(method types.Method, rawParams json.RawMessage, workspaceRootHint string) (string, error) {
	if method == types.MethodWorkspaceSymbols {
		if workspaceRootHint == "" {
			return "", errors.New("queryfe: workspace/symbol requires a workspace root hint")
		}
		return workspaceRootHint, nil
	}
	return FilePathFromParams(rawParams)
}

// computeUpstream is the Compute callback passed to GetOrCompute: it
// calls the upstream collaborator, retrying once with jitter if the
// first attempt failed transiently (spec 4.K), and classifies the
// outcome into the client error taxonomy.
func (f *FrontEnd) computeUpstream(ctx context.Context, language, root string, method types.Method, rawParams json.RawMessage) ([]byte, time.Duration, error) {
	client, ok, err := f.pool.Get(ctx, language, root)
	if err != nil {
		return nil, 0, errs.InternalErr(err)
	}
	if !ok {
		return nil, 0, errs.LspUnavailable(language)
	}

	timeout := f.cfg.TimeoutFor(method)
	result, callErr := f.callOnce(ctx, client, method, rawParams, timeout)
	if callErr != nil && isTransient(callErr) {
		debug.LogQuery("retrying %s after transient upstream error: %v", method.String(), callErr)
		time.Sleep(jitter(f.cfg.RetryJitterBase))
		result, callErr = f.callOnce(ctx, client, method, rawParams, timeout)
	}
	if callErr != nil {
		if errors.Is(callErr, context.DeadlineExceeded) {
			return nil, 0, errs.TimeoutErr(method.String())
		}
		return nil, 0, errs.UpstreamErr(callErr.Error())
	}

	return result, f.cfg.TTLFor(method), nil
}

func (f *FrontEnd) callOnce(ctx context.Context, client *lspclient.Client, method types.Method, rawParams json.RawMessage, timeout time.Duration) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var raw json.RawMessage
	if err := client.Call(callCtx, method.String(), rawParams, &raw); err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

func isTransient(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// jitter returns a delay in [base/2, base*3/2), the same +-50% spread
// idiom the teacher's indexing retry logic uses around its exponential
// backoff, scaled down to a single fixed base since the Front-End only
// ever retries once.
func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return base/2 + time.Duration(rand.Float64()*float64(base))
}
