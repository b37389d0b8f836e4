package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lci-cached-nav/internal/config"
	"github.com/standardbeagle/lci-cached-nav/internal/daemon"
	"github.com/standardbeagle/lci-cached-nav/internal/debug"
)

const appVersion = "0.1.0"

func main() {
	app := buildApp()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "lci-navd: %v\n", err)
		os.Exit(1)
	}
}

func buildApp() *cli.App {
	return &cli.App{
		Name:    "lci-navd",
		Usage:   "Caching navigation daemon for code-intelligence queries",
		Version: appVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "root",
				Usage: "Project root directory (default: current directory)",
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "Base directory for per-workspace cache stores",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the daemon, serving JSON-RPC queries over stdio",
				Action: serveCommand,
			},
			{
				Name:      "query",
				Usage:     "Issue a single query method and print its JSON result",
				ArgsUsage: "<method> <params-json>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "workspace-root",
						Usage: "Workspace root hint (required for workspace/symbol)",
					},
				},
				Action: queryCommand,
			},
		},
	}
}

func loadDaemon(c *cli.Context) (*daemon.Daemon, error) {
	root := c.String("root")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cacheDir := c.String("cache-dir")
	if cacheDir == "" {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache directory: %w", err)
		}
		cacheDir = filepath.Join(userCacheDir, "lci-navd")
	}

	return daemon.New(cfg, cacheDir)
}

// serveCommand runs the daemon as a long-lived process answering
// JSON-RPC requests over stdio until EOF or a termination signal,
// then drains in-flight work before exiting.
func serveCommand(c *cli.Context) error {
	debug.SetWireMode(true)

	d, err := loadDaemon(c)
	if err != nil {
		return err
	}
	defer d.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- daemon.ServeRPC(ctx, d, os.Stdin, os.Stdout)
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		debug.Log("DAEMON", "received signal %v, shutting down\n", sig)
		cancel()

		select {
		case <-errCh:
		case <-time.After(5 * time.Second):
		}
		return nil
	}
}

// queryCommand answers one query method call without holding stdio
// open, useful for scripting and debugging individual methods.
func queryCommand(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("usage: lci-navd query <method> <params-json>")
	}
	method := c.Args().Get(0)
	rawParams := json.RawMessage(c.Args().Get(1))
	if !json.Valid(rawParams) {
		return fmt.Errorf("params is not valid JSON: %s", c.Args().Get(1))
	}

	d, err := loadDaemon(c)
	if err != nil {
		return err
	}
	defer d.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := d.HandleQuery(ctx, method, rawParams, c.String("workspace-root"))
	if err != nil {
		return err
	}

	var pretty map[string]interface{}
	if err := json.Unmarshal(result, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return nil
	}
	fmt.Println(string(result))
	return nil
}
