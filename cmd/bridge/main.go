package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/tonkit/wkbridge"
	"github.com/tonkit/wkbridge/bridge"
	"github.com/tonkit/wkbridge/config"
	"github.com/tonkit/wkbridge/events"
	"github.com/tonkit/wkbridge/pending"
	"github.com/tonkit/wkbridge/storage"
	"github.com/tonkit/wkbridge/transport/quickjs"
	"github.com/tonkit/wkbridge/transport/socket"
	"github.com/tonkit/wkbridge/wire"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to JWCC config file")
		wasmFile    = flag.String("wasm", "", "Path to QuickJS guest module with the wallet bundle")
		wsURL       = flag.String("ws", "", "WebSocket URL of a running script host to dial")
		listen      = flag.Bool("listen", false, "Serve a WebSocket endpoint and wait for the script host to connect")
		methodName  = flag.String("method", "", "Bridge method to call once ready")
		params      = flag.String("params", "", "JSON params for -method")
		tail        = flag.Duration("tail", 0, "Keep printing events for this long after the call")
		interactive = flag.Bool("i", false, "Interactive console with TUI")
		verbose     = flag.Bool("v", false, "Verbose logging to stderr")
	)
	flag.Parse()

	if *wasmFile == "" && *wsURL == "" && !*listen && *configPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: bridge -wasm <guest.wasm> -method <name> [-params json]")
		fmt.Fprintln(os.Stderr, "       bridge -ws <url> -method <name> [-tail 30s]")
		fmt.Fprintln(os.Stderr, "       bridge -wasm <guest.wasm> -i  (interactive console)")
		fmt.Fprintln(os.Stderr, "       bridge -config <bridge.jwcc> -listen")
		os.Exit(1)
	}

	if err := run(*configPath, *wasmFile, *wsURL, *listen, *methodName, *params, *tail, *interactive, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, wasmFile, wsURL string, listen bool, methodName, params string, tail time.Duration, interactive, verbose bool) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if wasmFile != "" {
		cfg.Engine.ModulePath = wasmFile
	}

	logger := zap.NewNop()
	if verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
	}
	pending.SetLogger(logger)

	var store storage.Store
	if cfg.Store.RedisAddr != "" {
		rs := storage.NewRedisStore(cfg.Store.RedisAddr)
		defer rs.Close()
		store = rs
	} else {
		store = storage.NewMemoryStore()
	}

	transport, err := buildTransport(ctx, cfg, wsURL, listen, store, logger)
	if err != nil {
		return err
	}

	engine := bridge.New(transport, bridge.Options{
		CallTimeout: time.Duration(cfg.Engine.CallTimeoutSeconds) * time.Second,
		Logger:      logger,
	})
	defer engine.Destroy(ctx)

	if err := engine.Start(ctx); err != nil {
		return err
	}

	if interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("interactive mode needs a terminal")
		}
		return runInteractive(engine)
	}

	if methodName == "" {
		if listen {
			// Nothing to call; stay up as an event sink.
			return tailEvents(engine)
		}
		return fmt.Errorf("no -method given; use -method, -i or -listen")
	}

	method := wire.Method(methodName)
	if !method.Valid() {
		return fmt.Errorf("unknown method %q", methodName)
	}
	var raw json.RawMessage
	if params != "" {
		raw = json.RawMessage(params)
	}

	reg := engine.AddListener(events.NewListener(printEvent))
	defer reg.Close()

	result, err := engine.Call(ctx, method, raw)
	if err != nil {
		return err
	}
	if len(result) > 0 {
		fmt.Println(string(result))
	}

	// The listener above stays registered while tailing.
	if tail > 0 {
		time.Sleep(tail)
	}
	return nil
}

func buildTransport(ctx context.Context, cfg config.Config, wsURL string, listen bool, store storage.Store, logger *zap.Logger) (wkbridge.Transport, error) {
	switch {
	case cfg.Engine.ModulePath != "":
		module, err := os.ReadFile(cfg.Engine.ModulePath)
		if err != nil {
			return nil, fmt.Errorf("read guest module: %w", err)
		}
		return quickjs.New(ctx, quickjs.Config{
			Module: module,
			Store:  store,
			Logger: logger,
		})

	case wsURL != "":
		t := socket.New(socket.Config{Logger: logger})
		if err := t.Dial(ctx, wsURL); err != nil {
			return nil, err
		}
		return t, nil

	case listen || cfg.Socket.Enabled:
		t := socket.New(socket.Config{Logger: logger})
		mux := http.NewServeMux()
		mux.Handle(cfg.Socket.Path, t.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.Socket.ListenAddr, mux); err != nil {
				logger.Error("socket server stopped", zap.Error(err))
			}
		}()
		fmt.Fprintf(os.Stderr, "Waiting for script host on %s%s\n", cfg.Socket.ListenAddr, cfg.Socket.Path)
		return t, nil

	default:
		return nil, fmt.Errorf("no transport configured; give -wasm, -ws or -listen")
	}
}

func printEvent(ev wire.Event) {
	fmt.Printf("event %s: %s\n", ev.Type, string(ev.Data))
}

// tailEvents blocks forever, printing every script event.
func tailEvents(engine *bridge.Engine) error {
	reg := engine.AddListener(events.NewListener(printEvent))
	defer reg.Close()
	select {}
}
