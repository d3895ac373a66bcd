// Command lincona is the interactive coding-agent CLI entrypoint: it
// wires config, the filesystem boundary, the tool registry, the model
// client, and the conversation driver together and runs a stdin read
// loop until the user quits or the process is signalled.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lincona/internal/boundary"
	"lincona/internal/config"
	"lincona/internal/driver"
	"lincona/internal/livefeed"
	"lincona/internal/modelclient"
	"lincona/internal/pty"
	"lincona/internal/seslog"
	"lincona/internal/session"
	"lincona/internal/shutdown"
	"lincona/internal/tools"
	"lincona/internal/transcript"
	"lincona/internal/usage"
)

func main() {
	os.Exit(mainCode())
}

// mainCode builds the command and returns the process exit code. The
// cobra RunE path stores an explicit code on exitCode rather than
// returning one, so that os.Exit always happens here, after every
// deferred cleanup in run() has already executed.
func mainCode() int {
	var exitCode int
	cmd := newRootCmd(&exitCode)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lincona: %v\n", err)
		if exitCode != 0 {
			return exitCode
		}
		return 1
	}
	return exitCode
}

func newRootCmd(exitCode *int) *cobra.Command {
	var allowedModels []string

	cmd := &cobra.Command{
		Use:   "lincona",
		Short: "Interactive coding-agent CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := run(cmd.Context(), allowedModels)
			*exitCode = code
			return err
		},
	}
	cmd.Flags().StringSliceVar(&allowedModels, "allowed-model", nil, "restrict /model to this set (repeatable); empty allows any model")
	return cmd
}

func run(ctx context.Context, allowedModels []string) (int, error) {
	cfg, err := config.Load()
	if err != nil {
		return 2, fmt.Errorf("load config: %w", err)
	}

	logger, err := newProcessLogger(cfg.LogLevel)
	if err != nil {
		return 2, fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	b, err := boundary.New(cfg.FsMode, "")
	if err != nil {
		return 1, fmt.Errorf("build boundary: %w", err)
	}

	coord := shutdown.New()
	notify := coord.InstallSignalHandlers()
	defer coord.Stop()

	ptyMgr := pty.New(b)
	coord.RegisterPTYManager(ptyMgr.CloseAll)

	registry := tools.NewDefaultRegistry(b, ptyMgr)
	toolCtx := &tools.Context{Boundary: b, PTY: ptyMgr}
	router := tools.NewRouter(registry, toolCtx, cfg.ApprovalPolicy, promptApproval, logger)

	transport := modelclient.NewHTTPTransport(cfg.BaseURL, cfg.BearerToken)
	// Bound only the wait for the response to start; the body is an SSE
	// stream that can legitimately run far longer than this.
	transport.HTTPClient = &http.Client{Transport: &http.Transport{ResponseHeaderTimeout: cfg.RequestTimeout}}
	client := modelclient.NewClient(transport, cfg.DefaultModel, string(cfg.ReasoningEffort), cfg.Verbosity)

	id := session.NewID(time.Now())
	state := session.New(id, cfg)

	tw, err := transcript.OpenWriter(cfg.DataRoot, id)
	if err != nil {
		return 1, fmt.Errorf("open transcript: %w", err)
	}
	coord.RegisterWriter(tw)

	lg, err := seslog.Open(cfg.DataRoot, id, seslog.DefaultMaxBytes)
	if err != nil {
		return 1, fmt.Errorf("open session log: %w", err)
	}
	coord.RegisterLogger(lg)

	var us *usage.Store
	usagePath := filepath.Join(cfg.DataRoot, "usage.db")
	if us, err = usage.Open(usagePath); err != nil {
		logger.Warn("usage ledger unavailable", zap.Error(err))
		us = nil
	} else if err := us.Init(ctx); err != nil {
		logger.Warn("usage ledger schema init failed", zap.Error(err))
		_ = us.Close()
		us = nil
	}
	if us != nil {
		coord.RegisterCloser(us)
	}

	var feed *livefeed.Hub
	if cfg.LivefeedAddr != "" {
		feed = livefeed.NewHub()
		feedSrv := livefeed.New(cfg.LivefeedAddr, cfg.DataRoot, feed)
		feedCtx, cancelFeed := context.WithCancel(ctx)
		coord.Register(cancelFeed)
		go func() {
			if err := feedSrv.Serve(feedCtx); err != nil {
				logger.Warn("livefeed server stopped", zap.Error(err))
			}
		}()
	}

	d := driver.New(cfg, "", allowedModels, state, client, registry, router, toolCtx, tw, lg, us, feed, os.Stdout)

	sig := newSignalPolicy(coord, notify)
	err = readLoop(ctx, d, sig)
	coord.Run()
	if err != nil {
		var fatalErr *driver.FatalError
		if errors.As(err, &fatalErr) {
			return 1, nil
		}
		return 1, err
	}
	if sig.exitedOnSignal() {
		return 130, nil
	}
	return 0, nil
}

// signalPolicy implements spec.md §5's cancellation rule: a SIGINT
// received while a turn is in flight cancels only that turn's context
// and returns control to the prompt; a second SIGINT for the same turn,
// or any SIGINT received while idle, runs the coordinator and ends the
// process with exit code 130.
type signalPolicy struct {
	coord  *shutdown.Coordinator
	notify <-chan os.Signal

	mu      sync.Mutex
	active  bool
	aborted bool
	cancel  context.CancelFunc
	exited  bool
}

func newSignalPolicy(coord *shutdown.Coordinator, notify <-chan os.Signal) *signalPolicy {
	sp := &signalPolicy{coord: coord, notify: notify}
	go sp.listen()
	return sp
}

func (sp *signalPolicy) listen() {
	for range sp.notify {
		sp.mu.Lock()
		if sp.active && !sp.aborted {
			sp.aborted = true
			cancel := sp.cancel
			sp.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			continue
		}
		sp.exited = true
		sp.mu.Unlock()
		sp.coord.Run()
		os.Exit(130)
	}
}

// turnContext derives a context from parent that the policy's signal
// listener can cancel for exactly the lifetime of one turn.
func (sp *signalPolicy) turnContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	sp.mu.Lock()
	sp.active = true
	sp.aborted = false
	sp.cancel = cancel
	sp.mu.Unlock()
	return ctx
}

func (sp *signalPolicy) endTurn() {
	sp.mu.Lock()
	sp.active = false
	sp.mu.Unlock()
}

func (sp *signalPolicy) exitedOnSignal() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.exited
}

func readLoop(ctx context.Context, d *driver.Driver, sig *signalPolicy) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		turnCtx := sig.turnContext(ctx)
		err := d.HandleInput(turnCtx, line)
		sig.endTurn()
		if err != nil {
			if err == driver.ErrQuit {
				return nil
			}
			var fatalErr *driver.FatalError
			if errors.As(err, &fatalErr) {
				return err
			}
			fmt.Fprintf(os.Stderr, "lincona: %v\n", err)
		}
	}
	return scanner.Err()
}

func promptApproval(toolName string, rawArgs json.RawMessage) bool {
	fmt.Fprintf(os.Stderr, "approve %s %s [y/N]? ", toolName, string(rawArgs))
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	return answer == "y\n" || answer == "Y\n"
}

func newProcessLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}
