package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-relay/internal/client"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	url         string
	role        string
	logLevel    string
	noReconnect bool
	noColor     bool
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "wirechat-chat",
		Short:         "Terminal chat client for a wirechat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			cfg, _, err := config.LoadClient(nil, opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			flags := cmd.Flags()
			if flags.Changed("url") {
				cfg.URL = opts.url
			}
			if flags.Changed("role") {
				cfg.Role = opts.role
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = opts.logLevel
			}
			if opts.noReconnect {
				cfg.Reconnect.Enabled = false
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, os.Stdin, os.Stdout, !opts.noColor)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file path (default is ./chat.yaml)")
	flags.StringVar(&opts.url, "url", "", "relay websocket URL")
	flags.StringVar(&opts.role, "role", "", "role shown next to your messages")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level for stderr diagnostics")
	flags.BoolVar(&opts.noReconnect, "no-reconnect", false, "do not reconnect after the relay goes away")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable ANSI colors")

	return cmd
}

func run(ctx context.Context, cfg config.ClientConfig, in io.Reader, out io.Writer, color bool) error {
	logger := log.NewWithWriter(cfg.LogLevel, os.Stderr)

	me := client.NewIdentity(cfg.Role)
	mgr := client.NewManager(cfg.URL, client.WebSocketDialer{}, client.ReconnectPolicy{
		Enabled:    cfg.Reconnect.Enabled,
		MinBackoff: cfg.Reconnect.MinBackoff,
		MaxBackoff: cfg.Reconnect.MaxBackoff,
	}, log.Component(logger, "connection"))
	defer mgr.Close()

	ch := client.NewChannel(mgr, log.Component(logger, "channel"))
	transcript := client.NewTranscript()
	transcript.Follow(ch)

	r := newRenderer(out, color, me.UserID)
	fmt.Fprintf(out, "you are %s [%s] on %s\n", me.UserID, me.Role, cfg.URL)

	// All handlers run on the manager's feed goroutine, in order.
	var (
		mu        sync.Mutex
		connected time.Time
	)
	mgr.Subscribe(func(ev client.Event) {
		switch ev.Kind {
		case client.EventStatus:
			mu.Lock()
			since := connected
			if ev.Status == client.StatusConnected {
				connected = time.Now()
				since = time.Time{}
			}
			mu.Unlock()
			r.status(ev.Status, since)
			if ev.Status == client.StatusConnected && transcript.Len() == 0 {
				r.empty()
			}
		case client.EventMessage:
			entries := transcript.List()
			if len(entries) > 0 {
				r.entry(entries[len(entries)-1])
			}
		case client.EventError:
			logger.Debug().Str("code", ev.Err.Code).Str("msg", ev.Err.Msg).Msg("relay error")
		}
	})

	mgr.Connect(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r.summary(transcript.Len())
			return nil
		case line, ok := <-lines:
			if !ok {
				r.summary(transcript.Len())
				return nil
			}
			if !handleLine(ctx, line, me, mgr, ch, out) {
				r.summary(transcript.Len())
				return nil
			}
		}
	}
}

// handleLine sends one input line or runs a slash command. It returns false on /quit.
// Lines typed while not connected are dropped silently; the status line already tells.
func handleLine(ctx context.Context, line string, me client.Identity, mgr *client.Manager, ch *client.Channel, out io.Writer) bool {
	switch strings.TrimSpace(line) {
	case "/quit", "/exit":
		return false
	case "/status":
		fmt.Fprintf(out, "%s (session %q)\n", mgr.Status(), mgr.SessionID())
		return true
	case "/connect":
		mgr.Connect(ctx)
		return true
	case "/disconnect":
		mgr.Disconnect()
		return true
	}

	ch.Send(ctx, me.Draft(line))
	return true
}
