package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"

	"github.com/omochice/chatsocket/internal/chatsocket"
	"github.com/omochice/chatsocket/internal/config"
	"github.com/omochice/chatsocket/internal/logging"
	"github.com/omochice/chatsocket/internal/transport"
	"github.com/omochice/chatsocket/internal/transport/ws"
	"github.com/omochice/chatsocket/pkg/protocol"
)

// app is the state shared by the interactive commands.
type app struct {
	ctx       context.Context
	manager   *chatsocket.Manager
	commands  commands
	serverURL string
	quit      bool
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to YAML config file")
	serverURL := flag.String("server", "", "Server URL (e.g., ws://localhost:8080/ws)")
	userID := flag.String("user", "", "User id to connect as")
	codec := flag.String("codec", "", "Frame codec: json or protobuf")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *serverURL != "" {
		cfg.Client.ServerURL = *serverURL
	}
	if *userID != "" {
		cfg.Client.UserID = *userID
	}
	if *codec != "" {
		cfg.Client.Codec = *codec
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("client failed")
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadWithDefaults(path)
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	opts, err := cfg.Client.TransportOptions()
	if err != nil {
		return err
	}

	cmds := newCommands()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32m»\033[0m ",
		AutoComplete:    cmds.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	logging.Redirect(logger, cfg.Log, rl.Stderr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := chatsocket.New(ws.Dial(logger),
		chatsocket.WithLogger(logger),
		chatsocket.WithCodec(opts.Codec),
		chatsocket.WithTransportOptions(func(o *transport.Options) {
			o.DialTimeout = opts.DialTimeout
			o.ReconnectBaseDelay = opts.ReconnectBaseDelay
			o.ReconnectMaxDelay = opts.ReconnectMaxDelay
			o.FlushTimeout = opts.FlushTimeout
			o.SendBuffer = opts.SendBuffer
		}),
	)
	printEvents(manager, rl.Stdout())

	a := &app{
		ctx:       ctx,
		manager:   manager,
		commands:  cmds,
		serverURL: cfg.Client.ServerURL,
	}

	if cfg.Client.UserID == "" {
		fmt.Fprintln(rl.Stdout(), "No user id given; use 'login <user>' to connect.")
	} else {
		fmt.Fprintln(rl.Stdout(), cmdLogin(a, []string{cfg.Client.UserID}))
	}
	fmt.Fprintln(rl.Stdout(), "Type 'help' for commands, 'quit' to exit.")

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	for !a.quit {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.WithError(err).Warn("failed to read input")
			}
			break
		}
		if out := a.commands.execute(a, strings.TrimSpace(line)); out != "" {
			fmt.Fprintln(rl.Stdout(), out)
		}
	}

	manager.Teardown()
	fmt.Fprintln(rl.Stdout(), "Disconnected from server")
	return nil
}

// printEvents registers a callback for every inbound event that prints its
// payload.
func printEvents(m *chatsocket.Manager, w io.Writer) {
	for _, slot := range chatsocket.Slots() {
		name := slot.String()
		m.SetCallback(slot, func(p protocol.Payload) {
			fmt.Fprintln(w, formatEvent(name, p))
		})
	}
}

func formatEvent(name string, payload protocol.Payload) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("<%s> %v", name, payload)
	}
	return fmt.Sprintf("<%s> %s", name, data)
}
