// Command chat is a line-oriented direct chat client. It holds one WebSocket
// open to the relay for incoming messages and posts outgoing ones over HTTP.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/toy-direct-chat/internal/chat"
	"github.com/omochice/toy-direct-chat/internal/client/api"
	wsclient "github.com/omochice/toy-direct-chat/internal/client/ws"
	"github.com/omochice/toy-direct-chat/internal/config"
	"github.com/spf13/pflag"
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
	}
	os.Exit(code)
}

// newFlagSet binds the command line over cfg. Identities are set only
// from the console (/me, /to), never at startup.
func newFlagSet(cfg *config.Client, autoConnect *bool) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("chat", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.ServerHost, "server", cfg.ServerHost, "relay host:port")
	flagSet.DurationVar(&cfg.SendTimeout, "send-timeout", cfg.SendTimeout, "timeout for connecting and sending")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "diagnostic log level")
	flagSet.BoolVar(autoConnect, "connect", false, "connect on startup")
	return flagSet
}

func run() (int, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return 1, err
	}

	var autoConnect bool
	flagSet := newFlagSet(&cfg, &autoConnect)
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0, nil
		}
		return 2, err
	}

	logger := logs.GetLoggerFromString(cfg.LogLevel)

	ui := newConsole(os.Stdout, cfg.SendTimeout)
	session := chat.NewSession(
		wsclient.NewDialer(cfg.ServerHost),
		api.NewPoster(cfg.ServerHost, nil),
		chat.NewLog(ui.printEntry),
		logger,
		chat.WithCloseObserver(ui.printClose),
	)
	ui.session = session

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() {
		ui.wait()
		session.Dispose()
		logger.Info("Chat client stopped")
	}()

	ui.printf("%s", ui.status())
	ui.printf("commands: /me <id> /to <id> /connect /disconnect /status /log /quit")
	if autoConnect {
		ui.execute(ctx, command{kind: cmdConnect})
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Received signal, shutting down")
			return 0, nil
		case err := <-readErr:
			if err != nil {
				return 1, fmt.Errorf("failed to read input: %w", err)
			}
			return 0, nil
		case line := <-lines:
			if !ui.execute(ctx, parseCommand(line)) {
				return 0, nil
			}
		}
	}
}
