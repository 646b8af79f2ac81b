// Command relay runs the direct chat relay server.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/omochice/toy-direct-chat/internal/config"
	"github.com/omochice/toy-direct-chat/internal/server"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadRelay()
	if err != nil {
		return err
	}

	flagSet := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.Address, "addr", cfg.Address, "address to listen on (e.g., :8000)")
	flagSet.IntVar(&cfg.OutgoingBuffer, "outgoing-buffer", cfg.OutgoingBuffer, "per-client delivery queue length")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logger := logs.GetLoggerFromString(cfg.LogLevel)
	srv := server.New(cfg.Address, server.NewHub(logger), logger, cfg.OutgoingBuffer)
	if err := srv.Listen(); err != nil {
		return err
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return err
		}
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", "signal", sig.String())
		srv.Stop()
	}

	logger.Info("Relay server stopped")
	return nil
}
