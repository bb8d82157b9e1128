package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/habedi/gymctl/cmd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configureLogLevelFromEnv()

	stopChan := setupInterruptListener()
	go handleInterrupt(stopChan, func(msg string) { log.Error().Msg(msg) }, os.Exit)

	cmd.Execute(context.Background())
}

// configureLogLevelFromEnv enables debug logging when DEBUG_GYMCTL is set to
// anything other than "", "0" or "false".
func configureLogLevelFromEnv() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEBUG_GYMCTL"))) {
	case "", "0", "false":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func setupInterruptListener() chan os.Signal {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt)
	return stopChan
}

// handleInterrupt waits for a signal, logs it and exits with status 1.
func handleInterrupt(stopChan chan os.Signal, logFn func(string), exit func(int)) {
	<-stopChan
	logFn("Interrupt signal received. Exiting...")
	exit(1)
}
