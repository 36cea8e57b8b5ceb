package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cinelog/cinelog/internal"
	"github.com/cinelog/cinelog/pkg/logger"
	"github.com/mitchellh/go-homedir"
)

var log = logger.Get("Main")

// main loads the user's Cinelog configuration (defaulting to
// ~/.config/cinelog/config.yaml) and runs the server until interrupted.
func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to the YAML configuration file")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	flag.Parse()

	if *verbose {
		logger.SetMinLoggingLevel(logger.VERBOSE.Level())
	} else {
		logger.SetMinLoggingLevel(logger.INFO.Level())
	}

	config := internal.CinelogConfig{}
	if err := config.LoadFromFile(*configPath); err != nil {
		log.Emit(logger.FATAL, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go listenForInterrupt(cancel)

	if err := internal.New(config).Run(ctx); err != nil {
		log.Emit(logger.FATAL, "Cinelog stopped with error: %v\n", err)
		os.Exit(1)
	}

	log.Emit(logger.STOP, "Cinelog shutdown complete\n")
}

func listenForInterrupt(cancel context.CancelFunc) {
	exitChannel := make(chan os.Signal, 1)
	signal.Notify(exitChannel, os.Interrupt, syscall.SIGTERM)

	<-exitChannel
	log.Emit(logger.INFO, "Interrupt detected!\n")
	cancel()
}

func defaultConfigPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return "config.yaml"
	}

	return filepath.Join(home, ".config", "cinelog", "config.yaml")
}
