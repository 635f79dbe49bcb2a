package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/exp/slog"

	"github.com/alovak/atm-playground/atm"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout))

	config, err := atm.LoadConfig(*configPath)
	if err != nil {
		logger.Error("loading config", "err", err)
		os.Exit(1)
	}

	app := atm.NewApp(logger, config)
	if err := app.Start(); err != nil {
		logger.Error("starting app", "err", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	app.Shutdown()
}
