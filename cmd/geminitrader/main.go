package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/skittixch/GeminiTrader-sub000/internal/app"
	"github.com/skittixch/GeminiTrader-sub000/internal/config"
	"github.com/skittixch/GeminiTrader-sub000/internal/logger"
)

func main() {
	cfgFlag := flag.String("config", "", "path to the configuration file")
	dumpConfig := flag.Bool("dump-config", false, "print the effective configuration (secrets masked) and exit")
	flag.Parse()

	cfgPath := *cfgFlag
	if cfgPath == "" {
		cfgPath = os.Getenv("GEMINITRADER_CONFIG")
	}
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if *dumpConfig {
		out, err := cfg.EffectiveYAML()
		if err != nil {
			log.Fatalf("rendering config: %v", err)
		}
		fmt.Print(string(out))
		return
	}

	if cfg.App.LogPath != "" {
		f, err := logger.OpenLogFile(cfg.App.LogPath)
		if err != nil {
			log.Fatalf("opening log file: %v", err)
		}
		defer f.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("config loaded from %s (mode=%s, symbol=%s)", cfgPath, cfg.Exchange.Mode, cfg.Exchange.Symbol)

	a, err := app.New(cfg, cfgPath)
	if err != nil {
		log.Fatalf("initializing app: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("run failed: %v", err)
	}
	logger.Infof("shutdown complete")
}
