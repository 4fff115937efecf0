// Command chartoracle runs the AI trading prediction dashboard. It loads
// configuration, wires the market data provider, Gemini client, gallery
// store, and orchestrator together, and starts the terminal UI. With the UI
// disabled it runs a single headless market prediction and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/finlens/chartoracle/internal/catalog"
	"github.com/finlens/chartoracle/internal/config"
	"github.com/finlens/chartoracle/internal/gallery"
	"github.com/finlens/chartoracle/internal/gemini"
	"github.com/finlens/chartoracle/internal/logger"
	"github.com/finlens/chartoracle/internal/marketdata"
	"github.com/finlens/chartoracle/internal/models"
	"github.com/finlens/chartoracle/internal/orchestrator"
	"github.com/finlens/chartoracle/internal/telegram"
	"github.com/finlens/chartoracle/internal/ui"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// Optional; environment variables may come from the shell instead.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting chartoracle")

	cat := catalog.Default()
	provider := marketdata.NewSyntheticProvider(cfg.Market.LatencyMin, cfg.Market.LatencyMax)
	predictor := gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.APIBaseURL, cfg.Gemini.Timeout)

	store := gallery.New(cfg.Gallery.FilePath)
	store.Load()

	var notifier orchestrator.Notifier
	if cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to create Telegram client: %v", err)
		}
		notifier = tg
		logger.Info("Telegram notifications enabled")
	}

	if !cfg.UI.Enabled {
		runHeadless(cat, provider, predictor, store, notifier, cfg)
		return
	}

	// The confirmation modal needs the app, and the app needs the
	// orchestrator, so the confirm hook is bound through a late-set variable.
	var app *ui.App
	orch := orchestrator.New(cat, provider, predictor, store, orchestrator.Config{
		Confirm: func(inst models.Instrument, prediction models.Prediction) bool {
			return app.ConfirmSave(inst, prediction)
		},
		Notifier:      notifier,
		StaleGuard:    cfg.UI.StaleGuard,
		MaxImageBytes: cfg.MaxImageBytes(),
	})
	app = ui.NewApp(orch, cat)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		app.Stop()
	}()

	if err := app.Run(); err != nil {
		logger.Fatal("Dashboard failed: %v", err)
	}
	logger.Info("Shutdown complete")
}

// runHeadless performs one market prediction for the catalog's first
// instrument and prints the plan. Useful for smoke tests and cron-style runs.
func runHeadless(cat *catalog.Catalog, provider marketdata.Provider, predictor orchestrator.Predictor, store *gallery.Store, notifier orchestrator.Notifier, cfg *config.Config) {
	orch := orchestrator.New(cat, provider, predictor, store, orchestrator.Config{
		Notifier:      notifier,
		StaleGuard:    cfg.UI.StaleGuard,
		MaxImageBytes: cfg.MaxImageBytes(),
	})

	done := make(chan struct{}, 1)
	orch.SetOnUpdate(func() {
		view := orch.View()
		if view.Slot.State == orchestrator.StateReady || view.Slot.State == orchestrator.StateFailed {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Gemini.Timeout+10*time.Second)
	defer cancel()

	inst := cat.First()
	logger.Info("Running headless prediction for %s", inst.ID)
	if err := orch.SelectInstrument(ctx, inst.ID); err != nil {
		logger.Fatal("Failed to select instrument: %v", err)
	}

	select {
	case <-ctx.Done():
		logger.Fatal("Timed out waiting for prediction")
	case <-done:
	}

	view := orch.View()
	if view.Slot.State == orchestrator.StateFailed {
		logger.Fatal("Prediction failed: %s", view.Slot.Reason)
	}

	p := view.Slot.Prediction
	fmt.Printf("%s %s: %s\n", inst.ID, p.Signal, p.Reasoning)
	if p.HasTargets() {
		fmt.Printf("  entry %.5f  take profit %.5f  stop loss %.5f\n", *p.EntryPrice, *p.TakeProfit, *p.StopLoss)
	}
}
