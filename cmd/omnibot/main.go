package main

import (
	"context"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"omnibot-console/internal/alerts"
	"omnibot-console/internal/api"
	"omnibot-console/internal/appbus"
	"omnibot-console/internal/config"
	"omnibot-console/internal/export"
	"omnibot-console/internal/netclient"
	"omnibot-console/internal/routes"
	"omnibot-console/internal/session"
	"omnibot-console/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "omnibot:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}

	if cfg.LogFile != "" {
		f, err := tea.LogToFile(cfg.LogFile, "omnibot")
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
	} else {
		// Keep stray log output away from the alternate screen.
		log.SetOutput(os.Stderr)
	}

	store, err := session.Open(cfg.StatePath)
	if err != nil {
		return err
	}
	defer store.Close()

	bus := appbus.New()
	defer bus.Close()

	client := api.New(api.Config{
		BaseURL:     cfg.APIBaseURL,
		IdPBaseURL:  cfg.IdPBaseURL,
		Strategy:    cfg.AuthStrategy,
		HTTPClient:  netclient.NewClient(bus),
		TokenSource: store.Token,
	})

	exporter, err := export.New(cfg.ExportDir)
	if err != nil {
		return err
	}

	// Mirror writes made by other console processes onto the bus. Local
	// writes never come through here; the watcher filters them out.
	watcher := session.NewWatcher(store, cfg.PollInterval, func(c session.Change) {
		switch c.Key {
		case session.KeyToken:
			bus.Publish(appbus.SessionChanged{TokenPresent: c.Value != ""})
		case session.KeyRoute:
			bus.Publish(appbus.SessionChanged{
				TokenPresent: store.Authenticated(),
				Route:        routes.ID(c.Value),
			})
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	model := ui.NewModel(ui.Deps{
		Cfg:      cfg,
		Store:    store,
		Client:   client,
		Bus:      bus,
		Feed:     alerts.New(nil),
		Exporter: exporter,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run console: %w", err)
	}
	return nil
}
