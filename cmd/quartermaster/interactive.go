package main

import (
	"github.com/ShayCichocki/quartermaster/internal/tui"
)

// runInteractive starts the full-screen terminal session.
func runInteractive() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	orch, cleanup, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return tui.Run(orch, flagCaller)
}
