// Command collections is the back-office tool for the credit book: it lists
// receivables with their accrued charges, prints the day's WhatsApp
// reminders, settles notes and applies the database schema.
package main

import (
	"fmt"
	"os"

	"kombatmoto/backend/internal/config"
	"kombatmoto/backend/internal/logger"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "read .env: %v\n", err)
	}
	lc := logger.DefaultConfig()
	lc.Level, lc.Output = "warn", "stderr"
	if err := logger.Setup(lc); err != nil {
		fmt.Fprintf(os.Stderr, "logger setup: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(openFromEnv).Execute(); err != nil {
		logger.WithComponent("collections").Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
