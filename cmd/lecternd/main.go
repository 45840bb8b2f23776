// Command lecternd runs the lectern coordinator daemon in the foreground.
// Process supervision (systemd, runit) is expected to handle restarts.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"lectern/internal/config"
	"lectern/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	// Optional .env file for local development overrides, e.g. the status
	// cache URL. Missing files are fine.
	_ = godotenv.Load()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("lecternd: %v", err)
	}
}
