package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"labscan/cmd"
	"labscan/internal/config"
	"labscan/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load configuration: %v", err)
		// Use default logger config if main config fails
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	log := logger.WithComponent("main")
	if cfg != nil {
		log.Debug().Object("config", cfg).Msg("Configuration loaded")
	}

	cmd.Execute()
	os.Exit(0)
}
