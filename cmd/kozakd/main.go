// Command kozakd runs the crafting economy service.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/R3E-Network/kozak_economy/internal/app/runtime"
)

func main() {
	configPath := flag.String("config", os.Getenv("KOZAK_CONFIG"), "path to the YAML configuration file (optional)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := runtime.NewApplication(ctx, *configPath, *envFile)
	if err != nil {
		log.Fatalf("initialise: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Printf("server error: %v", err)
	}

	log.Printf("shutting down...")
	if err := application.Shutdown(context.Background()); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
