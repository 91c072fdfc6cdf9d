package main

import (
	"flag"
	"log"

	"CoinPulse/internal/di"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	app, err := di.InitializeApp(*configPath)
	if err != nil {
		log.Fatalf("initialize: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}
