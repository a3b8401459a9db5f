package main

import (
	"log"

	"github.com/aussiebroadwan/regconsole/internal/mockbackend"
	"github.com/aussiebroadwan/regconsole/pkg/slogx"
)

func main() {
	cfg, err := mockbackend.LoadServerConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := slogx.New(slogx.Config{
		Service: "authmock",
		Version: mockbackend.BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	server, err := mockbackend.NewServer(cfg, mockbackend.RateLimitsFromEnv(), logger)
	if err != nil {
		log.Fatalf("failed to initialize authmock: %v", err)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("authmock error: %v", err)
	}
}
