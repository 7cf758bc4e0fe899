package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/cainozoic1865/wensco-pin-server1/internal/clock"
	"github.com/cainozoic1865/wensco-pin-server1/internal/config"
	"github.com/cainozoic1865/wensco-pin-server1/internal/httpd"
	"github.com/cainozoic1865/wensco-pin-server1/internal/igloo"
	"github.com/cainozoic1865/wensco-pin-server1/internal/localtime"
	"github.com/cainozoic1865/wensco-pin-server1/internal/processor"
	"github.com/cainozoic1865/wensco-pin-server1/internal/sheet"
)

const version = "v1.0.0"

func main() {
	// local development convenience; in deployment the environment is real
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	source, err := sheet.NewSource(context.Background(), sheet.Config{
		SpreadsheetID:       cfg.Sheet.ID,
		Worksheet:           cfg.Sheet.Name,
		ServiceAccountEmail: cfg.Sheet.ServiceAccountEmail,
		PrivateKey:          cfg.Sheet.PrivateKey,
		LogRange:            cfg.Sheet.LogRange,
	})
	if err != nil {
		logger.Error("unable to initialise sheet client", "error", err)
		os.Exit(1)
	}

	issuer := igloo.NewClient(igloo.Config{
		ClientID:     cfg.Igloo.ClientID,
		ClientSecret: cfg.Igloo.ClientSecret,
		UserEmail:    cfg.Igloo.UserEmail,
		DeviceID:     cfg.Igloo.DeviceID,
		BridgeID:     cfg.Igloo.BridgeID,
		Timezone:     cfg.Timezone,
	})

	proc := processor.New(source, issuer, localtime.NewParser(loc), clock.NewRealClock(), logger)

	gin.SetMode(gin.ReleaseMode)
	engine := httpd.NewRouter(httpd.NewHandler(proc, logger, version), logger)

	logger.Info("starting", "version", version, "port", cfg.Server.Port, "timezone", cfg.Timezone)

	if err := engine.Run(":" + cfg.Server.Port); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
