// Package config assembles the immutable service configuration from the
// environment. Every required variable is validated here, once, at startup -
// a missing variable must never surface mid-run.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/cainozoic1865/wensco-pin-server1/internal/errs"
)

type Config struct {
	Server ServerConfig
	Igloo  IglooConfig
	Sheet  SheetConfig

	// Timezone is the target zone reservation date/times are interpreted in.
	Timezone string `envconfig:"TIMEZONE" default:"Asia/Taipei"`
}

type ServerConfig struct {
	Port string `envconfig:"PORT" default:"10000"`
}

type IglooConfig struct {
	ClientID     string `envconfig:"CLIENT_ID" required:"true"`
	ClientSecret string `envconfig:"CLIENT_SECRET" required:"true"`
	UserEmail    string `envconfig:"USER_EMAIL" required:"true"`
	DeviceID     string `envconfig:"DEVICE_ID" required:"true"`
	BridgeID     string `envconfig:"BRIDGE_ID" required:"true"`
}

type SheetConfig struct {
	ID                  string `envconfig:"SHEET_ID" required:"true"`
	Name                string `envconfig:"SHEET_NAME" required:"true"`
	ServiceAccountEmail string `envconfig:"GOOGLE_SERVICE_ACCOUNT_EMAIL" required:"true"`
	PrivateKey          string `envconfig:"GOOGLE_PRIVATE_KEY" required:"true"`

	// LogRange enables the run-log worksheet when set, e.g. 'Log!A:E'
	LogRange string `envconfig:"LOG_RANGE"`
}

func LoadConfig() (Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errs.Wrap(err, "failed to process env config")
	}

	return cfg, nil
}

// Location resolves the configured timezone name.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errs.Wrapf(err, "invalid timezone '%s'", c.Timezone)
	}

	return loc, nil
}
