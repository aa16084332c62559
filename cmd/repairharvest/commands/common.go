// Package commands implements CLI command handlers for repairharvest.
package commands

import (
	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/repairharvest/internal/observability"
	"github.com/Sumatoshi-tech/repairharvest/pkg/config"
	"github.com/Sumatoshi-tech/repairharvest/pkg/version"
)

// telemetryOverrides are command line values that take precedence over the config file.
type telemetryOverrides struct {
	logLevel        string
	logJSON         bool
	otlpEndpoint    string
	diagnosticsAddr string
}

// observabilityConfig maps the loaded configuration onto observability settings.
func observabilityConfig(cfg *config.Config, mode observability.AppMode, over telemetryOverrides) (observability.Config, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.Environment = cfg.Observability.Environment
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Observability.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.Prometheus = cfg.Observability.Prometheus
	obsCfg.LogJSON = cfg.Logging.Format == "json"

	levelName := cfg.Logging.Level
	if over.logLevel != "" {
		levelName = over.logLevel
	}

	level, err := observability.ParseLevel(levelName)
	if err != nil {
		return observability.Config{}, err
	}

	obsCfg.LogLevel = level

	if over.logJSON {
		obsCfg.LogJSON = true
	}

	if over.otlpEndpoint != "" {
		obsCfg.OTLPEndpoint = over.otlpEndpoint
	}

	if diagnosticsAddr(cfg, over) != "" {
		obsCfg.Prometheus = true
	}

	return obsCfg, nil
}

func diagnosticsAddr(cfg *config.Config, over telemetryOverrides) string {
	if over.diagnosticsAddr != "" {
		return over.diagnosticsAddr
	}

	return cfg.Observability.DiagnosticsAddr
}

// paint returns a printer for attrs, plain when noColor is set.
func paint(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}

	return c
}
