package di

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/samber/do/v2"

	"github.com/filibuster-io/filibuster-go/internal/config"
)

// LoggerService wraps the process-wide zerolog.Logger.
type LoggerService struct {
	Logger *zerolog.Logger
}

// NewLogger builds the zerolog.Logger from LoggingConfig: level, output
// target (stdout/stderr/file), and json-vs-console formatting.
func NewLogger(i do.Injector) (*LoggerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	lc := cfgSvc.Config.Logging

	output, outputFile, err := selectOutput(lc.Output)
	if err != nil {
		return nil, fmt.Errorf("open log output %s: %w", lc.Output, err)
	}

	var writer io.Writer = output
	if shouldUsePretty(lc, outputFile) {
		writer = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05", NoColor: false}
	}

	logger := zerolog.New(writer).
		Level(lc.ParseLevel()).
		With().
		Timestamp().
		Logger()

	return &LoggerService{Logger: &logger}, nil
}

func selectOutput(outputCfg string) (io.Writer, *os.File, error) {
	switch outputCfg {
	case "", "stdout":
		return os.Stdout, os.Stdout, nil
	case "stderr":
		return os.Stderr, os.Stderr, nil
	default:
		clean := filepath.Clean(outputCfg)
		f, err := os.OpenFile(clean, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	}
}

func shouldUsePretty(cfg config.LoggingConfig, outputFile *os.File) bool {
	if cfg.Pretty {
		return true
	}
	switch cfg.Format {
	case "json":
		return false
	case "console":
		return outputFile != nil && isatty.IsTerminal(outputFile.Fd())
	default:
		return outputFile != nil && isatty.IsTerminal(outputFile.Fd())
	}
}
