package main

import (
	"os"
	"path/filepath"
	"testing"

	"calcnotify/internal/config"
)

func resetFlags(t *testing.T) {
	t.Helper()
	verbose, quiet = false, false
	t.Cleanup(func() { verbose, quiet = false, false })
}

func TestLoggingConfigComesFromFile(t *testing.T) {
	resetFlags(t)
	cfg := &config.Config{Logging: config.LoggingConfig{
		Level: "warn",
		File:  config.LoggingFileConfig{Enabled: true, Path: "/var/log/calc.log"},
	}}

	lc := loggingConfig(cfg)
	if lc.Level != "warn" {
		t.Fatalf("level = %q, want the file's level", lc.Level)
	}
	if !lc.Console {
		t.Fatalf("console must default to on")
	}
	if !lc.File.Enabled || lc.File.Path != "/var/log/calc.log" {
		t.Fatalf("file sink not carried over: %+v", lc.File)
	}

	off := false
	cfg.Logging.Console = &off
	if loggingConfig(cfg).Console {
		t.Fatalf("explicit console=false ignored")
	}
}

func TestLoggingConfigFlagsOverrideLevel(t *testing.T) {
	resetFlags(t)
	cfg := &config.Config{Logging: config.LoggingConfig{Level: "warn"}}

	verbose = true
	if got := loggingConfig(cfg).Level; got != "debug" {
		t.Fatalf("-v must win over the file level, got %q", got)
	}
	verbose, quiet = false, true
	if got := loggingConfig(cfg).Level; got != "error" {
		t.Fatalf("-q must win over the file level, got %q", got)
	}
}

func TestConfigureLoggingOpensFileSink(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "run.log")
	cfg := &config.Config{Logging: config.LoggingConfig{
		File: config.LoggingFileConfig{Enabled: true, Path: path},
	}}

	configureLogging(cfg)
	t.Cleanup(func() {
		if logCloser != nil {
			_ = logCloser.Close()
			logCloser = nil
		}
	})

	if logCloser == nil {
		t.Fatalf("file sink must come with a closer")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}
