// Package config reads process settings from the environment, after
// optionally loading a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/email"
)

// LoadDotEnv loads the given files (".env" by default) into the environment.
// Variables already set win over file values, and missing files are not an
// error.
func LoadDotEnv(logger *slog.Logger, files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		switch {
		case err == nil:
			logger.Info("loaded env file", "file", f)
		case errors.Is(err, fs.ErrNotExist):
		default:
			logger.Warn("failed to load env file", "file", f, "error", err)
		}
	}
}

func String(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func Required(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s environment variable is required", key)
	}
	return v, nil
}

func Int(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func Bool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func Duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func Decimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// List splits a comma separated variable, dropping empty entries.
func List(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SMTP reads the mail server settings used by the notifier.
func SMTP() (email.Config, error) {
	host, err := Required("SMTP_HOST")
	if err != nil {
		return email.Config{}, err
	}
	port, err := Int("SMTP_PORT", 587)
	if err != nil {
		return email.Config{}, err
	}
	mandatory, err := Bool("SMTP_TLS_MANDATORY", false)
	if err != nil {
		return email.Config{}, err
	}

	return email.Config{
		Host:         host,
		Port:         port,
		Username:     os.Getenv("SMTP_USERNAME"),
		Password:     os.Getenv("SMTP_PASSWORD"),
		From:         String("SMTP_FROM", "orders@storefront.local"),
		TLSMandatory: mandatory,
	}, nil
}
