// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON config file and
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Duration is a time.Duration that reads "30s"-style strings from JSON.
type Duration struct {
	time.Duration
}

// UnmarshalJSON accepts either a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		d.Duration = v
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration %s", b)
	}
	d.Duration = time.Duration(n)
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Options holds the configuration values for the application.
type Options struct {
	// Command selects what the binary does (serve, sync, setup, ...).
	Command string `json:"-"`

	// Listen is the control API's listening address (ip:port).
	Listen string `json:"listen"`

	// DataDir holds the encrypted settings and user documents and the default database.
	DataDir string `json:"data_dir"`

	// MediaRoot is the directory tree scanned for photos.
	MediaRoot string `json:"media_root"`

	// DatabaseDriver is "sqlite" or "postgres".
	DatabaseDriver string `json:"database_driver"`

	// DatabaseDSN is the database file (sqlite) or connection string (postgres).
	// Empty means photos.db inside DataDir.
	DatabaseDSN string `json:"database_dsn"`

	// Passphrase derives the storage key. Only read from the config file or PHOTOS_PASSPHRASE.
	Passphrase string `json:"passphrase"`

	// CAFile is an optional PEM bundle trusted for the Photos.network server.
	CAFile string `json:"ca_file"`

	// RedirectURL is the OAuth redirect URI registered for this client.
	RedirectURL string `json:"redirect_url"`

	// APIToken, when set, is required as a bearer token on the control API.
	APIToken string `json:"api_token"`

	// TLS serves the control API over HTTPS with a self-signed certificate kept in DataDir.
	TLS bool `json:"tls"`

	SettingsPollInterval Duration `json:"settings_poll_interval"`
	SyncInterval         Duration `json:"sync_interval"`

	// Prune removes index rows whose file disappeared from the media root.
	Prune bool `json:"prune"`

	LogLevel string `json:"log_level"`

	// AuthCode is the authorization code for the login command.
	AuthCode string `json:"-"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// Parse parses os.Args and the environment. It exits the process on invalid input.
func Parse() *Options {
	opts, err := ParseArgs(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return opts
}

// ParseArgs builds Options from defaults, then the config file, then
// environment variables, then explicitly set flags.
func ParseArgs(args []string, getenv func(string) string) (*Options, error) {
	opts := defaults()

	fs := flag.NewFlagSet("photos-sync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.Command, "cmd", "serve", "command: serve, sync, setup, authorize-url, login, logout, whoami, settings")
	fs.StringVar(&opts.Listen, "a", opts.Listen, "control API ip:port")
	fs.StringVar(&opts.DataDir, "data", opts.DataDir, "data directory")
	fs.StringVar(&opts.MediaRoot, "media", opts.MediaRoot, "media root directory")
	fs.StringVar(&opts.DatabaseDriver, "db-driver", opts.DatabaseDriver, "database driver (sqlite|postgres)")
	fs.StringVar(&opts.DatabaseDSN, "d", opts.DatabaseDSN, "db address")
	fs.StringVar(&opts.CAFile, "ca", opts.CAFile, "PEM file with extra trusted CAs")
	fs.StringVar(&opts.RedirectURL, "redirect", opts.RedirectURL, "OAuth redirect URL")
	fs.DurationVar(&opts.SettingsPollInterval.Duration, "poll", opts.SettingsPollInterval.Duration, "settings poll interval")
	fs.DurationVar(&opts.SyncInterval.Duration, "sync-interval", opts.SyncInterval.Duration, "background sync interval")
	fs.BoolVar(&opts.Prune, "prune", opts.Prune, "remove index rows for deleted files")
	fs.BoolVar(&opts.TLS, "tls", opts.TLS, "serve the control API over HTTPS")
	fs.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "log level")
	fs.StringVar(&opts.AuthCode, "code", "", "authorization code for -cmd login")
	fs.StringVar(&opts.Config, "config", "config.json", "path to config file")
	fs.StringVar(&opts.Config, "c", "config.json", "path to config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	explicit := *opts

	// Override flags with environment variables if set
	if configPath := getenv("CONFIG"); configPath != "" && !set["c"] && !set["config"] {
		opts.Config = configPath
	}

	if opts.Config != "" {
		data, err := os.ReadFile(opts.Config)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("error while reading config file: %w", err)
		default:
			if err := json.Unmarshal(data, opts); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	envString := map[string]*string{
		"PHOTOS_LISTEN":          &opts.Listen,
		"PHOTOS_DATA_DIR":        &opts.DataDir,
		"PHOTOS_MEDIA_ROOT":      &opts.MediaRoot,
		"PHOTOS_DATABASE_DRIVER": &opts.DatabaseDriver,
		"PHOTOS_DATABASE_DSN":    &opts.DatabaseDSN,
		"PHOTOS_PASSPHRASE":      &opts.Passphrase,
		"PHOTOS_CA_FILE":         &opts.CAFile,
		"PHOTOS_REDIRECT_URL":    &opts.RedirectURL,
		"PHOTOS_API_TOKEN":       &opts.APIToken,
		"PHOTOS_LOG_LEVEL":       &opts.LogLevel,
	}
	for key, dst := range envString {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	if v := getenv("PHOTOS_SYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PHOTOS_SYNC_INTERVAL: %w", err)
		}
		opts.SyncInterval.Duration = d
	}
	envBool := map[string]*bool{
		"PHOTOS_PRUNE": &opts.Prune,
		"PHOTOS_TLS":   &opts.TLS,
	}
	for key, dst := range envBool {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}

	// flags given explicitly win over the file and the environment
	reapplyFlags(opts, &explicit, set)

	if opts.DatabaseDSN == "" && (opts.DatabaseDriver == "" || opts.DatabaseDriver == "sqlite") {
		opts.DatabaseDSN = filepath.Join(opts.DataDir, "photos.db")
	}
	if opts.SettingsPollInterval.Duration <= 0 || opts.SyncInterval.Duration <= 0 {
		return nil, errors.New("intervals must be positive")
	}
	return opts, nil
}

func defaults() *Options {
	base := "."
	if dir, err := os.UserConfigDir(); err == nil {
		base = dir
	}
	media := "Pictures"
	if home, err := os.UserHomeDir(); err == nil {
		media = filepath.Join(home, "Pictures")
	}
	return &Options{
		Listen:               "localhost:8686",
		DataDir:              filepath.Join(base, "photos-sync"),
		MediaRoot:            media,
		DatabaseDriver:       "sqlite",
		RedirectURL:          "photosapp://authenticate",
		SettingsPollInterval: Duration{30 * time.Second},
		SyncInterval:         Duration{15 * time.Minute},
		LogLevel:             "info",
	}
}

func reapplyFlags(dst, src *Options, set map[string]bool) {
	pick := func(name string, apply func()) {
		if set[name] {
			apply()
		}
	}
	pick("a", func() { dst.Listen = src.Listen })
	pick("data", func() { dst.DataDir = src.DataDir })
	pick("media", func() { dst.MediaRoot = src.MediaRoot })
	pick("db-driver", func() { dst.DatabaseDriver = src.DatabaseDriver })
	pick("d", func() { dst.DatabaseDSN = src.DatabaseDSN })
	pick("ca", func() { dst.CAFile = src.CAFile })
	pick("redirect", func() { dst.RedirectURL = src.RedirectURL })
	pick("poll", func() { dst.SettingsPollInterval = src.SettingsPollInterval })
	pick("sync-interval", func() { dst.SyncInterval = src.SyncInterval })
	pick("prune", func() { dst.Prune = src.Prune })
	pick("tls", func() { dst.TLS = src.TLS })
	pick("log-level", func() { dst.LogLevel = src.LogLevel })
}
