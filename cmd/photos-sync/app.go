package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/photos-network/photos-sync/internal/certgen"
	"github.com/photos-network/photos-sync/internal/client/api"
	"github.com/photos-network/photos-sync/internal/client/mediastore"
	"github.com/photos-network/photos-sync/internal/client/photosync"
	"github.com/photos-network/photos-sync/internal/client/storage"
	"github.com/photos-network/photos-sync/internal/config"
	"github.com/photos-network/photos-sync/internal/db"
	"github.com/photos-network/photos-sync/internal/models"
	"github.com/photos-network/photos-sync/internal/repository"
	"github.com/photos-network/photos-sync/internal/server/handler/http"
	"github.com/photos-network/photos-sync/internal/service"
)

const (
	settingsFile = "settings.bin"
	tlsCertFile  = "control.crt"
	tlsKeyFile   = "control.key"
	userFile     = "user.bin"
	saltFile     = "storage.salt"
	shutdownWait = 5 * time.Second
)

// app holds the wired components for one process.
type app struct {
	opts *config.Options
	log  *zap.Logger

	db       *sql.DB
	settings *repository.SettingsRepository
	users    *repository.UserRepository
	photos   *repository.PhotoRepository
	client   *api.Client
	worker   *photosync.Worker
	auth     *service.AuthService
	photoSvc *service.PhotoService
}

func newApp(opts *config.Options, log *zap.Logger) (*app, error) {
	if opts.Passphrase == "" {
		return nil, errors.New("a storage passphrase is required (PHOTOS_PASSPHRASE or config file)")
	}
	aead, err := storage.NewAEADFromPassphrase([]byte(opts.Passphrase), filepath.Join(opts.DataDir, saltFile))
	if err != nil {
		return nil, fmt.Errorf("storage key: %w", err)
	}

	httpClient, err := api.NewHTTPClient(opts.CAFile)
	if err != nil {
		return nil, err
	}

	conn, dialect, err := db.Open(opts.DatabaseDriver, opts.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("cannot init database: %w", err)
	}

	a := &app{opts: opts, log: log, db: conn}
	a.settings = repository.NewSettingsRepository(
		storage.New[models.Settings](filepath.Join(opts.DataDir, settingsFile), aead, log),
		repository.NewCache[models.Settings](),
		log,
	)
	a.client = api.New(httpClient, a.settings.Host, log)
	a.users = repository.NewUserRepository(
		storage.New[models.User](filepath.Join(opts.DataDir, userFile), aead, log),
		a.client,
		a.settings,
		repository.NewCache[models.User](),
		opts.RedirectURL,
		log,
	)
	a.photos = repository.NewPhotoRepository(conn, dialect)
	a.worker = photosync.New(
		mediastore.NewDirStore(opts.MediaRoot, log),
		a.photos,
		log,
		photosync.WithPrune(opts.Prune),
	)
	a.auth = service.NewAuthService(a.users, a.settings, a.client, opts.RedirectURL)
	a.photoSvc = service.NewPhotoService(a.photos, a.client, a.users, a.settings)
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func (a *app) router() nethttp.Handler {
	return http.NewRouter(http.Handlers{
		Settings: &http.SettingsHandler{Settings: a.settings},
		User:     &http.UserHandler{AuthService: a.auth},
		Photos:   &http.PhotoHandler{PhotoService: a.photoSvc},
		Sync:     &http.SyncHandler{Sync: a.worker},
	}, a.opts.APIToken, a.log)
}

// run executes one command. serve blocks until ctx is done.
func (a *app) run(ctx context.Context, cmd string, in io.Reader, out io.Writer) error {
	switch cmd {
	case "serve":
		return a.serve(ctx)
	case "sync":
		res := a.worker.Run(ctx)
		if err := printJSON(out, res); err != nil {
			return err
		}
		if res.Outcome == photosync.SyncFailed {
			return fmt.Errorf("sync failed: %s", res.Reason)
		}
		return nil
	case "setup":
		s := storage.PromptForSettings(in, out, a.settings.Current())
		if _, err := a.settings.Replace(s); err != nil {
			return err
		}
		fmt.Fprintln(out, "Settings saved")
		return nil
	case "authorize-url":
		u, state, err := a.auth.AuthorizeURL("")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\nstate: %s\n", u, state)
		return nil
	case "login":
		if a.opts.AuthCode == "" {
			return errors.New("please provide -code=<authorization code>")
		}
		u, err := a.auth.SignIn(ctx, a.opts.AuthCode)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Signed in as %s %s (%s)\n", u.Firstname, u.Lastname, u.ID)
		return nil
	case "logout":
		if err := a.auth.SignOut(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Signed out")
		return nil
	case "whoami":
		u, err := a.auth.CurrentUser(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s (%s)\n", u.Firstname, u.Lastname, u.ID)
		return nil
	case "settings":
		s := a.settings.Current()
		if s.ClientSecret != "" {
			s.ClientSecret = "********"
		}
		return printJSON(out, s)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (a *app) serve(ctx context.Context) error {
	a.worker.Start(ctx, a.opts.SyncInterval.Duration)

	go func() {
		var prev *models.Settings
		for s := range a.settings.Watch(ctx, a.opts.SettingsPollInterval.Duration) {
			if prev == nil || *prev != s {
				a.log.Info("settings", zap.String("host", s.Host), zap.Stringer("privacy", s.PrivacyState))
			}
			cur := s
			prev = &cur
		}
	}()

	server := &nethttp.Server{
		Addr:              a.opts.Listen,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if a.opts.TLS {
		cert, err := certgen.EnsureServerCertificate(
			filepath.Join(a.opts.DataDir, tlsCertFile),
			filepath.Join(a.opts.DataDir, tlsKeyFile),
			certgen.HostsFor(a.opts.Listen),
		)
		if err != nil {
			return fmt.Errorf("control API certificate: %w", err)
		}
		server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info("starting control API", zap.String("addr", a.opts.Listen), zap.Bool("tls", a.opts.TLS))
		if a.opts.TLS {
			errc <- server.ListenAndServeTLS("", "")
			return
		}
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
