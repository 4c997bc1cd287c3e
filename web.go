/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/Seednode/wordrace/internal/auth"
	"github.com/Seednode/wordrace/internal/challenge"
	"github.com/Seednode/wordrace/internal/content"
	"github.com/Seednode/wordrace/internal/ledger"
	"github.com/Seednode/wordrace/internal/msgcat"
	"github.com/Seednode/wordrace/internal/obslog"
	"github.com/Seednode/wordrace/internal/profile"
)

const (
	timeout         time.Duration = 10 * time.Second
	shutdownTimeout time.Duration = 5 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("wordrace v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		obslog.L().Debug("served_version",
			zap.Int("bytes", written),
			zap.String("remote", realIP(r)),
			zap.Duration("took", time.Since(startTime).Round(time.Microsecond)),
		)
	}
}

// backends are the hub's storage collaborators plus whatever must be closed
// on the way out.
type backends struct {
	questions challenge.QuestionSource
	profiles  challenge.ProfileStore
	recorder  challenge.ResultRecorder
	history   history
	closers   []func() error
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			obslog.L().Warn("backend_close_failed", zap.Error(err))
		}
	}
}

// openBackends picks Postgres or the embedded bank for questions, Postgres
// for match history when configured, and Redis or memory for profiles.
func openBackends(ctx context.Context, cfg *Config) (*backends, error) {
	b := &backends{}

	bank, err := loadBank(cfg)
	if err != nil {
		return nil, err
	}
	b.questions = bank

	if cfg.databaseURL != "" {
		db, err := ledger.Open(cfg.databaseURL, cfg.verbose)
		if err != nil {
			return nil, err
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("database handle: %w", err)
		}
		b.closers = append(b.closers, sqlDB.Close)

		store := content.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			b.close()
			return nil, err
		}

		seeded, err := store.Seed(ctx, bank)
		if err != nil {
			b.close()
			return nil, err
		}
		obslog.L().Info("questions_seeded", zap.Int64("inserted", seeded))

		l := ledger.New(db)
		if err := l.Migrate(ctx); err != nil {
			b.close()
			return nil, err
		}

		b.questions = store
		b.recorder = l
		b.history.matches = l
	}

	if cfg.redisURL != "" {
		rs, err := profile.Dial(ctx, cfg.redisURL)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, rs.Close)
		b.profiles = rs
		b.history.xp = rs
	} else {
		ms := profile.NewMemoryStore()
		b.profiles = ms
		b.history.xp = ms
	}

	return b, nil
}

func loadBank(cfg *Config) (*content.Bank, error) {
	if cfg.contentFile != "" {
		return content.LoadBank(cfg.contentFile)
	}

	return content.DefaultBank()
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	if err := obslog.Init(obslog.Options{Verbose: cfg.verbose, Format: cfg.logFormat}); err != nil {
		return err
	}
	defer obslog.Sync()

	obslog.L().Info("starting", zap.String("version", releaseVersion))

	msgs, err := msgcat.New(cfg.messagesDir)
	if err != nil {
		return err
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	var verifier *auth.Verifier
	if cfg.jwtSecret != "" {
		verifier = auth.NewVerifier(cfg.jwtSecret, cfg.jwtIssuer)
	} else {
		obslog.L().Warn("anonymous_mode", zap.String("cookie", playerCookieName))
	}

	hubCtx, stopHub := context.WithCancel(context.WithoutCancel(ctx))
	defer stopHub()

	hub := challenge.NewHub(cfg.hubOptions(), challenge.Deps{
		Questions: b.questions,
		Profiles:  b.profiles,
		Recorder:  b.recorder,
		Messages:  msgs,
	})
	hub.Start(hubCtx)

	sched, err := startScheduler(cfg, hub)
	if err != nil {
		return err
	}

	mux := httprouter.New()

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		obslog.L().Error("handler_panic", zap.String("path", r.URL.Path), zap.Any("panic", i))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	drainCtx, stopDrain := context.WithCancel(context.Background())
	defer stopDrain()

	errs := make(chan error, 64)
	go drainErrors(drainCtx, errs)

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	registerHome(cfg, mux, errs)

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	registerChallenge(cfg, "/challenge", mux, hub, verifier, b.history, errs)

	srv.RegisterOnShutdown(func() {
		n := hub.Registry().CloseAll()
		obslog.L().Info("closed_connections", zap.Int("count", n))
	})

	serveErr := make(chan error, 1)

	go func() {
		obslog.L().Info("listening", zap.String("url", fmt.Sprintf("%s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)))

		var err error
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}

	obslog.L().Info("shutting_down")

	if serr := sched.Shutdown(); serr != nil {
		obslog.L().Warn("scheduler_shutdown_failed", zap.Error(serr))
	}

	// Running sessions end as aborted and their results are queued to the
	// players before the connections are closed.
	stopHub()
	hub.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return err
}
