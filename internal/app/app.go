// Package app wires the DialogiX server runtime: config, logging, HTTP
// routes, and the realtime gateway.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	authapi "github.com/Kiplya/DialogiX/internal/auth/api"
	"github.com/Kiplya/DialogiX/internal/auth/session"
	"github.com/Kiplya/DialogiX/internal/chat"
	"github.com/Kiplya/DialogiX/internal/identity"
	"github.com/Kiplya/DialogiX/internal/realtime"
)

// App is the DialogiX server runtime. It owns the database pool, the
// stores, and the HTTP and WebSocket surfaces built on top of them.
type App struct {
	cfg Config
	log *slog.Logger

	pool      *pgxpool.Pool
	dbEnabled bool

	sessions *session.Manager

	ws   *realtime.WSGateway
	auth *authapi.Handler
}

// peerDirectory adapts the identity store to chat peer lookups.
type peerDirectory struct {
	users identity.Store
}

func (p peerDirectory) PeerByID(ctx context.Context, userID string) (chat.Peer, error) {
	u, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return chat.Peer{}, err
	}
	return chat.Peer{ID: u.ID, Username: u.Username, IsOnline: u.IsOnline}, nil
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	keyHex := cfg.MessageKeyHex
	if keyHex == "" {
		// Without a configured key, stored messages become unreadable
		// across restarts. Acceptable for development only.
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		keyHex = hex.EncodeToString(key)
		log.Warn("chat.message_key.ephemeral")
	}
	crypter, err := chat.NewCrypter(keyHex)
	if err != nil {
		return nil, err
	}

	var (
		pool      *pgxpool.Pool
		dbEnabled bool

		users     identity.Store
		sessStore session.Store
		blocks    chat.BlockStore
	)

	if cfg.DatabaseURL != "" {
		pool, err = NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.MigrateOnStart {
			if err := MigrateDB(pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		dbEnabled = true
		log.Info("db.enabled.postgres_store")
	} else {
		log.Info("db.disabled.inmemory_store")
	}

	var chats chat.Store
	if dbEnabled {
		users = identity.NewPostgresStore(pool)
		sessStore = session.NewPostgresStore(pool)
		chats = chat.NewPostgresStore(pool, crypter)
		blocks = chat.NewPostgresBlockStore(pool)
	} else {
		memUsers := identity.NewMemoryStore()
		users = memUsers
		sessStore = session.NewMemoryStore()
		chats = chat.NewMemoryStore(crypter, peerDirectory{users: memUsers})
		blocks = chat.NewMemoryBlockStore()
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}
	codec, err := session.NewTokenCodec(sessCfg)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}
	sessions := session.NewManager(sessCfg, codec, sessStore, users)

	if purged, err := sessions.PurgeExpired(ctx, time.Now().UTC()); err != nil {
		log.Error("session.purge.fail", "err", err)
	} else if purged > 0 {
		log.Info("session.purge", "count", purged)
	}

	peers := peerDirectory{users: users}
	registry := realtime.NewRegistry(log)
	presence := realtime.NewPresence(log, registry, users, chats)
	handler := realtime.NewHandler(log, registry, presence, chats, blocks, peers)
	ws := realtime.NewWSGateway(log, handler, sessions)

	authCfg := authapi.LoadConfigFromEnv()
	auth := authapi.NewHandler(log, authCfg, users, sessions, chats, blocks)

	return &App{
		cfg:       cfg,
		log:       log,
		pool:      pool,
		dbEnabled: dbEnabled,
		sessions:  sessions,
		ws:        ws,
		auth:      auth,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or a
// fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.pool, a.dbEnabled, a.ws, a.auth)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(WithCORS(mux, a.cfg, a.log), a.log),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if a.pool != nil {
		a.pool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}
