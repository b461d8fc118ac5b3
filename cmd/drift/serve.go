package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"github.com/justestif/drift/internal/bridge"
	"github.com/justestif/drift/internal/config"
	"github.com/justestif/drift/internal/db"
	"github.com/justestif/drift/internal/idle"
	"github.com/justestif/drift/internal/logger"
	"github.com/justestif/drift/internal/prefs"
	"github.com/justestif/drift/internal/session"
	"github.com/justestif/drift/internal/spotify"
	"github.com/justestif/drift/internal/store"
	"github.com/justestif/drift/internal/timer"
	"github.com/justestif/drift/internal/todo"
	"github.com/justestif/drift/internal/web"
	webfs "github.com/justestif/drift/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogPath,
		MaxSizeMB:  20,
		MaxBackups: 3,
		MaxAgeDays: 14,
	})
	defer logger.L().Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence: Postgres when DATABASE_URL is set, file store otherwise.
	var (
		todoRepo  todo.Repository
		prefsRepo prefs.Repository
		tokenRepo session.TokenRepository
	)
	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()
		todoRepo = database.Todos()
		prefsRepo = database.Prefs()
		tokenRepo = database.Tokens()
		logger.Info("using postgres persistence")
	} else {
		fileStore := store.NewFileStore(cfg.DataDir)
		todoRepo = todo.NewFileRepository(fileStore)
		prefsRepo = prefs.NewFileRepository(fileStore)
		tokenRepo = session.NewFileTokenRepository(fileStore)
		logger.Info("using file persistence", logger.String("dir", fileStore.Dir()))
	}

	prefsMgr, err := prefs.NewManager(ctx, prefsRepo)
	if err != nil {
		return fmt.Errorf("loading preferences: %w", err)
	}

	todos, err := todo.NewStore(ctx, todoRepo)
	if err != nil {
		return fmt.Errorf("loading todos: %w", err)
	}

	current := prefsMgr.Get()
	engine := timer.New(current.WorkSeconds, current.BreakSeconds)

	client := spotify.New(spotify.Config{
		ClientID:     cfg.SpotifyID,
		ClientSecret: cfg.SpotifySecret,
		RedirectURI:  cfg.RedirectURI,
	})

	sessionMgr := session.New(session.Config{
		Client:       client,
		Tokens:       tokenRepo,
		ClientID:     cfg.SpotifyID,
		ClientSecret: cfg.SpotifySecret,
		RedirectURI:  cfg.RedirectURI,
		PollInterval: config.DefaultPollInterval,
	})

	idleMon := idle.NewMonitor(config.DefaultHideDelay)
	defer idleMon.Stop()

	hub := bridge.NewHub(&pageEvents{session: sessionMgr, idle: idleMon})
	go hub.Run()
	defer hub.Stop()

	// Outbound pushes to open pages.
	sessionMgr.OnChange(func() {
		hub.Broadcast(bridge.TypeSession, sessionMgr.SnapshotView())
	})
	idleMon.OnChange(func(visible bool) {
		hub.Broadcast(bridge.TypeControls, map[string]bool{
			"visible":    visible,
			"fullscreen": idleMon.Fullscreen(),
		})
	})
	engine.SetCue(func(ended timer.Phase) error {
		hub.Broadcast(bridge.TypeCue, map[string]string{"ended": ended.String()})
		return nil
	})

	go engine.Run(ctx, time.Second)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hub.Broadcast(bridge.TypeTimer, engine.Snapshot())
			}
		}
	}()

	sessionMgr.Bootstrap(ctx)
	go sessionMgr.RunPolling(ctx)

	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}
	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	server, err := web.NewServer(web.ServerConfig{
		Addr:        cfg.Addr,
		TemplatesFS: templates,
		StaticFS:    static,
		Timer:       engine,
		Todos:       todos,
		Prefs:       prefsMgr,
		Session:     sessionMgr,
		Spotify:     client,
		Hub:         hub,
		Idle:        idleMon,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return server.Run()
}

// pageEvents routes bridge reports into the session manager and the idle
// monitor.
type pageEvents struct {
	session *session.Manager
	idle    *idle.Monitor
}

func (e *pageEvents) DeviceReady(deviceID string) {
	e.session.HandleDeviceReady(deviceID)
}

func (e *pageEvents) DeviceNotReady() {
	e.session.HandleDeviceNotReady()
}

func (e *pageEvents) PlayerState(raw json.RawMessage) {
	var np spotify.NowPlaying
	if err := json.Unmarshal(raw, &np); err != nil {
		logger.Warn("invalid player state report", logger.ErrField(err))
		return
	}
	e.session.HandlePlayerState(&np)
}

func (e *pageEvents) AccountError(message string) {
	e.session.HandleAccountError(message)
}

func (e *pageEvents) PlaybackError(message string) {
	logger.Warn("bridge playback error", logger.String("message", message))
}

func (e *pageEvents) Activity() {
	e.idle.Touch()
}

func (e *pageEvents) FullscreenChanged(fullscreen bool) {
	e.idle.SetFullscreen(fullscreen)
}
