package main

import (
	"fmt"
	"os"

	"devblog/pkg/config"
	"devblog/pkg/handlers"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	site, err := config.LoadSite(cfg.SiteConfigPath)
	if err != nil {
		log.Fatal("loading site config", zap.Error(err))
	}
	if cfg.SessionSecret == "" {
		log.Fatal("SESSION_SECRET is required")
	}

	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(log))

	// Session Setup
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 30 * 24 * 3600, HttpOnly: true})
	r.Use(sessions.Sessions("devblog", store))

	handlers.New(cfg, site, cfg.OAuth2(), log).Register(r)

	log.Info("listening",
		zap.String("addr", cfg.Addr),
		zap.String("repository", site.Repository),
		zap.Strings("folders", site.Folders),
	)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
