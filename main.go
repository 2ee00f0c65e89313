package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"libris-backend/internal/catalog"
	"libris-backend/internal/circulation"
	"libris-backend/internal/members"
	"libris-backend/internal/platform/apierr"
	"libris-backend/internal/platform/db"
	"libris-backend/internal/platform/logging"
	"libris-backend/internal/reports"
)

func main() {
	configPath := flag.String("config", db.DefaultConfigPath, "path to config.yaml")
	flag.Parse()

	// 設定読み込み
	cfg, err := db.LoadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		logrus.WithError(err).Fatal("init logger")
	}
	log.WithField("mode", cfg.Mode).Info("starting")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("exit")
		os.Exit(1)
	}
}

// run はストアを開いてからサーバ停止までを受け持つ。ストアは必ずここで閉じる
func run(cfg *db.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.WithError(err).Error("close store")
			return
		}
		log.Info("store closed")
	}()

	if err := db.EnsureSchema(ctx, conn); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	log.WithField("path", cfg.DB.Path).Info("store ready")

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(cfg, conn, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSEnabled() {
			log.Infof("listening on https://%s", cfg.Server.Addr)
			err = srv.ListenAndServeTLS(cfg.Certificate.Cert, cfg.Certificate.Key)
		} else {
			log.Infof("listening on http://%s", cfg.Server.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	var serveErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("serve: %w", err)
		}
	}
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
	return serveErr
}

func newRouter(cfg *db.Config, conn *sqlx.DB, log *logrus.Logger) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(logging.Middleware(log), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if cfg.Mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", logging.HeaderRequestID},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", logging.HeaderRequestID},
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) {
		if err := conn.PingContext(c.Request.Context()); err != nil {
			logging.FromContext(c.Request.Context(), log).WithError(err).Error("health check")
			apierr.Abort(c, apierr.ErrInternal(apierr.MsgInternal))
			return
		}
		c.String(http.StatusOK, "ok")
	})

	// /api/v1
	api := r.Group("/api/v1")
	circ := circulation.NewService(conn, log)
	catalog.RegisterRoutes(api, catalog.NewService(conn, log))
	members.RegisterRoutes(api, members.NewService(conn, log))
	circulation.RegisterRoutes(api, circ)
	reports.RegisterRoutes(api, reports.NewService(circ))

	r.NoRoute(func(c *gin.Context) {
		apierr.Abort(c, apierr.ErrNotFound("no route for "+c.Request.URL.Path))
	})

	return r
}
