package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"permitdesk.org/internal/activity"
	"permitdesk.org/internal/authz"
	"permitdesk.org/internal/config"
	"permitdesk.org/internal/httpapi"
	"permitdesk.org/internal/obs"
	"permitdesk.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.Load()
	if cfg.PGDSN == "" {
		log.Fatal("missing DSN: set PERMITDESK_PG_DSN")
	}

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db := store.DB()

	authzStore := authz.NewPGStore(db)
	builder, err := authz.NewBuilder(authzStore, authzStore, authzStore, authzStore)
	if err != nil {
		log.Fatalf("authz builder: %v", err)
	}
	guard, err := authz.NewGuard(authzStore, authzStore, authz.NewPGRegistry(db))
	if err != nil {
		log.Fatalf("authz guard: %v", err)
	}
	masker, err := authz.NewMasker(authzStore, authzStore)
	if err != nil {
		log.Fatalf("authz masker: %v", err)
	}
	activities, err := activity.NewService(store, guard, authzStore)
	if err != nil {
		log.Fatalf("activity service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, builder, guard, masker, activities)

	handler := httpapi.RequestID(
		httpapi.LoggingJSON(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.RateLimit(
						httpapi.MaxBodyBytes(api.Handler(), cfg.MaxBodyBytes),
						cfg.RateBurst, cfg.RatePerSecond)))))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting permitdesk-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
