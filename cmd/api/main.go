package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskera.org/internal/auth"
	"taskera.org/internal/httpapi"
	"taskera.org/internal/obs"
	"taskera.org/internal/org"
	"taskera.org/internal/store/pg"
	"taskera.org/internal/tasks"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	if os.Getenv("TASKERA_AUTH_SECRET") == "" {
		log.Fatal("TASKERA_AUTH_SECRET is required")
	}
	dsn := os.Getenv("TASKERA_PG_DSN")
	if dsn == "" {
		log.Fatal("TASKERA_PG_DSN is required")
	}
	addr := os.Getenv("TASKERA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	authSvc, err := auth.NewService(store.Auth())
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	orgSvc, err := org.NewService(store.Org())
	if err != nil {
		log.Fatalf("org service: %v", err)
	}
	taskSvc, err := tasks.NewService(store.Tasks())
	if err != nil {
		log.Fatalf("tasks service: %v", err)
	}

	api := httpapi.New(authSvc, orgSvc, taskSvc, httpapi.ReadyProbe{DB: store.DB()}, version)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("starting taskera-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	obs.SetReady(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("stopped")
}
