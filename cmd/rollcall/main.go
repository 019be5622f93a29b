package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rollcall/internal/account"
	"rollcall/internal/broadcast"
	"rollcall/internal/classroom"
	"rollcall/internal/config"
	"rollcall/internal/httpapi"
	"rollcall/internal/journal"
	"rollcall/internal/mail"
	"rollcall/internal/mint"
	"rollcall/internal/session"
	"rollcall/internal/store/mongo"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("rollcall: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := st.Disconnect(ctx); err != nil {
			log.Printf("Mongo disconnect error: %v", err)
		}
	}()

	j, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	var mailer mail.Service
	if cfg.Mail.SendgridKey != "" {
		mailer = mail.NewSendgrid(cfg.Mail.SendgridKey, cfg.Mail.FromName, cfg.Mail.FromAddress)
	} else {
		log.Println("No sendgrid key configured, email goes to the log")
		mailer = mail.Console{}
	}

	accounts := account.New(account.Config{
		Store:   st,
		Mail:    mailer,
		Secret:  cfg.Auth.Secret,
		BaseURL: cfg.Mail.BaseURL,
		AuthTTL: cfg.Auth.AuthTTL,
	})
	classrooms := classroom.New(st, nil)

	broadcaster := broadcast.New(cfg.WS.QueueSize)
	registry := session.NewRegistry(st.Sessions(), cfg.Session.TokenWindow, nil)
	controller := session.NewController(session.ControllerConfig{
		Registry:       registry,
		Mint:           mint.New(),
		Broadcaster:    broadcaster,
		Journal:        j,
		Students:       st.Students(),
		Sessions:       st.Sessions(),
		Roster:         classrooms,
		RotateInterval: cfg.Session.RotateInterval,
	})

	reconCtx, stopRecon := context.WithCancel(context.Background())
	reconciler := journal.NewReconciler(j, st.Sessions(), st.Students(), cfg.Journal.SweepInterval)
	reconciler.Start(reconCtx)

	// Repair anything a previous run left behind before serving traffic:
	// partial check-in writes, then sessions orphaned open by a crash.
	if n := reconciler.Sweep(reconCtx); n > 0 {
		log.Printf("Repaired %d partial check-in writes from a previous run", n)
	}
	if n := registry.CloseStale(reconCtx); n > 0 {
		log.Printf("Closed %d sessions orphaned by a previous run", n)
	}

	server := httpapi.NewServer(&httpapi.Options{
		Addr:        cfg.HTTP.Addr(),
		ReadTimeout: cfg.HTTP.ReadTimeout,
		Accounts:    accounts,
		Classrooms:  classrooms,
		Controller:  controller,
		Broadcaster: broadcaster,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Rollcall listening on %s", cfg.HTTP.Addr())
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		stopRecon()
		reconciler.Stop()
		return err
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down", sig)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	controller.Shutdown(shutdownCtx)
	stopRecon()
	reconciler.Stop()

	log.Println("Shutdown complete")
	return nil
}
