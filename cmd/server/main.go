package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bankcards/internal/cardnumber"
	"bankcards/internal/clock"
	"bankcards/internal/config"
	"bankcards/internal/db"
	"bankcards/internal/handlers"
	"bankcards/internal/scheduler"
	"bankcards/internal/services"
	"bankcards/internal/store"
	"bankcards/internal/websocket"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	cipher, err := cardnumber.NewCipher(cfg.CardEncryptionKey)
	if err != nil {
		log.WithError(err).Fatal("invalid card encryption key")
	}

	cards := store.NewCardStore(database)
	transfers := store.NewTransferStore(database)
	owners := store.NewOwnerStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()
	clk := clock.System()

	cardService := services.NewCardService(txRunner, cards, owners, audit, cipher, clk, hub, cfg.TransferMaxAmount, log)
	transferService := services.NewTransferService(txRunner, cards, transfers, audit, clk, hub, cfg.TransferMaxAmount, log)

	sweeper := scheduler.New(cardService, log)
	if err := sweeper.Start(cfg.SweepDailySpec, cfg.SweepSafetySpec); err != nil {
		log.WithError(err).Fatal("failed to start expiration sweeper")
	}
	defer sweeper.Stop()

	handler := handlers.New(cfg, cardService, transferService, owners, audit, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("card service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("shutdown error")
	}
}
