package main

import (
	"log"
	"net/http"

	"github.com/uaeinnovatehub/kic-ledger/internal/config"
	"github.com/uaeinnovatehub/kic-ledger/internal/events/kafka"
	"github.com/uaeinnovatehub/kic-ledger/internal/interfaces"
	"github.com/uaeinnovatehub/kic-ledger/internal/ledger"
	"github.com/uaeinnovatehub/kic-ledger/internal/query"
	"github.com/uaeinnovatehub/kic-ledger/internal/server"
	"github.com/uaeinnovatehub/kic-ledger/internal/storage/memory"
	"github.com/uaeinnovatehub/kic-ledger/internal/storage/postgres"
	"github.com/uaeinnovatehub/kic-ledger/internal/storage/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var store interfaces.LedgerStore
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		sqliteStore, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("open sqlite store: %v", err)
		}
		defer sqliteStore.Close()
		store = sqliteStore
	case config.DriverPostgres:
		pgStore, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open postgres store: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
	default:
		store = memory.NewStore()
	}

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	engine := ledger.NewLedger(store, publisher)
	queries := query.NewFacade(store)
	srv := server.New(engine, queries)

	log.Printf("kic-ledger listening on %s (storage: %s)", cfg.HTTPAddr, cfg.StorageDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, srv.Routes()))
}
