package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"filelinker/internal/config"
	"filelinker/internal/database"
	"filelinker/internal/database/migration"
	"filelinker/internal/model"
	"filelinker/internal/repository"
	"filelinker/internal/repository/memory"
	"filelinker/internal/repository/sqlstore"
	"filelinker/internal/service"
)

// stores is the repository set chosen by DB_DRIVER. db is nil for the memory driver.
type stores struct {
	db        *sql.DB
	files     repository.FileRepository
	batches   repository.BatchRepository
	bans      repository.BanRepository
	deletions repository.DeletionRepository
	tx        repository.Transactor
}

// openStores connects to the configured backend and ensures its schema exists.
func openStores(ctx context.Context, c config.DatabaseConfig, logger *log.Logger) (*stores, error) {
	if c.Driver == database.DriverMemory {
		logger.Warn("memory_store_enabled", "note", "registry state is lost on restart")
		m := memory.New()
		return &stores{
			files:     m.Files(),
			batches:   m.Batches(),
			bans:      m.Bans(),
			deletions: m.Deletions(),
			tx:        m,
		}, nil
	}

	db, err := database.Open(c)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	dialect := migration.Postgres
	if c.Driver == database.DriverSQLite {
		dialect = migration.SQLite
	}
	if err := migration.EnsureMigrated(ctx, db, dialect, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &stores{
		db:        db,
		files:     sqlstore.NewFileStore(db),
		batches:   sqlstore.NewBatchStore(db),
		bans:      sqlstore.NewBanStore(db),
		deletions: sqlstore.NewDeletionStore(db),
		tx:        sqlstore.NewTxManager(db),
	}, nil
}

func (s *stores) registry(logger *log.Logger) *service.Registry {
	return service.NewRegistry(s.files, s.batches, s.bans, s.tx, logger)
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type statsSource interface {
	Stats(ctx context.Context) (model.Stats, error)
}

func printStats(ctx context.Context, w io.Writer, src statsSource) error {
	s, err := src.Stats(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "files:   %s\nbanned:  %s\nbatches: %s\n",
		humanize.Comma(int64(s.Files)), humanize.Comma(int64(s.Banned)), humanize.Comma(int64(s.Batches)))
	return err
}
