// Package store persists papers, summaries and user data with gorm on
// SQLite or MySQL.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ryosukesatoh/researchtldr/internal/config"
)

var (
	// ErrNotFound is returned when a paper does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalidVote is returned for vote values outside -1..1.
	ErrInvalidVote = errors.New("store: vote value must be -1, 0 or 1")
)

// Store is the gorm-backed repository.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured database and migrates the schema.
func Open(cfg config.DatabaseConfig, logLevel logger.LogLevel) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.New(mysql.Config{DSN: cfg.DSN, DefaultStringSize: 191})
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("store: database connection failed: %w", err)
	}
	if cfg.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("store: resolve sql db: %w", err)
		}
		// SQLite allows one writer; concurrent batch workers queue here.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("store: migration failed: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Paper{},
		&Category{},
		&User{},
		&Bookmark{},
		&Vote{},
		&UserSettings{},
	)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ensureUser creates a bare user row for sub unless one exists.
func ensureUser(tx *gorm.DB, sub string) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&User{Sub: sub}).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
