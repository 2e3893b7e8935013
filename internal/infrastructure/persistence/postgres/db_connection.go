// Package postgres provides the PostgreSQL implementation of the repository
// interfaces via GORM.
package postgres

import (
	"context"
	"time"

	"github.com/wrensec/keygate/internal/config"
	"github.com/wrensec/keygate/internal/domain/models"
	"github.com/wrensec/keygate/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDBConnection opens the Postgres connection pool and ensures the schema
// for the access-key table exists.
func NewDBConnection(cfg *config.DatabaseConfig, log logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.AccessKey{}); err != nil {
		return nil, err
	}

	log.Info(context.Background(), "database connection established",
		logger.String("host", cfg.Host),
		logger.String("database", cfg.Database),
	)

	return db, nil
}
