package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/foodgram-app/backend/config"
	"github.com/foodgram-app/backend/internal/logger"
)

// New opens a gorm connection to postgres using the loaded config.
func New(cfg *config.Config) (*gorm.DB, error) {
	logger.Log.Infow("connecting to database",
		"host", cfg.DBHost, "port", cfg.DBPort, "user", cfg.DBUser, "db", cfg.DBName)

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	logger.Log.Info("successfully connected to database")
	return db, nil
}
