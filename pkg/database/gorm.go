package database

import (
	"log"
	"os"
	"time"

	"clinical-intake-be/internal/model"

	"github.com/m-mizutani/goerr/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func getLogger(isProd bool) logger.Interface {
	level := logger.Info
	if isProd {
		level = logger.Warn
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true, // turn content never reaches the SQL log
			Colorful:                  !isProd,
		},
	)
}

func configureConnectionPool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return nil
}

func NewGormDBFromDSN(dsn string, isProd bool) (*gorm.DB, error) {
	if dsn == "" {
		return nil, goerr.New("DB_CONNECTION_STRING is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: getLogger(isProd),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database")
	}

	if err := configureConnectionPool(db); err != nil {
		return nil, goerr.Wrap(err, "failed to configure connection pool")
	}

	return db, nil
}

// Models lists every table owned by the intake service, parents first.
func Models() []interface{} {
	return []interface{}{
		&model.IntakeSession{},
		&model.Turn{},
		&model.TurnEmbedding{},
		&model.SessionSummary{},
	}
}

// Migrate enables the extensions the schema depends on and brings the
// intake tables up to date. Safe to run on every start.
func Migrate(db *gorm.DB) error {
	for _, stmt := range []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return goerr.Wrap(err, "failed to set up extension", goerr.V("sql", stmt))
		}
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return goerr.Wrap(err, "failed to auto-migrate intake tables")
	}
	return nil
}
