package repository

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	cfg "github.com/feichai0017/sit-pipeline/config"
	"github.com/feichai0017/sit-pipeline/internal/models"
)

// ErrRecordNotFound is returned by lookups that match no row.
var ErrRecordNotFound = errors.New("record not found")

// Tables managed by AutoMigrate.
var schema = []interface{}{
	&models.Scan{},
	&models.ScanFile{},
	&models.Candidate{},
	&models.SitDefinition{},
	&models.SitElement{},
	&models.SitElementGroup{},
	&models.SitGroupElement{},
	&models.SitFilter{},
}

func getLogger(level string) gormlogger.Interface {
	var lvl gormlogger.LogLevel
	switch strings.ToLower(level) {
	case "silent":
		lvl = gormlogger.Silent
	case "info", "debug":
		lvl = gormlogger.Info
	case "error":
		lvl = gormlogger.Error
	default:
		lvl = gormlogger.Warn
	}
	return gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  lvl,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		},
	)
}

// NewGormDB opens the configured database (postgres or sqlite), applies the
// pool settings and migrates the schema when enabled.
func NewGormDB(c *cfg.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(c.Driver) {
	case "postgres", "postgresql", "":
		dialector = postgres.Open(c.DSN)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(c.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: getLogger(logLevel)})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := configureConnectionPool(db, c); err != nil {
		return nil, err
	}
	if c.AutoMigrate {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func configureConnectionPool(db *gorm.DB, c *cfg.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if c.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
	return nil
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(schema...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// NewMemoryDB opens a private in-memory sqlite database with the schema
// applied. Used by tests and the offline CLI.
func NewMemoryDB(name string) (*gorm.DB, error) {
	return NewGormDB(&cfg.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", strings.NewReplacer("/", "_", " ", "_").Replace(name)),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	}, "silent")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}
