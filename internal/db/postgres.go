package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/roomviz-backend/internal/domain"
	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

type Config struct {
	// Driver is "postgres" or "sqlite". SQLite is for local runs.
	Driver   string
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxOpen  int
	MaxIdle  int
}

func (c Config) postgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	ssl := c.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Name, ssl)
}

// GormConfig translates driver errors so unique violations surface as
// gorm.ErrDuplicatedKey on both drivers.
func GormConfig(level gormLogger.LogLevel) *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLogger.Default.LogMode(level),
	}
}

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger, cfg Config) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")
	gcfg := GormConfig(gormLogger.Warn)

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "roomviz.db"
		}
		serviceLog.Info("Opening SQLite...", "dsn", dsn)
		db, err = gorm.Open(sqlite.Open(dsn), gcfg)
	default:
		serviceLog.Info("Connecting to Postgres...", "host", cfg.Host, "name", cfg.Name)
		db, err = gorm.Open(postgres.Open(cfg.postgresDSN()), gcfg)
	}
	if err != nil {
		serviceLog.Error("Failed to open database", "error", err)
		return nil, fmt.Errorf("open database: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if cfg.MaxOpen > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpen)
		}
		if cfg.MaxIdle > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdle)
		}
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(domain.Models()...)
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}

func (s *PostgresService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
