package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	SSLMode    string `yaml:"sslmode"`
	SQLitePath string `yaml:"sqlite_path"`
}

func (c Config) postgresDSN() string {
	if strings.TrimSpace(c.DSN) != "" {
		return c.DSN
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		sslMode,
	)
}

type Service struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

func NewService(cfg Config, logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "DBService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gormCfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverPostgres
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case DriverPostgres:
		db, err = gorm.Open(postgres.Open(cfg.postgresDSN()), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
	case DriverSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = "academy.db"
		}
		db, err = OpenSQLite(path, gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite %q: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	serviceLog.Info("Database connected", "driver", driver)
	return &Service{db: db, driver: driver, log: serviceLog}, nil
}

// OpenSQLite opens a single-connection SQLite handle. One connection keeps
// nested transactions and in-memory databases consistent.
func OpenSQLite(path string, cfg *gorm.Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = &gorm.Config{DisableForeignKeyConstraintWhenMigrating: true}
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Driver() string { return s.driver }

func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
