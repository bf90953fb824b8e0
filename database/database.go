package database

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"courseportal/config"
	"courseportal/models"
	"courseportal/models/course"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DbInstance struct holds the database connection instance
type DbInstance struct {
	Db *gorm.DB
}

// Database is the global database instance
var Database DbInstance

// ConnectDb opens the configured database, runs migrations and stores the
// handle globally.
func ConnectDb() {
	db, err := Open(config.AppConfig.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
		os.Exit(2)
	}
	Database = DbInstance{Db: db}
}

// Open connects with the dialector chosen by cfg.Driver, tunes the pool and
// migrates the schema.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		// unique violations come back as gorm.ErrDuplicatedKey
		TranslateError: true,
	}
	if cfg.Logging {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	} else {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if err := TunePool(db, cfg); err != nil {
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql", "":
		return postgres.New(postgres.Config{DSN: cfg.DSN()}), nil
	case "mysql":
		return mysql.Open(cfg.DSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

// TunePool applies the connection pool limits.
func TunePool(db *gorm.DB, cfg config.DBConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get database instance: %w", err)
	}

	maxOpen := cfg.MaxConnections
	if maxOpen <= 0 {
		maxOpen = 10
	}
	if strings.EqualFold(cfg.Driver, "sqlite") {
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY
		maxOpen = 1
	}
	maxIdle := maxOpen / 2
	if maxIdle < 1 {
		// an in-memory sqlite database disappears with its last connection
		maxIdle = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxIdleTime(cfg.IdleTimeout)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
	return nil
}

// RunMigrations performs database migrations
func RunMigrations(db *gorm.DB) error {
	log.Println("[DB] Running Migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.LoginTracking{},
		&models.RevokedToken{},
		&course.Course{},
		&course.CourseVersion{},
		&course.Enrollment{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("[DB] Migrations completed successfully.")
	return nil
}

// Close releases the underlying pool.
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
