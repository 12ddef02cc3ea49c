package store

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// State owns the database handle shared by the flash node store and the
// custom-storage area, mirroring the teacher's db.State/DatabaseConfig
// split between configuration and an opened handle.
type State struct {
	DB *gorm.DB
}

// InitDB opens dbType ("sqlite" or "postgres") at dsn and migrates the
// schema, exactly as the teacher's DatabaseConfig.getState does for its
// own driver pair.
func InitDB(dbType, dsn string) (*State, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: dsn is required")
	}
	var dialector gorm.Dialector
	switch strings.ToLower(dbType) {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("store: unsupported database type %q (must be 'sqlite' or 'postgres')", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dbType, err)
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &State{DB: db}, nil
}
