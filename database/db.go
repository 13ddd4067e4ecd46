// Package database opens the panel's SQLite file and owns the gorm handle.
package database

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/antarex-ai/dashboard/config"
	"github.com/antarex-ai/dashboard/database/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var db *gorm.DB

func initModels() error {
	models := []any{
		&model.AuditLog{},
		&model.Session{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			return err
		}
	}
	return nil
}

// InitDB opens (creating when needed) the database at dbPath and migrates it.
func InitDB(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), fs.ModePerm); err != nil {
		return err
	}

	gormLogger := gormlogger.Discard
	if config.IsDebug() {
		gormLogger = gormlogger.Default
	}

	c := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}

	dsn := dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	var err error
	db, err = gorm.Open(sqlite.Open(dsn), c)
	if err != nil {
		return err
	}
	return initModels()
}

func CloseDB() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	db = nil
	return sqlDB.Close()
}

// GetDB returns the open handle, or nil before InitDB.
func GetDB() *gorm.DB {
	return db
}
