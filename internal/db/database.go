package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainreactor/quest-relayer/internal/config"
	"github.com/chainreactor/quest-relayer/internal/db/migrations"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type DatabaseManager struct {
	journalDb *gorm.DB
}

// NewDatabaseManager opens the journal under config.AppConfig.DbDir, or an
// in-memory database when no directory is configured.
func NewDatabaseManager() *DatabaseManager {
	dm, err := OpenDatabaseManager(config.AppConfig.DbDir)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	return dm
}

func OpenDatabaseManager(dbDir string) (*DatabaseManager, error) {
	var dsn string
	if dbDir == "" {
		// a private shared-cache name keeps every pooled connection on the same memory db
		dsn = fmt.Sprintf("file:journal-%s?mode=memory&cache=shared", uuid.New().String())
	} else {
		if err := os.MkdirAll(dbDir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = filepath.Join(dbDir, "tx_journal.db")
	}

	journalDb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect journal database: %w", err)
	}
	sqlDb, err := journalDb.DB()
	if err != nil {
		return nil, fmt.Errorf("journal connection pool: %w", err)
	}
	// sqlite has one writer, and a shared memory db locks tables across connections
	sqlDb.SetMaxOpenConns(1)
	log.Debugf("Journal database connected successfully, dsn: %s", dsn)

	dm := &DatabaseManager{journalDb: journalDb}
	if err := dm.autoMigrate(); err != nil {
		return nil, err
	}
	log.Debugf("Database migration completed successfully")
	return dm, nil
}

func (dm *DatabaseManager) autoMigrate() error {
	if err := dm.journalDb.AutoMigrate(&TxJournal{}); err != nil {
		return fmt.Errorf("migrate journal: %w", err)
	}
	mm := migrations.NewMigrationManager(dm.journalDb)
	if err := mm.EnsureMigrationTable(); err != nil {
		return fmt.Errorf("migration table: %w", err)
	}
	for _, m := range migrations.All() {
		if err := mm.RunMigration(m.Name, m.Fn); err != nil {
			return err
		}
	}
	return nil
}

func (dm *DatabaseManager) GetJournalDB() *gorm.DB {
	return dm.journalDb
}

func (dm *DatabaseManager) Close() error {
	sqlDb, err := dm.journalDb.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}
