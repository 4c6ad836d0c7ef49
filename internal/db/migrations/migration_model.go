package migrations

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migration is an applied schema change
type Migration struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// Step is a named schema change applied at most once
type Step struct {
	Name string
	Fn   func(*gorm.DB) error
}

// All lists the journal migrations in apply order
func All() []Step {
	return []Step{
		{Name: "20261018_add_journal_tx_hash_index", Fn: AddJournalTxHashIndex},
	}
}

type MigrationManager struct {
	db *gorm.DB
}

func NewMigrationManager(db *gorm.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

func (m *MigrationManager) EnsureMigrationTable() error {
	if !m.db.Migrator().HasTable(&Migration{}) {
		log.Debugf("Creating migrations table")
		return m.db.AutoMigrate(&Migration{})
	}
	return nil
}

func (m *MigrationManager) HasMigration(name string) bool {
	var count int64
	err := m.db.Model(&Migration{}).Where("name = ?", name).Count(&count).Error
	return err == nil && count > 0
}

// RunMigration applies fn and records name in one transaction, skipping
// migrations that were already recorded.
func (m *MigrationManager) RunMigration(name string, fn func(*gorm.DB) error) error {
	if m.HasMigration(name) {
		log.Debugf("Migration %s has already been applied, skipping", name)
		return nil
	}

	log.Debugf("Running migration: %s", name)
	err := m.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Migration{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return fmt.Errorf("check migration status: %w", err)
		}
		if count > 0 {
			return nil
		}
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Create(&Migration{Name: name, AppliedAt: time.Now()}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to run migration %s: %w", name, err)
	}

	log.Debugf("Successfully completed migration: %s", name)
	return nil
}
