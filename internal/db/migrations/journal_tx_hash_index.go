package migrations

import (
	"gorm.io/gorm"
)

// AddJournalTxHashIndex indexes tx hashes so explorer lookups by hash stay cheap
func AddJournalTxHashIndex(tx *gorm.DB) error {
	return tx.Exec("CREATE INDEX IF NOT EXISTS tx_journal_tx_hash_index ON tx_journals (tx_hash)").Error
}
