package db

import (
	"time"
)

func (dm *DatabaseManager) RecordTransition(entry *TxJournal) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return dm.journalDb.Create(entry).Error
}

// ListJournal returns the newest entries first. A non-positive limit uses
// JOURNAL_DEFAULT_LIST_LIMIT.
func (dm *DatabaseManager) ListJournal(limit int) ([]TxJournal, error) {
	if limit <= 0 {
		limit = JOURNAL_DEFAULT_LIST_LIMIT
	}
	var entries []TxJournal
	err := dm.journalDb.Order("id desc").Limit(limit).Find(&entries).Error
	return entries, err
}

func (dm *DatabaseManager) ListSubmission(submissionId string) ([]TxJournal, error) {
	var entries []TxJournal
	err := dm.journalDb.Where("submission_id = ?", submissionId).Order("id asc").Find(&entries).Error
	return entries, err
}
