package db

import (
	"time"
)

const (
	JOURNAL_PHASE_SUBMITTING   = "Submitting"
	JOURNAL_PHASE_PENDING      = "PendingConfirmation"
	JOURNAL_PHASE_CONFIRMED    = "Confirmed"
	JOURNAL_PHASE_FAILED       = "Failed"
	JOURNAL_DEFAULT_LIST_LIMIT = 50
)

// TxJournal is one lifecycle transition of a quest submission
type TxJournal struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionId string    `gorm:"not null;index" json:"submission_id"`
	QuestId      uint64    `gorm:"not null" json:"quest_id"`
	ChainId      uint64    `gorm:"not null" json:"chain_id"`
	Phase        string    `gorm:"not null" json:"phase"`
	TxHash       string    `json:"tx_hash"`
	Reason       string    `json:"reason"`
	Error        string    `json:"error"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}
