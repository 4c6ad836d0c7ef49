package db

import (
	"testing"

	"github.com/chainreactor/quest-relayer/internal/db/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalNewestFirst(t *testing.T) {
	dm, err := OpenDatabaseManager("")
	require.NoError(t, err)
	defer dm.Close()

	require.NoError(t, dm.RecordTransition(&TxJournal{SubmissionId: "a", QuestId: 1, ChainId: 80002, Phase: JOURNAL_PHASE_SUBMITTING}))
	require.NoError(t, dm.RecordTransition(&TxJournal{SubmissionId: "a", QuestId: 1, ChainId: 80002, Phase: JOURNAL_PHASE_PENDING, TxHash: "0xabc"}))
	require.NoError(t, dm.RecordTransition(&TxJournal{SubmissionId: "a", QuestId: 1, ChainId: 80002, Phase: JOURNAL_PHASE_CONFIRMED, TxHash: "0xabc"}))

	entries, err := dm.ListJournal(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, JOURNAL_PHASE_CONFIRMED, entries[0].Phase)
	assert.Equal(t, JOURNAL_PHASE_PENDING, entries[1].Phase)
	assert.False(t, entries[0].CreatedAt.IsZero())

	sub, err := dm.ListSubmission("a")
	require.NoError(t, err)
	require.Len(t, sub, 3)
	assert.Equal(t, JOURNAL_PHASE_SUBMITTING, sub[0].Phase)
}

func TestMemoryDatabasesAreIsolated(t *testing.T) {
	first, err := OpenDatabaseManager("")
	require.NoError(t, err)
	defer first.Close()
	second, err := OpenDatabaseManager("")
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.RecordTransition(&TxJournal{SubmissionId: "x", Phase: JOURNAL_PHASE_FAILED}))

	entries, err := second.ListJournal(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileDatabaseReopens(t *testing.T) {
	dir := t.TempDir()
	dm, err := OpenDatabaseManager(dir)
	require.NoError(t, err)
	require.NoError(t, dm.RecordTransition(&TxJournal{SubmissionId: "y", Phase: JOURNAL_PHASE_PENDING}))
	require.NoError(t, dm.Close())

	// migrations are recorded once and skipped on reopen
	dm, err = OpenDatabaseManager(dir)
	require.NoError(t, err)
	defer dm.Close()

	mm := migrations.NewMigrationManager(dm.GetJournalDB())
	for _, m := range migrations.All() {
		assert.True(t, mm.HasMigration(m.Name))
	}
	entries, err := dm.ListJournal(10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
