package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rylieapp/adf-pipeline/internal/entity"
)

var queueRowColumns = []string{
	"id", "tenant_id", "message_id", "from_address", "subject", "received_at", "raw_content",
	"processing_status", "attempts", "max_retries", "errors", "resulting_lead_id",
	"cancelled", "next_attempt_at", "created_at", "updated_at",
}

func queueRow(status entity.ProcessingStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(queueRowColumns).AddRow(
		"item-1", int64(7), "<msg-1@leads>", "dealer@example.com", "New lead", now, "<adf/>",
		status, 0, 3, []byte(`[]`), nil, false, now, now, now,
	)
}

func TestEmailQueueRepository_ClaimTakesOwnership(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewEmailQueueRepository(db)

	mock.ExpectQuery("UPDATE email_queue_items").
		WithArgs("item-1").
		WillReturnRows(queueRow(entity.ProcessingInProgress))

	item, err := repo.Claim(context.Background(), "item-1")
	require.NoError(t, err)

	assert.Equal(t, "item-1", item.ID)
	assert.Equal(t, entity.ProcessingInProgress, item.ProcessingStatus)
	assert.Empty(t, item.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A row already owned, settled, or locked by another worker yields no row, and
// that is reported as not-found rather than blocking.
func TestEmailQueueRepository_ClaimLostRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewEmailQueueRepository(db)

	mock.ExpectQuery("UPDATE email_queue_items").
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows(queueRowColumns))

	_, err = repo.Claim(context.Background(), "item-1")
	assert.ErrorIs(t, err, entity.ErrQueueItemNotFound)
}

// A redelivered message_id hits the unique constraint, inserts nothing, and
// the existing row comes back instead.
func TestEmailQueueRepository_EnqueueDuplicateReturnsExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewEmailQueueRepository(db)
	item, err := entity.NewEmailQueueItem(7, "<msg-1@leads>", "dealer@example.com", "New lead", "<adf/>", time.Now())
	require.NoError(t, err)

	mock.ExpectQuery("INSERT INTO email_queue_items").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT (.+) FROM email_queue_items WHERE message_id").
		WithArgs("<msg-1@leads>").
		WillReturnRows(queueRow(entity.ProcessingPending))

	existing, created, err := repo.Enqueue(context.Background(), item)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, "item-1", existing.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailQueueRepository_EnqueueNewItem(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewEmailQueueRepository(db)
	item, err := entity.NewEmailQueueItem(7, "<msg-1@leads>", "dealer@example.com", "New lead", "<adf/>", time.Now())
	require.NoError(t, err)

	mock.ExpectQuery("INSERT INTO email_queue_items").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(item.ID))

	inserted, created, err := repo.Enqueue(context.Background(), item)
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, item.ID, inserted.ID)
}

// MarkProcessed refuses to settle an item that was cancelled or reclaimed
// while the pipeline ran.
func TestEmailQueueRepository_MarkProcessedStale(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewEmailQueueRepository(db)

	mock.ExpectExec("UPDATE email_queue_items").
		WithArgs("lead-1", "item-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.MarkProcessed(context.Background(), "item-1", "lead-1")
	assert.ErrorIs(t, err, entity.ErrStaleTransition)
}

func TestEmailQueueRepository_CancelSettledItem(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewEmailQueueRepository(db)

	mock.ExpectExec("UPDATE email_queue_items").
		WithArgs("item-1", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Cancel(context.Background(), 7, "item-1")
	assert.ErrorIs(t, err, entity.ErrQueueItemNotFound)
}
