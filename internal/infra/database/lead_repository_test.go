package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rylieapp/adf-pipeline/internal/entity"
)

func testLead(t *testing.T) *entity.Lead {
	t.Helper()
	lead, err := entity.NewLead(7,
		entity.Customer{FirstName: "John", LastName: "Smith", Email: "john@example.com"},
		entity.Vehicle{VIN: "1HGCV1F34PA123456", Make: "Honda", Model: "Accord", Year: "2024"},
		"a1b2c3", "<adf/>",
	)
	require.NoError(t, err)
	return lead
}

func TestLeadRepository_UpsertInsertsNewLead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lead := testLead(t)
	repo := NewLeadRepository(db)

	mock.ExpectQuery("INSERT INTO leads").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created"}).AddRow(lead.ID, true))

	result, err := repo.UpsertByFingerprint(context.Background(), lead)
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, lead.ID, result.LeadID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// On fingerprint conflict the racer gets the winning row's id back, flagged as
// not created.
func TestLeadRepository_UpsertReturnsExistingOnConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLeadRepository(db)

	mock.ExpectQuery("INSERT INTO leads").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created"}).AddRow("winner-lead", false))

	result, err := repo.UpsertByFingerprint(context.Background(), testLead(t))
	require.NoError(t, err)

	assert.False(t, result.Created)
	assert.Equal(t, "winner-lead", result.LeadID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_UpdateProcessingStatusStale(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLeadRepository(db)

	mock.ExpectExec("UPDATE leads SET processing_status").
		WithArgs(entity.ProcessingProcessed, "lead-1", int64(7), entity.ProcessingPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateProcessingStatus(context.Background(), 7, "lead-1",
		entity.ProcessingPending, entity.ProcessingProcessed)

	assert.ErrorIs(t, err, entity.ErrStaleTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_FindByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLeadRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM leads").
		WithArgs("missing", int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.FindByID(context.Background(), 7, "missing")
	assert.ErrorIs(t, err, entity.ErrLeadNotFound)
}
