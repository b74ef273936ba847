package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmailQueueItem_Defaults(t *testing.T) {
	item, err := NewEmailQueueItem(7, "<msg-1@leads>", "dealer@example.com", "New lead", "<adf/>", time.Now())
	require.NoError(t, err)

	assert.Equal(t, ProcessingPending, item.ProcessingStatus)
	assert.Equal(t, DefaultMaxRetries, item.MaxRetries)
	assert.Zero(t, item.Attempts)
	assert.False(t, item.Cancelled)
}

func TestNewEmailQueueItem_RequiresMessageID(t *testing.T) {
	_, err := NewEmailQueueItem(7, "", "dealer@example.com", "New lead", "<adf/>", time.Now())
	assert.Error(t, err)
}

func TestEmailQueueItem_StateMachine(t *testing.T) {
	item := &EmailQueueItem{ProcessingStatus: ProcessingPending}
	assert.True(t, item.CanTransition(ProcessingInProgress))
	assert.False(t, item.CanTransition(ProcessingProcessed))

	item.ProcessingStatus = ProcessingInProgress
	assert.True(t, item.CanTransition(ProcessingProcessed))
	assert.True(t, item.CanTransition(ProcessingRetrying))
	assert.True(t, item.CanTransition(ProcessingFailed))
	assert.False(t, item.CanTransition(ProcessingPending))

	item.ProcessingStatus = ProcessingRetrying
	assert.True(t, item.CanTransition(ProcessingInProgress))

	item.ProcessingStatus = ProcessingFailed
	assert.False(t, item.CanTransition(ProcessingInProgress))
}

func TestEmailQueueItem_RetriesExhausted(t *testing.T) {
	item := &EmailQueueItem{Attempts: 2, MaxRetries: 3}
	assert.False(t, item.RetriesExhausted())

	item.Attempts = 3
	assert.True(t, item.RetriesExhausted())
}
