package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rylieapp/adf-pipeline/internal/entity"
)

func ingestInput() IngestEmailInput {
	return IngestEmailInput{
		TenantID:   7,
		MessageID:  "<msg-1@leads>",
		From:       "dealer@example.com",
		Subject:    "New lead",
		ReceivedAt: time.Now(),
		RawXML:     "<adf/>",
	}
}

func TestIngestEmail_NewMessageIsQueuedAndPublished(t *testing.T) {
	queue := new(MockEmailQueueRepository)
	producer := new(MockQueueProducer)
	uc := NewIngestEmailUseCase(queue, producer, zap.NewNop().Sugar())

	queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(item *entity.EmailQueueItem) bool {
		return item.MessageID == "<msg-1@leads>" && item.ProcessingStatus == entity.ProcessingPending
	})).Return(nil, true, nil)
	producer.On("PublishEmailJob", mock.Anything, mock.MatchedBy(func(j EmailJob) bool {
		return j.TenantID == 7 && j.Attempt == 0 && j.QueueItemID != ""
	})).Return(nil)

	out, err := uc.Execute(context.Background(), ingestInput())
	require.NoError(t, err)

	assert.False(t, out.Duplicate)
	assert.NotEmpty(t, out.QueueItemID)
	producer.AssertExpectations(t)
}

// Redelivery of a message_id we already hold returns the existing queue item
// and publishes nothing.
func TestIngestEmail_DuplicateMessageIDPublishesNothing(t *testing.T) {
	queue := new(MockEmailQueueRepository)
	producer := new(MockQueueProducer)
	uc := NewIngestEmailUseCase(queue, producer, zap.NewNop().Sugar())

	queue.On("Enqueue", mock.Anything, mock.Anything).
		Return(&entity.EmailQueueItem{ID: "existing-item"}, false, nil)

	out, err := uc.Execute(context.Background(), ingestInput())
	require.NoError(t, err)

	assert.True(t, out.Duplicate)
	assert.Equal(t, "existing-item", out.QueueItemID)
	producer.AssertNotCalled(t, "PublishEmailJob", mock.Anything, mock.Anything)
}

func TestIngestEmail_RejectsMissingMessageID(t *testing.T) {
	queue := new(MockEmailQueueRepository)
	producer := new(MockQueueProducer)
	uc := NewIngestEmailUseCase(queue, producer, zap.NewNop().Sugar())

	input := ingestInput()
	input.MessageID = ""

	_, err := uc.Execute(context.Background(), input)
	assert.Error(t, err)
	queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestIngestEmail_PublishFailureSurfaces(t *testing.T) {
	queue := new(MockEmailQueueRepository)
	producer := new(MockQueueProducer)
	uc := NewIngestEmailUseCase(queue, producer, zap.NewNop().Sugar())

	queue.On("Enqueue", mock.Anything, mock.Anything).Return(nil, true, nil)
	producer.On("PublishEmailJob", mock.Anything, mock.Anything).
		Return(errors.New("broker unavailable"))

	_, err := uc.Execute(context.Background(), ingestInput())

	var pe *PersistenceError
	assert.ErrorAs(t, err, &pe)
}
