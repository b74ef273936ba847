package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rylieapp/adf-pipeline/internal/entity"
)

func sentMessage() *entity.SmsMessage {
	return &entity.SmsMessage{
		ID:               "sms-1",
		TenantID:         7,
		LeadID:           "lead-1",
		PhoneHash:        "abc123",
		Body:             "hello",
		CarrierMessageID: "SM123",
		DeliveryStatus:   entity.DeliverySent,
	}
}

func TestReconcileDelivery_AdvancesToDelivered(t *testing.T) {
	sms := new(MockSmsRepository)
	uc := NewReconcileDeliveryUseCase(sms, zap.NewNop().Sugar())
	now := time.Now()

	sms.On("FindMessageByCarrierID", mock.Anything, "SM123").Return(sentMessage(), nil)
	sms.On("AppendEvent", mock.Anything, mock.MatchedBy(func(e *entity.SmsDeliveryEvent) bool {
		return e.SmsMessageID == "sms-1" && e.Status == entity.DeliveryDelivered && e.EventAt.Equal(now)
	})).Return(nil)
	sms.On("ListEvents", mock.Anything, "sms-1").Return([]entity.SmsDeliveryEvent{
		{SmsMessageID: "sms-1", Status: entity.DeliverySent, EventAt: now.Add(-time.Minute)},
		{SmsMessageID: "sms-1", Status: entity.DeliveryDelivered, EventAt: now},
	}, nil)
	sms.On("UpdateStatus", mock.Anything, "sms-1",
		entity.DeliverySent, entity.DeliveryDelivered, "SM123", 0).Return(nil)

	err := uc.Execute(context.Background(), CarrierStatusInput{
		CarrierMessageID: "SM123",
		Status:           entity.DeliveryDelivered,
		EventAt:          now,
	})
	require.NoError(t, err)
	sms.AssertExpectations(t)
}

// A webhook that arrives late with an older non-terminal status is appended to
// the event log but never moves the message out of a terminal state.
func TestReconcileDelivery_LateSentWebhookDoesNotRegressDelivered(t *testing.T) {
	sms := new(MockSmsRepository)
	uc := NewReconcileDeliveryUseCase(sms, zap.NewNop().Sugar())
	now := time.Now()

	msg := sentMessage()
	msg.DeliveryStatus = entity.DeliveryDelivered

	sms.On("FindMessageByCarrierID", mock.Anything, "SM123").Return(msg, nil)
	sms.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)
	sms.On("ListEvents", mock.Anything, "sms-1").Return([]entity.SmsDeliveryEvent{
		{SmsMessageID: "sms-1", Status: entity.DeliveryDelivered, EventAt: now},
		{SmsMessageID: "sms-1", Status: entity.DeliverySent, EventAt: now.Add(-2 * time.Minute)},
	}, nil)

	err := uc.Execute(context.Background(), CarrierStatusInput{
		CarrierMessageID: "SM123",
		Status:           entity.DeliverySent,
		EventAt:          now.Add(-2 * time.Minute),
	})
	require.NoError(t, err)

	sms.AssertNotCalled(t, "UpdateStatus",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	sms.AssertExpectations(t)
}

func TestReconcileDelivery_UnknownCarrierIDIsTolerated(t *testing.T) {
	sms := new(MockSmsRepository)
	uc := NewReconcileDeliveryUseCase(sms, zap.NewNop().Sugar())

	sms.On("FindMessageByCarrierID", mock.Anything, "SM999").
		Return(nil, entity.ErrSmsNotFound)

	err := uc.Execute(context.Background(), CarrierStatusInput{
		CarrierMessageID: "SM999",
		Status:           entity.DeliveryDelivered,
		EventAt:          time.Now(),
	})
	assert.NoError(t, err)

	sms.AssertNotCalled(t, "AppendEvent", mock.Anything, mock.Anything)
}

// A stale CAS means another webhook advanced the row first, possibly without
// having seen our event. The reconciler must reload and reapply until the
// terminal status from our event lands, not drop it.
func TestReconcileDelivery_RetriesAfterLosingStatusRace(t *testing.T) {
	sms := new(MockSmsRepository)
	uc := NewReconcileDeliveryUseCase(sms, zap.NewNop().Sugar())
	now := time.Now()

	queuedMsg := sentMessage()
	queuedMsg.DeliveryStatus = entity.DeliveryQueued
	advancedMsg := sentMessage()

	events := []entity.SmsDeliveryEvent{
		{SmsMessageID: "sms-1", Status: entity.DeliverySent, EventAt: now.Add(-2 * time.Minute)},
		{SmsMessageID: "sms-1", Status: entity.DeliveryDelivered, EventAt: now},
	}

	sms.On("FindMessageByCarrierID", mock.Anything, "SM123").Return(queuedMsg, nil).Once()
	sms.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)
	sms.On("ListEvents", mock.Anything, "sms-1").Return(events, nil)
	sms.On("UpdateStatus", mock.Anything, "sms-1",
		entity.DeliveryQueued, entity.DeliveryDelivered, "SM123", 0).
		Return(entity.ErrStaleTransition).Once()
	sms.On("FindMessageByCarrierID", mock.Anything, "SM123").Return(advancedMsg, nil).Once()
	sms.On("UpdateStatus", mock.Anything, "sms-1",
		entity.DeliverySent, entity.DeliveryDelivered, "SM123", 0).
		Return(nil).Once()

	err := uc.Execute(context.Background(), CarrierStatusInput{
		CarrierMessageID: "SM123",
		Status:           entity.DeliveryDelivered,
		EventAt:          now,
	})
	require.NoError(t, err)
	sms.AssertExpectations(t)
}

// If a concurrent writer already projected everything our event implies, the
// reload converges without another write.
func TestReconcileDelivery_ConvergesWhenRaceWinnerSawOurEvent(t *testing.T) {
	sms := new(MockSmsRepository)
	uc := NewReconcileDeliveryUseCase(sms, zap.NewNop().Sugar())
	now := time.Now()

	queuedMsg := sentMessage()
	queuedMsg.DeliveryStatus = entity.DeliveryQueued
	settledMsg := sentMessage()
	settledMsg.DeliveryStatus = entity.DeliveryDelivered

	sms.On("FindMessageByCarrierID", mock.Anything, "SM123").Return(queuedMsg, nil).Once()
	sms.On("AppendEvent", mock.Anything, mock.Anything).Return(nil)
	sms.On("ListEvents", mock.Anything, "sms-1").Return([]entity.SmsDeliveryEvent{
		{SmsMessageID: "sms-1", Status: entity.DeliveryDelivered, EventAt: now},
	}, nil)
	sms.On("UpdateStatus", mock.Anything, "sms-1",
		entity.DeliveryQueued, entity.DeliveryDelivered, "SM123", 0).
		Return(entity.ErrStaleTransition).Once()
	sms.On("FindMessageByCarrierID", mock.Anything, "SM123").Return(settledMsg, nil).Once()

	err := uc.Execute(context.Background(), CarrierStatusInput{
		CarrierMessageID: "SM123",
		Status:           entity.DeliveryDelivered,
		EventAt:          now,
	})
	require.NoError(t, err)
	sms.AssertNumberOfCalls(t, "UpdateStatus", 1)
}

type stubHasher struct{}

func (stubHasher) Hash(string) string { return "abc123" }

func TestOptOutKeyword_StopRegistersOptOut(t *testing.T) {
	optOuts := new(MockOptOutRepository)
	uc := NewOptOutKeywordUseCase(optOuts, stubHasher{}, zap.NewNop().Sugar())

	optOuts.On("OptOut", mock.Anything, int64(7), "abc123").Return(nil)

	for _, body := range []string{"STOP", "stop", "  Unsubscribe  "} {
		require.NoError(t, uc.Execute(context.Background(), 7, "+15551234567", body))
	}
	optOuts.AssertNumberOfCalls(t, "OptOut", 3)
}

func TestOptOutKeyword_StartOptsBackIn(t *testing.T) {
	optOuts := new(MockOptOutRepository)
	uc := NewOptOutKeywordUseCase(optOuts, stubHasher{}, zap.NewNop().Sugar())

	optOuts.On("OptBackIn", mock.Anything, int64(7), "abc123").Return(nil)

	require.NoError(t, uc.Execute(context.Background(), 7, "+15551234567", "START"))
	optOuts.AssertExpectations(t)
}

func TestOptOutKeyword_RegularReplyIsIgnored(t *testing.T) {
	optOuts := new(MockOptOutRepository)
	uc := NewOptOutKeywordUseCase(optOuts, stubHasher{}, zap.NewNop().Sugar())

	require.NoError(t, uc.Execute(context.Background(), 7, "+15551234567", "what time do you close?"))

	optOuts.AssertNotCalled(t, "OptOut", mock.Anything, mock.Anything, mock.Anything)
	optOuts.AssertNotCalled(t, "OptBackIn", mock.Anything, mock.Anything, mock.Anything)
}
