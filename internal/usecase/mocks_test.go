package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/rylieapp/adf-pipeline/internal/entity"
)

// MockLeadRepository
type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) UpsertByFingerprint(ctx context.Context, lead *entity.Lead) (UpsertResult, error) {
	args := m.Called(ctx, lead)
	return args.Get(0).(UpsertResult), args.Error(1)
}

func (m *MockLeadRepository) FindByID(ctx context.Context, tenantID int64, id string) (*entity.Lead, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) SetConversation(ctx context.Context, tenantID int64, leadID, conversationID string) error {
	args := m.Called(ctx, tenantID, leadID, conversationID)
	return args.Error(0)
}

func (m *MockLeadRepository) UpdateProcessingStatus(ctx context.Context, tenantID int64, leadID string, from, to entity.ProcessingStatus) error {
	args := m.Called(ctx, tenantID, leadID, from, to)
	return args.Error(0)
}

// MockEmailQueueRepository
type MockEmailQueueRepository struct {
	mock.Mock
}

func (m *MockEmailQueueRepository) Enqueue(ctx context.Context, item *entity.EmailQueueItem) (*entity.EmailQueueItem, bool, error) {
	args := m.Called(ctx, item)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*entity.EmailQueueItem), args.Bool(1), args.Error(2)
}

func (m *MockEmailQueueRepository) Claim(ctx context.Context, itemID string) (*entity.EmailQueueItem, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.EmailQueueItem), args.Error(1)
}

func (m *MockEmailQueueRepository) MarkProcessed(ctx context.Context, itemID, leadID string) error {
	args := m.Called(ctx, itemID, leadID)
	return args.Error(0)
}

func (m *MockEmailQueueRepository) MarkRetrying(ctx context.Context, itemID string, attempts int, nextAttemptAt time.Time, procErr string) error {
	args := m.Called(ctx, itemID, attempts, nextAttemptAt, procErr)
	return args.Error(0)
}

func (m *MockEmailQueueRepository) MarkFailed(ctx context.Context, itemID string, attempts int, procErr string) error {
	args := m.Called(ctx, itemID, attempts, procErr)
	return args.Error(0)
}

func (m *MockEmailQueueRepository) Cancel(ctx context.Context, tenantID int64, itemID string) error {
	args := m.Called(ctx, tenantID, itemID)
	return args.Error(0)
}

func (m *MockEmailQueueRepository) FindByID(ctx context.Context, tenantID int64, itemID string) (*entity.EmailQueueItem, error) {
	args := m.Called(ctx, tenantID, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.EmailQueueItem), args.Error(1)
}

// MockProcessingLogRepository
type MockProcessingLogRepository struct {
	mock.Mock
}

func (m *MockProcessingLogRepository) Append(ctx context.Context, entry *entity.ProcessingLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockProcessingLogRepository) List(ctx context.Context, tenantID int64, filter LogFilter) ([]entity.ProcessingLogEntry, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ProcessingLogEntry), args.Error(1)
}

// MockSmsRepository
type MockSmsRepository struct {
	mock.Mock
}

func (m *MockSmsRepository) CreateMessage(ctx context.Context, msg *entity.SmsMessage) (*entity.SmsMessage, bool, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*entity.SmsMessage), args.Bool(1), args.Error(2)
}

func (m *MockSmsRepository) FindMessageByID(ctx context.Context, id string) (*entity.SmsMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.SmsMessage), args.Error(1)
}

func (m *MockSmsRepository) FindMessageByCarrierID(ctx context.Context, carrierMessageID string) (*entity.SmsMessage, error) {
	args := m.Called(ctx, carrierMessageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.SmsMessage), args.Error(1)
}

func (m *MockSmsRepository) UpdateStatus(ctx context.Context, id string, from, to entity.DeliveryStatus, carrierMessageID string, retryCount int) error {
	args := m.Called(ctx, id, from, to, carrierMessageID, retryCount)
	return args.Error(0)
}

func (m *MockSmsRepository) AppendEvent(ctx context.Context, event *entity.SmsDeliveryEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockSmsRepository) ListEvents(ctx context.Context, smsMessageID string) ([]entity.SmsDeliveryEvent, error) {
	args := m.Called(ctx, smsMessageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.SmsDeliveryEvent), args.Error(1)
}

// MockOptOutRepository
type MockOptOutRepository struct {
	mock.Mock
}

func (m *MockOptOutRepository) Find(ctx context.Context, tenantID int64, phoneHash string) (*entity.SmsOptOut, error) {
	args := m.Called(ctx, tenantID, phoneHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.SmsOptOut), args.Error(1)
}

func (m *MockOptOutRepository) OptOut(ctx context.Context, tenantID int64, phoneHash string) error {
	args := m.Called(ctx, tenantID, phoneHash)
	return args.Error(0)
}

func (m *MockOptOutRepository) OptBackIn(ctx context.Context, tenantID int64, phoneHash string) error {
	args := m.Called(ctx, tenantID, phoneHash)
	return args.Error(0)
}

// MockConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) CreateForLead(ctx context.Context, conv *entity.Conversation) (*entity.Conversation, error) {
	args := m.Called(ctx, conv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Conversation), args.Error(1)
}

// MockCarrierClient
type MockCarrierClient struct {
	mock.Mock
}

func (m *MockCarrierClient) SendSMS(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}

// MockQueueProducer
type MockQueueProducer struct {
	mock.Mock
}

func (m *MockQueueProducer) PublishEmailJob(ctx context.Context, job EmailJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockQueueProducer) PublishEmailRetry(ctx context.Context, job EmailJob, delay time.Duration) error {
	args := m.Called(ctx, job, delay)
	return args.Error(0)
}

func (m *MockQueueProducer) PublishSmsJob(ctx context.Context, job SmsJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockAlertSender
type MockAlertSender struct {
	mock.Mock
}

func (m *MockAlertSender) SendQueueFailureAlert(messageID string, attempts int, lastErr string) error {
	args := m.Called(messageID, attempts, lastErr)
	return args.Error(0)
}
