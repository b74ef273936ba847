package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func event(status DeliveryStatus, at time.Time) SmsDeliveryEvent {
	return SmsDeliveryEvent{ID: "ev-" + string(status), SmsMessageID: "sms-1", Status: status, EventAt: at}
}

// A delivered event at t=10 followed by a sent event at t=8 arriving later
// must still resolve to delivered.
func TestResolveDeliveryStatus_OutOfOrderWebhooks(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	events := []SmsDeliveryEvent{
		event(DeliveryDelivered, base.Add(10*time.Second)),
		event(DeliverySent, base.Add(8*time.Second)),
	}

	assert.Equal(t, DeliveryDelivered, ResolveDeliveryStatus(DeliverySent, events))
}

func TestResolveDeliveryStatus_TerminalNeverRegresses(t *testing.T) {
	base := time.Now()
	events := []SmsDeliveryEvent{
		event(DeliveryQueued, base),
		event(DeliverySent, base.Add(time.Second)),
	}

	assert.Equal(t, DeliveryFailed, ResolveDeliveryStatus(DeliveryFailed, events))
	assert.Equal(t, DeliveryOptedOut, ResolveDeliveryStatus(DeliveryOptedOut, events))
}

func TestResolveDeliveryStatus_AdvancesThroughLifecycle(t *testing.T) {
	base := time.Now()
	events := []SmsDeliveryEvent{
		event(DeliveryQueued, base),
		event(DeliverySent, base.Add(time.Second)),
		event(DeliveryDelivered, base.Add(2*time.Second)),
	}

	assert.Equal(t, DeliveryDelivered, ResolveDeliveryStatus(DeliveryPending, events))
}

func TestSupersedes(t *testing.T) {
	assert.True(t, DeliverySent.Supersedes(DeliveryQueued))
	assert.True(t, DeliveryDelivered.Supersedes(DeliverySent))
	assert.False(t, DeliverySent.Supersedes(DeliveryDelivered))
	assert.False(t, DeliverySent.Supersedes(DeliverySent))
	assert.False(t, DeliveryQueued.Supersedes(DeliveryFailed))
}

func TestOptOut_Active(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	active := &SmsOptOut{OptedOutAt: now}
	assert.True(t, active.Active())

	backIn := &SmsOptOut{OptedOutAt: earlier, OptedBackInAt: &now}
	assert.False(t, backIn.Active())

	reOptedOut := &SmsOptOut{OptedOutAt: now, OptedBackInAt: &earlier}
	assert.True(t, reOptedOut.Active())
}

func TestNewSmsMessage_Validation(t *testing.T) {
	_, err := NewSmsMessage(0, "lead-1", []byte{1}, "***1234", "hash", "hello")
	assert.Error(t, err)

	_, err = NewSmsMessage(7, "lead-1", []byte{1}, "***1234", "", "hello")
	assert.Error(t, err)

	msg, err := NewSmsMessage(7, "lead-1", []byte{1}, "***1234", "hash", "hello")
	assert.NoError(t, err)
	assert.Equal(t, DeliveryPending, msg.DeliveryStatus)
}
