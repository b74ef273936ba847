package entity

import "errors"

var (
	ErrLeadNotFound      = errors.New("lead not found")
	ErrQueueItemNotFound = errors.New("queue item not found")
	ErrSmsNotFound       = errors.New("sms message not found")
	ErrDuplicateMessage  = errors.New("message_id already queued")
	ErrStaleTransition   = errors.New("state transition lost to a concurrent update")
)
