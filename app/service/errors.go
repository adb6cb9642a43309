package service

import "errors"

var (
	ErrInvalidEvent         = errors.New("invalid event")
	ErrDuplicateEvent       = errors.New("event already processed")
	ErrLockBusy             = errors.New("subscription key is locked")
	ErrEventOutOfOrder      = errors.New("referenced charge not processed yet")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrInvalidTransition    = errors.New("invalid subscription transition")
)
