package domain

import "context"

// NotificationService defines the interface for operator notifications
type NotificationService interface {
	// SendFailure reports a delivery failure that needs operator attention
	SendFailure(ctx context.Context, report FailureReport) error

	// SendStats sends a cache statistics report
	SendStats(ctx context.Context, stats Statistics) error
}

// FailureReport describes a failed delivery
type FailureReport struct {
	Key   CacheKey
	State DeliveryState
	Err   error
}
