package interfaces

import "context"

// EventPublisher fans committed ledger mutations out to interested consumers
// (notifications, activity feeds, analytics). Publishing happens after commit
// and never affects ledger state.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event any) error
}
