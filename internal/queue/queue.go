// Package queue fans evaluation runs out to workers over RabbitMQ, one
// message per tenant per trigger.
package queue

import "context"

const (
	// RunQueueName is the work queue for tenant evaluation runs.
	RunQueueName = "dunning.tenant-runs"
	// RunDLQName parks runs that were rejected as unprocessable.
	RunDLQName = "dunning.tenant-runs.dlq"

	dlxExchangeName = "dunning.dlx"
	dlxRoutingKey   = "tenant-runs"
)

// Publisher publishes tenant run messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg TenantRunMessage) error
	Close() error
}

// MessageHandler handles a consumed run message.
type MessageHandler func(ctx context.Context, msg TenantRunMessage) error

// Consumer consumes tenant run messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
