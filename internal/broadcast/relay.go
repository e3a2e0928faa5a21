package broadcast

import (
	"go.uber.org/zap"
)

type producer interface {
	Publish(routingKey string, payload any) error
}

// MQRelay forwards events over the message queue so a process without
// SSE clients (the worker) can still reach the browsers connected to
// the API server.
type MQRelay struct {
	producer   producer
	routingKey string
	logger     *zap.Logger
}

func NewMQRelay(p producer, routingKey string, logger *zap.Logger) *MQRelay {
	return &MQRelay{producer: p, routingKey: routingKey, logger: logger}
}

// Publish sends the event to the queue. UI events are best-effort.
func (r *MQRelay) Publish(evt Event) {
	if err := r.producer.Publish(r.routingKey, evt); err != nil {
		r.logger.Warn("failed to relay event",
			zap.String("type", evt.Type), zap.Error(err))
	}
}
