package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// EventOrderPaid marks a customer order as paid.
	EventOrderPaid = "customer-order-paid"
	// EventOrderCancelled reverts a previously placed customer order.
	EventOrderCancelled = "customer-order-canceled"
)

var tracer = otel.Tracer("github.com/dashmart/promotions/internal/platform/events")

// OrderEventProcessor reacts to order lifecycle transitions.
type OrderEventProcessor interface {
	ProcessOrderPaid(ctx context.Context, orderID string) error
	ProcessOrderCancelled(ctx context.Context, orderID string) error
}

// OrderEvent is the wire payload carried on both order lifecycle subscriptions.
type OrderEvent struct {
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
	OrderID   string    `json:"order_id"`
}

// SubscriberDeps lists the collaborators required by the order event subscriber.
type SubscriberDeps struct {
	Logger       *zap.Logger
	Processor    OrderEventProcessor
	PaidSub      *pubsub.Subscription
	CancelledSub *pubsub.Subscription
}

// Subscriber consumes order lifecycle events and forwards them to the processor.
type Subscriber struct {
	logger       *zap.Logger
	processor    OrderEventProcessor
	paidSub      *pubsub.Subscription
	cancelledSub *pubsub.Subscription
}

// NewSubscriber validates deps and constructs an order event subscriber.
func NewSubscriber(deps SubscriberDeps) (*Subscriber, error) {
	if deps.Processor == nil {
		return nil, errors.New("events subscriber: processor is required")
	}
	if deps.PaidSub == nil || deps.CancelledSub == nil {
		return nil, errors.New("events subscriber: both subscriptions are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		logger:       logger,
		processor:    deps.Processor,
		paidSub:      deps.PaidSub,
		cancelledSub: deps.CancelledSub,
	}, nil
}

// Run blocks consuming both subscriptions until ctx is cancelled or a
// subscription fails irrecoverably.
func (s *Subscriber) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		errCh <- s.paidSub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
			s.dispatch(ctx, EventOrderPaid, msg)
		})
	}()
	go func() {
		errCh <- s.cancelledSub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
			s.dispatch(ctx, EventOrderCancelled, msg)
		})
	}()

	err := <-errCh
	cancel()
	<-errCh
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("order event subscription: %w", err)
	}
	return nil
}

func (s *Subscriber) dispatch(ctx context.Context, kind string, msg *pubsub.Message) {
	if err := s.Handle(ctx, kind, msg.Data); err != nil {
		s.logger.Error("order event handling failed",
			zap.String("event", kind),
			zap.Error(err),
		)
		msg.Nack()
		return
	}
	msg.Ack()
}

// Handle decodes an order event payload and invokes the processor. Malformed
// payloads are an error; the caller decides redelivery semantics.
func (s *Subscriber) Handle(ctx context.Context, kind string, data []byte) error {
	var event OrderEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("decode order event: %w", err)
	}
	orderID := strings.TrimSpace(event.OrderID)
	if orderID == "" {
		return errors.New("order event missing order_id")
	}

	ctx, span := tracer.Start(ctx, "events.handle",
		oteltrace.WithSpanKind(oteltrace.SpanKindConsumer),
		oteltrace.WithAttributes(
			attribute.String("event", kind),
			attribute.String("order_id", orderID),
		),
	)
	defer span.End()

	switch kind {
	case EventOrderPaid:
		return s.processor.ProcessOrderPaid(ctx, orderID)
	case EventOrderCancelled:
		return s.processor.ProcessOrderCancelled(ctx, orderID)
	default:
		return fmt.Errorf("unknown order event %q", kind)
	}
}
