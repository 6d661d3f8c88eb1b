package events

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

type stubProcessor struct {
	paid      []string
	cancelled []string
	err       error
}

func (s *stubProcessor) ProcessOrderPaid(_ context.Context, orderID string) error {
	s.paid = append(s.paid, orderID)
	return s.err
}

func (s *stubProcessor) ProcessOrderCancelled(_ context.Context, orderID string) error {
	s.cancelled = append(s.cancelled, orderID)
	return s.err
}

func newTestSubscriber(processor OrderEventProcessor) *Subscriber {
	return &Subscriber{logger: zap.NewNop(), processor: processor}
}

func TestHandleOrderPaid(t *testing.T) {
	processor := &stubProcessor{}
	sub := newTestSubscriber(processor)

	payload := []byte(`{"event":"customer-order-paid","order_id":"order-1"}`)
	if err := sub.Handle(context.Background(), EventOrderPaid, payload); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(processor.paid) != 1 || processor.paid[0] != "order-1" {
		t.Fatalf("unexpected paid calls %v", processor.paid)
	}
	if len(processor.cancelled) != 0 {
		t.Fatalf("unexpected cancelled calls %v", processor.cancelled)
	}
}

func TestHandleOrderCancelled(t *testing.T) {
	processor := &stubProcessor{}
	sub := newTestSubscriber(processor)

	payload := []byte(`{"event":"customer-order-canceled","order_id":"order-2"}`)
	if err := sub.Handle(context.Background(), EventOrderCancelled, payload); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(processor.cancelled) != 1 || processor.cancelled[0] != "order-2" {
		t.Fatalf("unexpected cancelled calls %v", processor.cancelled)
	}
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	sub := newTestSubscriber(&stubProcessor{})

	if err := sub.Handle(context.Background(), EventOrderPaid, []byte("{")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestHandleRejectsMissingOrderID(t *testing.T) {
	sub := newTestSubscriber(&stubProcessor{})

	payload := []byte(`{"event":"customer-order-paid","order_id":"  "}`)
	if err := sub.Handle(context.Background(), EventOrderPaid, payload); err == nil {
		t.Fatal("expected missing order id error")
	}
}

func TestHandleRejectsUnknownEvent(t *testing.T) {
	sub := newTestSubscriber(&stubProcessor{})

	payload := []byte(`{"event":"something-else","order_id":"order-3"}`)
	if err := sub.Handle(context.Background(), "something-else", payload); err == nil {
		t.Fatal("expected unknown event error")
	}
}

func TestNewSubscriberRequiresDeps(t *testing.T) {
	if _, err := NewSubscriber(SubscriberDeps{}); err == nil {
		t.Fatal("expected error when deps missing")
	}
}
