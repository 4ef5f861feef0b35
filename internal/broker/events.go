package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"checkout-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing checkout lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishCheckoutCompleted publishes CheckoutCompleted event
func (ep *EventPublisher) PublishCheckoutCompleted(ctx context.Context, event *models.CheckoutCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, checkoutKey(event.OrderRef), event)
}

// PublishPaymentFailed publishes PaymentFailed event
func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	return ep.producer.PublishEvent(ctx, checkoutKey(event.OrderRef), event)
}

// PublishPaymentCancelled publishes PaymentCancelled event
func (ep *EventPublisher) PublishPaymentCancelled(ctx context.Context, event *models.PaymentCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, checkoutKey(event.OrderRef), event)
}

// PublishReconciliationPending publishes ReconciliationPending event
func (ep *EventPublisher) PublishReconciliationPending(ctx context.Context, event *models.ReconciliationPendingEvent) error {
	return ep.producer.PublishEvent(ctx, checkoutKey(event.OrderRef), event)
}

func checkoutKey(orderRef string) string {
	return fmt.Sprintf("checkout-%s", orderRef)
}

// EventHandler routes incoming checkout events
type EventHandler struct {
	onReconciliationPending func(context.Context, *models.ReconciliationPendingEvent) error
	onCheckoutCompleted     func(context.Context, *models.CheckoutCompletedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnReconciliationPending registers a handler for ReconciliationPending events
func (eh *EventHandler) OnReconciliationPending(handler func(context.Context, *models.ReconciliationPendingEvent) error) {
	eh.onReconciliationPending = handler
}

// OnCheckoutCompleted registers a handler for CheckoutCompleted events
func (eh *EventHandler) OnCheckoutCompleted(handler func(context.Context, *models.CheckoutCompletedEvent) error) {
	eh.onCheckoutCompleted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeReconciliationPending:
		if eh.onReconciliationPending != nil {
			var event models.ReconciliationPendingEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ReconciliationPending event: %w", err)
			}
			return eh.onReconciliationPending(ctx, &event)
		}

	case models.EventTypeCheckoutCompleted:
		if eh.onCheckoutCompleted != nil {
			var event models.CheckoutCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CheckoutCompleted event: %w", err)
			}
			return eh.onCheckoutCompleted(ctx, &event)
		}

	default:
		// PaymentFailed and PaymentCancelled are audit-only for now.
	}

	return nil
}
