package worker

import (
	"context"
	"log"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// ReconcileWorker consumes checkout events and escalates reconciliation
// cases to the support channel. It never retries order creation itself.
type ReconcileWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	logger       *zap.Logger
}

// NewReconcileWorker creates a new reconciliation worker
func NewReconcileWorker(consumer *broker.Consumer, st *store.Store) *ReconcileWorker {
	w := &ReconcileWorker{
		consumer: consumer,
		store:    st,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnReconciliationPending(w.handleReconciliationPending)
	eventHandler.OnCheckoutCompleted(w.handleCheckoutCompleted)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *ReconcileWorker) Start(ctx context.Context) error {
	log.Println("Starting reconcile worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReconcileWorker) Stop() error {
	log.Println("Stopping reconcile worker...")
	return w.consumer.Close()
}

func (w *ReconcileWorker) handleReconciliationPending(ctx context.Context, event *models.ReconciliationPendingEvent) error {
	c, err := w.store.GetCase(ctx, event.CaseID)
	if err != nil {
		w.logger.Error("failed to load reconciliation case",
			zap.Int64("case_id", event.CaseID),
			zap.String("order_ref", event.OrderRef),
			zap.Error(err))
		return err
	}

	if c.Status != models.CaseStatusOpen {
		// Support already resolved it between publish and consume.
		return nil
	}

	util.ReconciliationEscalations.Inc()
	w.logger.Error("payment captured but order creation failed, needs support follow-up",
		zap.Int64("case_id", c.ID),
		zap.String("session_id", event.SessionID),
		zap.String("order_ref", event.OrderRef),
		zap.String("transaction_id", event.TransactionID),
		zap.String("amount", event.Amount.String()),
		zap.String("reason", event.Reason))

	if open, err := w.store.CountOpenCases(ctx); err == nil {
		util.OpenReconciliationCases.Set(float64(open))
	}

	return nil
}

// handleCheckoutCompleted records the confirmation and keeps the
// open-cases gauge current on live traffic.
func (w *ReconcileWorker) handleCheckoutCompleted(ctx context.Context, event *models.CheckoutCompletedEvent) error {
	w.logger.Info("checkout confirmed",
		zap.String("order_ref", event.OrderRef),
		zap.String("order_id", event.OrderID),
		zap.String("method", string(event.Method)),
		zap.String("grand_total", event.GrandTotal.String()))

	if open, err := w.store.CountOpenCases(ctx); err == nil {
		util.OpenReconciliationCases.Set(float64(open))
	}

	return nil
}
