// Package diagnostics filters diagnostics by freshness and order correlation before
// anything reaches the screen.
package diagnostics

import (
	"log/slog"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/config"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/eventloop"
	"github.com/google/uuid"
)

// Engine routes System diagnostics to Notifications and label extraction diagnostics
// to ScanStatus. It is the runtime's domain.DiagnosticSink. Methods must be called on
// the event loop.
type Engine struct {
	notifications *Notifications
	scan          *ScanStatus
}

func NewEngine(loop *eventloop.Loop, notifyView domain.NotificationRenderer, statusView domain.StatusRenderer, texts config.Texts, cfg ScanStatusConfig) *Engine {
	return &Engine{
		notifications: NewNotifications(loop, notifyView, texts.Notifications, cfg.FreshWindow),
		scan:          NewScanStatus(loop, statusView, texts, cfg),
	}
}

func (e *Engine) Start() { e.scan.Start() }
func (e *Engine) Stop()  { e.scan.Stop() }

// Observe implements domain.DiagnosticSink.
func (e *Engine) Observe(ev domain.DiagnosticEvent) {
	switch ev.Category {
	case domain.CategorySystem:
		e.notifications.Observe(ev)
	case domain.CategoryLabelExtraction:
		e.scan.Store(ev)
	default:
		slog.Debug("Ignoring diagnostic with unknown category", "category", ev.Category, "subtype", ev.Subtype)
	}
}

// OrderArrived starts correlating label extraction diagnostics with order.
func (e *Engine) OrderArrived(order domain.OrderRecord) {
	e.scan.OrderArrived(order)
}

// Acknowledge dismisses a notification. Acknowledging twice succeeds.
func (e *Engine) Acknowledge(id uuid.UUID) error {
	if !e.notifications.Acknowledge(id) {
		return domain.ErrNotificationAbsent
	}
	return nil
}

// Notifications returns the unacknowledged notifications, oldest first.
func (e *Engine) Notifications() []domain.NotificationRecord {
	return e.notifications.Active()
}
