package diagnostics

import (
	"log/slog"
	"sort"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/metrics"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/config"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/eventloop"
	"github.com/google/uuid"
)

const (
	decisionAccepted   = "accepted"
	decisionSuperseded = "superseded"
	decisionStale      = "stale"
	decisionUnknown    = "unknown"
)

// retiredLimit bounds how many replaced instances stay acknowledgeable.
const retiredLimit = 256

// Notifications turns System diagnostics into notification records, one live
// instance per subtype.
//
// A diagnostic for a subtype that already has a record replaces it only if it is
// newer than the stored record and younger than the fresh window. The stored record
// is kept after acknowledgement so later duplicates are still compared against it.
// Replaced instances count as dismissed; acknowledging one is a no-op.
type Notifications struct {
	loop        *eventloop.Loop
	view        domain.NotificationRenderer
	catalog     map[string]config.NotificationText
	freshWindow time.Duration

	bySubtype map[string]*domain.NotificationRecord
	byID      map[uuid.UUID]*domain.NotificationRecord

	retired      map[uuid.UUID]struct{}
	retiredOrder []uuid.UUID
}

func NewNotifications(loop *eventloop.Loop, view domain.NotificationRenderer, catalog map[string]config.NotificationText, freshWindow time.Duration) *Notifications {
	return &Notifications{
		loop:        loop,
		view:        view,
		catalog:     catalog,
		freshWindow: freshWindow,
		bySubtype:   make(map[string]*domain.NotificationRecord),
		byID:        make(map[uuid.UUID]*domain.NotificationRecord),
		retired:     make(map[uuid.UUID]struct{}),
	}
}

// Observe applies the freshness rule to ev and raises a notification when it passes.
func (n *Notifications) Observe(ev domain.DiagnosticEvent) {
	text, ok := n.catalog[ev.Subtype]
	if !ok {
		n.count(decisionUnknown)
		slog.Debug("Ignoring system diagnostic with unknown subtype", "subtype", ev.Subtype)
		return
	}

	prev, seen := n.bySubtype[ev.Subtype]
	if seen {
		if !ev.Timestamp.After(prev.Timestamp) {
			n.count(decisionSuperseded)
			return
		}
		if n.loop.Now().Sub(ev.Timestamp) >= n.freshWindow {
			n.count(decisionStale)
			return
		}

		n.retire(prev.ID)
		if !prev.Acknowledged {
			n.view.RemoveNotification(*prev)
		}
	}

	rec := &domain.NotificationRecord{
		ID:          uuid.New(),
		Subtype:     ev.Subtype,
		Title:       text.Title,
		Description: text.Description,
		Timestamp:   ev.Timestamp,
	}
	n.bySubtype[ev.Subtype] = rec
	n.byID[rec.ID] = rec

	n.count(decisionAccepted)
	n.updateGauge()
	slog.Info("Notification raised", "subtype", rec.Subtype, "notification_id", rec.ID)
	n.view.RenderNotification(*rec)
}

// Acknowledge dismisses the notification with id. It reports false if no record
// ever had that id. Acknowledging twice, or acknowledging a replaced instance, is
// a no-op.
func (n *Notifications) Acknowledge(id uuid.UUID) bool {
	rec, ok := n.byID[id]
	if !ok {
		_, replaced := n.retired[id]
		return replaced
	}
	if rec.Acknowledged {
		return true
	}

	rec.Acknowledged = true
	n.updateGauge()
	n.view.RemoveNotification(*rec)
	return true
}

// Active returns unacknowledged notifications, oldest first.
func (n *Notifications) Active() []domain.NotificationRecord {
	out := make([]domain.NotificationRecord, 0, len(n.bySubtype))
	for _, rec := range n.bySubtype {
		if !rec.Acknowledged {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Lookup returns the current record for subtype, acknowledged or not.
func (n *Notifications) Lookup(subtype string) (domain.NotificationRecord, bool) {
	rec, ok := n.bySubtype[subtype]
	if !ok {
		return domain.NotificationRecord{}, false
	}
	return *rec, true
}

func (n *Notifications) retire(id uuid.UUID) {
	delete(n.byID, id)
	n.retired[id] = struct{}{}
	n.retiredOrder = append(n.retiredOrder, id)
	if len(n.retiredOrder) > retiredLimit {
		delete(n.retired, n.retiredOrder[0])
		n.retiredOrder = n.retiredOrder[1:]
	}
}

func (n *Notifications) count(decision string) {
	metrics.DiagnosticsTotal.WithLabelValues(string(domain.CategorySystem), decision).Inc()
}

func (n *Notifications) updateGauge() {
	unacked := 0
	for _, rec := range n.bySubtype {
		if !rec.Acknowledged {
			unacked++
		}
	}
	metrics.NotificationsUnacknowledged.Set(float64(unacked))
}
