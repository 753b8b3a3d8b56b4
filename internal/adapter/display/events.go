package display

import (
	"slices"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/google/uuid"
)

// View event types sent to display clients.
const (
	EventSnapshot            = "snapshot"
	EventOrder               = "order"
	EventHideSuccess         = "order.hide_success"
	EventSlotPresented       = "slot.presented"
	EventSlotAnnouncing      = "slot.announcing"
	EventSlotRemoved         = "slot.removed"
	EventNotification        = "notification"
	EventNotificationRemoved = "notification.removed"
	EventScanStatus          = "scan_status"
	EventDefaultStatus       = "scan_status.default"
	EventFrame               = "frame"
	EventBlank               = "frame.blank"
	EventLiveFeed            = "live_feed"
	EventFeedback            = "feedback"
)

// Event is one JSON message on the display socket.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// OrderView is an order as the display draws it.
type OrderView struct {
	domain.OrderSummary
	CapturedFrame string `json:"captured_frame,omitempty"`
}

func orderView(o domain.OrderRecord) OrderView {
	return OrderView{OrderSummary: o.Summary(), CapturedFrame: o.CapturedFrame}
}

type SlotView struct {
	Order      OrderView `json:"order"`
	Announcing bool      `json:"announcing"`
}

type FramePayload struct {
	JPEG []byte `json:"jpeg"`
}

type FeedbackPayload struct {
	Accepted bool `json:"accepted"`
}

// Snapshot is the latest state of every view element. New clients receive it first.
// Video frames are not kept.
type Snapshot struct {
	Order          *OrderView                  `json:"order,omitempty"`
	SuccessVisible bool                        `json:"success_visible"`
	Queue          []SlotView                  `json:"queue"`
	Notifications  []domain.NotificationRecord `json:"notifications"`
	ScanStatus     *domain.ScanStatus          `json:"scan_status,omitempty"`
	LiveFeed       *domain.LiveFeedState       `json:"live_feed,omitempty"`
	Blank          bool                        `json:"blank"`
}

func (s Snapshot) clone() Snapshot {
	s.Queue = slices.Clone(s.Queue)
	s.Notifications = slices.Clone(s.Notifications)
	return s
}

// apply folds ev into the snapshot.
func (s *Snapshot) apply(ev Event) {
	switch ev.Type {
	case EventOrder:
		o := ev.Payload.(OrderView)
		s.Order = &o
		s.SuccessVisible = true
	case EventHideSuccess:
		s.SuccessVisible = false
	case EventSlotPresented:
		s.Queue = append(s.Queue, SlotView{Order: ev.Payload.(OrderView)})
	case EventSlotAnnouncing:
		if i := s.slot(ev.Payload.(OrderView).ID); i >= 0 {
			s.Queue[i].Announcing = true
		}
	case EventSlotRemoved:
		if i := s.slot(ev.Payload.(OrderView).ID); i >= 0 {
			s.Queue = slices.Delete(s.Queue, i, i+1)
		}
	case EventNotification:
		rec := ev.Payload.(domain.NotificationRecord)
		s.Notifications = slices.DeleteFunc(s.Notifications, func(n domain.NotificationRecord) bool {
			return n.Subtype == rec.Subtype
		})
		s.Notifications = append(s.Notifications, rec)
	case EventNotificationRemoved:
		rec := ev.Payload.(domain.NotificationRecord)
		s.Notifications = slices.DeleteFunc(s.Notifications, func(n domain.NotificationRecord) bool {
			return n.ID == rec.ID
		})
	case EventScanStatus:
		st := ev.Payload.(domain.ScanStatus)
		s.ScanStatus = &st
	case EventDefaultStatus:
		s.ScanStatus = nil
	case EventFrame:
		s.Blank = false
	case EventBlank:
		s.Blank = true
	case EventLiveFeed:
		lf := ev.Payload.(domain.LiveFeedState)
		s.LiveFeed = &lf
	}
}

func (s *Snapshot) slot(id uuid.UUID) int {
	return slices.IndexFunc(s.Queue, func(v SlotView) bool { return v.Order.ID == id })
}
