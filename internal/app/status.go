package app

import (
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
)

// Status is a point-in-time view of the runtime.
type Status struct {
	Channels      map[domain.StreamID]string  `json:"channels"`
	LiveFeed      domain.LiveFeedState        `json:"live_feed"`
	CurrentOrder  *domain.OrderSummary        `json:"current_order,omitempty"`
	Intake        int                         `json:"intake"`
	Presentation  []SlotStatus                `json:"presentation"`
	Playing       bool                        `json:"playing"`
	Notifications []domain.NotificationRecord `json:"notifications"`
	LastFrameAt   *time.Time                  `json:"last_frame_at,omitempty"`
}

type SlotStatus struct {
	Order domain.OrderSummary `json:"order"`
	Phase string              `json:"phase"`
}

func (k *Kiosk) status() Status {
	st := Status{
		Channels:      make(map[domain.StreamID]string, len(domain.Streams)),
		LiveFeed:      k.toggle.LiveFeedView(),
		Intake:        k.scheduler.IntakeLen(),
		Playing:       k.scheduler.Playing(),
		Notifications: k.diagnostics.Notifications(),
	}

	for id, state := range k.channels.States() {
		st.Channels[id] = state.String()
	}
	for _, slot := range k.scheduler.Presentation() {
		st.Presentation = append(st.Presentation, SlotStatus{Order: slot.Order.Summary(), Phase: slot.Phase.String()})
	}
	if k.current != nil {
		summary := k.current.Summary()
		st.CurrentOrder = &summary
	}
	if at, ok := k.video.LastFrameAt(); ok {
		st.LastFrameAt = &at
	}

	return st
}
