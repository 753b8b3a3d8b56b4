// Package control drives the live-feed switch through request/response exchanges on
// the control stream.
package control

import (
	"log/slog"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/metrics"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/config"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/eventloop"
)

// FeedMonitor is the part of the video monitor the switch needs.
type FeedMonitor interface {
	SetLiveFeedSwitch(on bool)
	Live() bool
}

// Toggle is the live-feed state machine: Idle(on|off) -> Pending -> Idle.
//
// A request optimistically moves the switch to the requested position and locks it
// until a response for the same command arrives. A failure response unlocks the switch
// without rolling the position back and raises WEBSOCKET_ERROR. Methods must be called
// on the event loop.
type Toggle struct {
	loop   *eventloop.Loop
	sender domain.Sender
	view   domain.LiveFeedRenderer
	diag   domain.DiagnosticSink
	feed   FeedMonitor
	texts  config.Texts

	on      bool
	pending string
	label   string
}

func NewToggle(loop *eventloop.Loop, sender domain.Sender, view domain.LiveFeedRenderer, diag domain.DiagnosticSink, feed FeedMonitor, texts config.Texts) *Toggle {
	return &Toggle{loop: loop, sender: sender, view: view, diag: diag, feed: feed, texts: texts, label: texts.LiveFeedOff}
}

// Request asks the backend to start (on) or stop the live feed.
func (t *Toggle) Request(on bool) error {
	if t.pending != "" {
		return domain.ErrTogglePending
	}

	command := domain.CommandStop
	if on {
		command = domain.CommandStart
	}

	msg := domain.ControlMessage{Command: command, Type: domain.ControlTypeRequest, Status: domain.StatusInitiated}
	if err := t.sender.Send(domain.StreamControl, msg); err != nil {
		metrics.ControlRequestsTotal.WithLabelValues(command, "send_failed").Inc()
		return err
	}

	t.pending = command
	t.on = on
	t.label = t.texts.ShuttingDown
	if on {
		t.label = t.texts.StartingUp
	}
	t.feed.SetLiveFeedSwitch(on)

	slog.Info("Live feed toggle requested", "command", command)
	t.view.RenderLiveFeed(t.State())
	return nil
}

// HandleResponse consumes a message from the control stream.
func (t *Toggle) HandleResponse(msg domain.ControlMessage) {
	if msg.Type == domain.ControlTypeRequest {
		return
	}
	if t.pending == "" || msg.Command != t.pending {
		slog.Debug("Ignoring unmatched control response", "command", msg.Command, "status", msg.Status, "pending", t.pending)
		return
	}
	t.pending = ""

	if msg.Status == domain.StatusSuccess {
		metrics.ControlRequestsTotal.WithLabelValues(msg.Command, "success").Inc()
		t.label = t.texts.ShutDownComplete
		if msg.Command == domain.CommandStart {
			t.label = t.texts.ReadyToUse
		}
	} else {
		metrics.ControlRequestsTotal.WithLabelValues(msg.Command, "failed").Inc()
		slog.Warn("Live feed toggle failed", "command", msg.Command, "status", msg.Status)
		t.diag.Observe(domain.SystemError(domain.SubtypeWebsocketError, t.loop.Now()))
	}

	t.view.RenderLiveFeed(t.State())
}

// State is the switch as currently drawn.
func (t *Toggle) State() domain.LiveFeedState {
	return domain.LiveFeedState{On: t.on, Pending: t.pending != "", Label: t.label}
}

// LiveFeedView is what the settings dialog shows when opened: the switch position
// inferred from frame recency.
func (t *Toggle) LiveFeedView() domain.LiveFeedState {
	live := t.feed.Live()
	label := t.texts.LiveFeedOff
	if live {
		label = t.texts.LiveFeedOn
	}
	return domain.LiveFeedState{On: live, Pending: t.pending != "", Label: label}
}
