// Package video renders the live camera feed and watches it for staleness.
package video

import (
	"log/slog"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/eventloop"
)

// Monitor tracks the time of the last video frame. On every check interval a stale
// feed is blanked, and if the operator has switched the live feed on a NO_VIDEO_FRAME
// diagnostic is raised. Methods must be called on the event loop.
type Monitor struct {
	loop     *eventloop.Loop
	view     domain.FrameRenderer
	diag     domain.DiagnosticSink
	window   time.Duration
	interval time.Duration

	lastFrameAt time.Time
	hasFrame    bool
	switchOn    bool
	check       *eventloop.Timer
}

func NewMonitor(loop *eventloop.Loop, view domain.FrameRenderer, diag domain.DiagnosticSink, window, interval time.Duration) *Monitor {
	return &Monitor{loop: loop, view: view, diag: diag, window: window, interval: interval}
}

func (m *Monitor) Start() {
	m.check.Stop()
	m.check = m.loop.Every(m.interval, m.checkLive)
}

func (m *Monitor) Stop() {
	m.check.Stop()
}

// Frame renders one frame from the video stream.
func (m *Monitor) Frame(f domain.VideoFrame) {
	m.lastFrameAt = m.loop.Now()
	m.hasFrame = true
	m.view.RenderFrame(f.RawFrame)
}

// Closed blanks the feed when the video channel goes away.
func (m *Monitor) Closed() {
	m.view.RenderBlank()
}

// SetLiveFeedSwitch records the operator's switch position.
func (m *Monitor) SetLiveFeedSwitch(on bool) {
	m.switchOn = on
}

// Live reports whether a frame arrived within the liveness window.
func (m *Monitor) Live() bool {
	return m.hasFrame && m.loop.Now().Sub(m.lastFrameAt) <= m.window
}

// LastFrameAt returns when the last frame arrived.
func (m *Monitor) LastFrameAt() (time.Time, bool) {
	return m.lastFrameAt, m.hasFrame
}

func (m *Monitor) checkLive() {
	if m.Live() {
		return
	}
	if m.switchOn {
		m.diag.Observe(domain.SystemError(domain.SubtypeNoVideoFrame, m.loop.Now()))
	}
	slog.Debug("No video frame within liveness window", "window", m.window, "live_feed_switch", m.switchOn)
	m.view.RenderBlank()
}
