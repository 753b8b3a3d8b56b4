package diagnostics

import (
	"log/slog"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/metrics"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/config"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/eventloop"
)

const (
	colorWarning = "#FFBB10"
	colorError   = "#EC5252"
)

type ScanStatusConfig struct {
	FreshWindow          time.Duration
	StartupPollInterval  time.Duration
	OrderPollDelay       time.Duration
	OrderPollInterval    time.Duration
	DefaultStatusTimeout time.Duration
}

// ScanStatus decides when a label extraction diagnostic is shown on the scan-status bar.
//
// Only the latest diagnostic is kept. Until the first order arrives it is shown on
// every startup poll. After an order, polling pauses for OrderPollDelay and then shows
// the latest diagnostic only if it is newer than the order and still fresh. A shown
// diagnostic is consumed.
type ScanStatus struct {
	loop  *eventloop.Loop
	view  domain.StatusRenderer
	texts config.Texts
	cfg   ScanStatusConfig

	latest *domain.DiagnosticEvent

	startupPoll    *eventloop.Timer
	orderPollDelay *eventloop.Timer
	orderPoll      *eventloop.Timer
	defaultStatus  *eventloop.Timer
}

func NewScanStatus(loop *eventloop.Loop, view domain.StatusRenderer, texts config.Texts, cfg ScanStatusConfig) *ScanStatus {
	return &ScanStatus{loop: loop, view: view, texts: texts, cfg: cfg}
}

func (s *ScanStatus) Start() {
	s.startupPoll.Stop()
	s.startupPoll = s.loop.Every(s.cfg.StartupPollInterval, s.showLatest)
}

func (s *ScanStatus) Stop() {
	s.clearPolls()
	s.defaultStatus.Stop()
}

// Store replaces the latest label extraction diagnostic.
func (s *ScanStatus) Store(ev domain.DiagnosticEvent) {
	s.latest = &ev
	metrics.DiagnosticsTotal.WithLabelValues(string(domain.CategoryLabelExtraction), "stored").Inc()
}

// OrderArrived restarts correlated polling for order and resets the default-status timeout.
func (s *ScanStatus) OrderArrived(order domain.OrderRecord) {
	s.clearPolls()
	s.orderPollDelay = s.loop.AfterFunc(s.cfg.OrderPollDelay, func() {
		s.orderPoll = s.loop.Every(s.cfg.OrderPollInterval, func() { s.showCorrelated(order) })
	})
	s.ResetDefaultStatus()
}

// ResetDefaultStatus reverts the bar to its default view after DefaultStatusTimeout.
func (s *ScanStatus) ResetDefaultStatus() {
	s.defaultStatus.Stop()
	s.defaultStatus = s.loop.AfterFunc(s.cfg.DefaultStatusTimeout, s.view.RenderDefaultStatus)
}

func (s *ScanStatus) showCorrelated(order domain.OrderRecord) {
	if s.latest == nil {
		return
	}
	ts := s.latest.Timestamp
	if !ts.After(order.CreatedAt) || s.loop.Now().Sub(ts) >= s.cfg.FreshWindow {
		return
	}
	s.showLatest()
}

func (s *ScanStatus) showLatest() {
	if s.latest == nil {
		return
	}
	ev := *s.latest
	s.latest = nil

	status, ok := s.statusFor(ev)
	if !ok {
		metrics.DiagnosticsTotal.WithLabelValues(string(domain.CategoryLabelExtraction), decisionUnknown).Inc()
		slog.Debug("Ignoring label extraction diagnostic", "subtype", ev.Subtype, "is_error", ev.IsError)
		return
	}

	metrics.DiagnosticsTotal.WithLabelValues(string(domain.CategoryLabelExtraction), "shown").Inc()
	s.view.RenderScanStatus(status)
	s.ResetDefaultStatus()
}

func (s *ScanStatus) statusFor(ev domain.DiagnosticEvent) (domain.ScanStatus, bool) {
	if !ev.IsError {
		return domain.ScanStatus{}, false
	}
	switch ev.Subtype {
	case domain.SubtypeLowBoundingBoxes:
		return domain.ScanStatus{Message: s.texts.TurnLabel, Color: colorWarning, Severity: domain.SeverityWarning, Subtype: ev.Subtype}, true
	case domain.SubtypeFieldMissing, domain.SubtypeLowFieldConfidence:
		return domain.ScanStatus{Message: s.texts.UnreadableLabel, Color: colorError, Severity: domain.SeverityError, Subtype: ev.Subtype}, true
	default:
		return domain.ScanStatus{}, false
	}
}

func (s *ScanStatus) clearPolls() {
	s.startupPoll.Stop()
	s.orderPollDelay.Stop()
	s.orderPoll.Stop()
	s.startupPoll, s.orderPollDelay, s.orderPoll = nil, nil, nil
}
