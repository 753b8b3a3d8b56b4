package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/announce"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/channel"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/control"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/diagnostics"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/feedback"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/config"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/correlation"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/platform/eventloop"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/video"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// View is everything the runtime draws on.
type View interface {
	domain.OrderRenderer
	domain.QueueRenderer
	domain.NotificationRenderer
	domain.StatusRenderer
	domain.FrameRenderer
	domain.LiveFeedRenderer
	domain.FeedbackRenderer
}

type Config struct {
	Channels    channel.ManagerConfig
	Announce    announce.Config
	ScanStatus  diagnostics.ScanStatusConfig
	Texts       config.Texts
	SuccessHide time.Duration

	VideoLivenessWindow time.Duration
	VideoCheckInterval  time.Duration

	// AudioUnavailable raises NO_AUDIO_CONTEXT on start.
	AudioUnavailable bool
}

// NewConfig maps the environment configuration onto the runtime.
func NewConfig(cfg *config.Config, audioUnavailable bool) Config {
	endpoints := make(map[domain.StreamID]string, len(domain.Streams))
	for _, id := range domain.Streams {
		endpoints[id] = cfg.ChannelURL(id)
	}

	return Config{
		Channels: channel.ManagerConfig{
			Endpoints:     endpoints,
			RetryDelay:    cfg.ChannelRetryDelay,
			ProbeInterval: cfg.ChannelProbeInterval,
			MaxRetries:    cfg.ChannelMaxRetries,
		},
		Announce: announce.Config{
			Capacity:         cfg.PresentationCapacity,
			PromoteInterval:  cfg.PromoteInterval,
			PlaybackInterval: cfg.PlaybackInterval,
		},
		ScanStatus: diagnostics.ScanStatusConfig{
			FreshWindow:          cfg.FreshWindow,
			StartupPollInterval:  cfg.StatusStartupPollInterval,
			OrderPollDelay:       cfg.StatusOrderPollDelay,
			OrderPollInterval:    cfg.StatusOrderPollInterval,
			DefaultStatusTimeout: cfg.DefaultStatusTimeout,
		},
		Texts:               cfg.Texts,
		SuccessHide:         cfg.SuccessMessageTimeout,
		VideoLivenessWindow: cfg.VideoLivenessWindow,
		VideoCheckInterval:  cfg.VideoCheckInterval,
		AudioUnavailable:    audioUnavailable,
	}
}

// Kiosk is the runtime: it owns every component, routes channel traffic between them
// and serves the operator use cases. Exported methods are safe from any goroutine and
// hop onto the event loop; everything else runs on the loop.
type Kiosk struct {
	loop *eventloop.Loop
	view View
	cfg  Config

	channels    *channel.Manager
	scheduler   *announce.Scheduler
	diagnostics *diagnostics.Engine
	video       *video.Monitor
	toggle      *control.Toggle
	feedback    *feedback.Reporter

	current     *domain.OrderRecord
	hideSuccess *eventloop.Timer

	resets singleflight.Group
}

func New(loop *eventloop.Loop, dialer channel.Dialer, view View, audio domain.AudioSink, cfg Config) *Kiosk {
	k := &Kiosk{loop: loop, view: view, cfg: cfg}

	k.channels = channel.NewManager(loop, dialer, cfg.Channels, channel.Routes{
		Frame:       k.handleFrame,
		Order:       k.handleOrder,
		Status:      k.handleStatus,
		FeedbackAck: k.handleFeedbackAck,
		Control:     k.handleControl,
		Failure:     k.handleFailure,
		Closed:      k.handleClosed,
	})
	k.diagnostics = diagnostics.NewEngine(loop, view, view, cfg.Texts, cfg.ScanStatus)
	k.scheduler = announce.New(loop, audio, view, cfg.Announce)
	k.video = video.NewMonitor(loop, view, k.diagnostics, cfg.VideoLivenessWindow, cfg.VideoCheckInterval)
	k.toggle = control.NewToggle(loop, k.channels, view, k.diagnostics, k.video, cfg.Texts)
	k.feedback = feedback.NewReporter(k.channels, view)

	return k
}

// Start brings the runtime up on the loop.
func (k *Kiosk) Start(ctx context.Context) error {
	return k.loop.Call(ctx, func() error {
		k.start()
		return nil
	})
}

// Stop tears the runtime down. Pending announcements are abandoned.
func (k *Kiosk) Stop(ctx context.Context) error {
	return k.loop.Call(ctx, func() error {
		k.stop()
		return nil
	})
}

// SetLiveFeed asks the backend to start or stop the live feed.
func (k *Kiosk) SetLiveFeed(ctx context.Context, on bool) error {
	return k.loop.Call(ctx, func() error { return k.toggle.Request(on) })
}

// ReportIssue sends a feedback report for the current order.
func (k *Kiosk) ReportIssue(ctx context.Context) error {
	return k.loop.Call(ctx, k.reportIssue)
}

// AcknowledgeNotification dismisses a notification.
func (k *Kiosk) AcknowledgeNotification(ctx context.Context, id uuid.UUID) error {
	return k.loop.Call(ctx, func() error { return k.diagnostics.Acknowledge(id) })
}

// ResetChannel reopens a channel, typically one that exhausted its retries.
// Concurrent resets of the same stream collapse into one.
func (k *Kiosk) ResetChannel(ctx context.Context, stream domain.StreamID) error {
	_, err, shared := k.resets.Do(string(stream), func() (any, error) {
		return nil, k.loop.Call(ctx, func() error { return k.channels.Reset(stream) })
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Channel reset", "stream", stream, "shared", shared)
	return nil
}

// ChannelStates reports the state of every channel.
func (k *Kiosk) ChannelStates(ctx context.Context) (map[domain.StreamID]domain.ChannelState, error) {
	var states map[domain.StreamID]domain.ChannelState
	err := k.loop.Call(ctx, func() error {
		states = k.channels.States()
		return nil
	})
	return states, err
}

// Status captures the runtime state for the operator API.
func (k *Kiosk) Status(ctx context.Context) (Status, error) {
	var st Status
	err := k.loop.Call(ctx, func() error {
		st = k.status()
		return nil
	})
	return st, err
}

func (k *Kiosk) start() {
	k.diagnostics.Start()
	k.video.Start()
	k.scheduler.Start()
	k.channels.Start()
	k.view.RenderLiveFeed(k.toggle.State())

	if k.cfg.AudioUnavailable {
		k.diagnostics.Observe(domain.SystemError(domain.SubtypeNoAudioContext, k.loop.Now()))
	}
	slog.Info("Kiosk runtime started", "streams", len(domain.Streams))
}

func (k *Kiosk) stop() {
	k.channels.Stop()
	k.scheduler.Stop()
	k.video.Stop()
	k.diagnostics.Stop()
	k.hideSuccess.Stop()
	slog.Info("Kiosk runtime stopped")
}

func (k *Kiosk) handleOrder(msg domain.OrderMessage) {
	order, err := domain.NewOrderRecord(msg, k.loop.Now())
	ctx := correlation.WithCorrelationID(context.Background(), order.CorrelationID)
	if err != nil {
		slog.WarnContext(ctx, "Order announcement dropped", "order_id", order.ID, "error", err)
	}
	slog.InfoContext(ctx, "Order received",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"has_audio", order.HasAudio(),
	)

	k.current = &order
	k.scheduler.Enqueue(order)
	k.view.RenderOrder(order)

	k.hideSuccess.Stop()
	k.hideSuccess = k.loop.AfterFunc(k.cfg.SuccessHide, k.view.HideSuccessMessage)

	k.diagnostics.OrderArrived(order)
}

func (k *Kiosk) handleFrame(f domain.VideoFrame) {
	k.video.Frame(f)
}

func (k *Kiosk) handleStatus(ev domain.DiagnosticEvent) {
	k.diagnostics.Observe(ev)
}

func (k *Kiosk) handleFeedbackAck(ack domain.FeedbackAck) {
	k.feedback.HandleAck(ack)
}

func (k *Kiosk) handleControl(msg domain.ControlMessage) {
	k.toggle.HandleResponse(msg)
}

func (k *Kiosk) handleFailure(stream domain.StreamID, ev domain.DiagnosticEvent) {
	slog.Error("Channel failed", "stream", stream)
	k.diagnostics.Observe(ev)
}

func (k *Kiosk) handleClosed(stream domain.StreamID) {
	if stream == domain.StreamVideo {
		k.video.Closed()
	}
}

func (k *Kiosk) reportIssue() error {
	if k.current == nil {
		return domain.ErrNoActiveOrder
	}
	return k.feedback.Report(*k.current)
}
