package domain

// Sinks decouple the runtime from whatever draws the kiosk screen. Every method is
// invoked on the event loop goroutine and must not block.

// OrderRenderer draws the summary of the most recent order.
type OrderRenderer interface {
	RenderOrder(order OrderRecord)
	HideSuccessMessage()
}

// QueueRenderer draws the presentation queue.
type QueueRenderer interface {
	SlotPresented(order OrderRecord)
	SlotAnnouncing(order OrderRecord)
	SlotRemoved(order OrderRecord)
}

// NotificationRenderer draws the notification panel.
type NotificationRenderer interface {
	RenderNotification(record NotificationRecord)
	RemoveNotification(record NotificationRecord)
}

// StatusRenderer draws the scan-status bar.
type StatusRenderer interface {
	RenderScanStatus(status ScanStatus)
	RenderDefaultStatus()
}

// FrameRenderer draws the live video feed.
type FrameRenderer interface {
	RenderFrame(jpeg []byte)
	RenderBlank()
}

// LiveFeedRenderer draws the live-feed switch.
type LiveFeedRenderer interface {
	RenderLiveFeed(state LiveFeedState)
}

// FeedbackRenderer draws the outcome of an issue report.
type FeedbackRenderer interface {
	RenderFeedbackResult(accepted bool)
}

// AudioSink plays one announcement. The returned channel receives exactly one value
// (nil on normal completion) when playback has ended.
type AudioSink interface {
	Play(audio []byte) <-chan error
}

// DiagnosticSink accepts diagnostics raised anywhere in the runtime.
type DiagnosticSink interface {
	Observe(event DiagnosticEvent)
}

// Sender sends a JSON message on a stream.
type Sender interface {
	Send(stream StreamID, v any) error
}
