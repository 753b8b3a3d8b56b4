package domain

import "time"

// Category is the diagnostic error_code.
type Category string

const (
	CategorySystem          Category = "SYSTEM"
	CategoryLabelExtraction Category = "LABEL_EXTRACTION"
)

// System subtypes.
const (
	SubtypeWebsocketError = "WEBSOCKET_ERROR"
	SubtypeNoVideoFrame   = "NO_VIDEO_FRAME"
	SubtypeNoAudioContext = "NO_AUDIO_CONTEXT"
	SubtypeEdgeModelError = "EDGE_MODEL_ERROR"
	SubtypeOCRError       = "OCR_ERROR"
	SubtypeTTSError       = "TTS_ERROR"
)

// Label extraction subtypes.
const (
	SubtypeLowBoundingBoxes   = "LOW_BB"
	SubtypeFieldMissing       = "FIELD_MISSING"
	SubtypeLowFieldConfidence = "LOW_FIELD_CONFIDENCE"
)

// StatusMessage is the JSON wire shape of a diagnostic on the status stream.
// Timestamp is epoch milliseconds and may carry a fractional part.
type StatusMessage struct {
	IsCupDetected *bool   `json:"is_cup_detected"`
	IsError       bool    `json:"is_error"`
	ErrorCode     string  `json:"error_code"`
	ErrorSubType  string  `json:"error_sub_type"`
	CorrelationID *string `json:"correlation_id"`
	Timestamp     float64 `json:"timestamp"`
}

// DiagnosticEvent is a timestamped error/status signal routed through the
// correlation engine before anything is displayed.
type DiagnosticEvent struct {
	Category      Category
	Subtype       string
	IsError       bool
	CupDetected   *bool
	CorrelationID string
	Timestamp     time.Time
}

// Event converts the wire shape into a DiagnosticEvent.
func (m StatusMessage) Event() DiagnosticEvent {
	ev := DiagnosticEvent{
		Category:    Category(m.ErrorCode),
		Subtype:     m.ErrorSubType,
		IsError:     m.IsError,
		CupDetected: m.IsCupDetected,
		Timestamp:   time.Unix(0, int64(m.Timestamp*float64(time.Millisecond))),
	}
	if m.CorrelationID != nil {
		ev.CorrelationID = *m.CorrelationID
	}
	return ev
}

// SystemError builds a locally raised System diagnostic.
func SystemError(subtype string, at time.Time) DiagnosticEvent {
	return DiagnosticEvent{
		Category:  CategorySystem,
		Subtype:   subtype,
		IsError:   true,
		Timestamp: at,
	}
}
