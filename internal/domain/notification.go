package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationRecord is a user-visible System notification. One live instance per subtype.
type NotificationRecord struct {
	ID           uuid.UUID `json:"id"`
	Subtype      string    `json:"subtype"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
}

// Severity classifies a scan-status overlay.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// ScanStatus is the overlay shown for an accepted label extraction diagnostic.
type ScanStatus struct {
	Message  string   `json:"message"`
	Color    string   `json:"color"`
	Severity Severity `json:"severity"`
	Subtype  string   `json:"subtype"`
}
