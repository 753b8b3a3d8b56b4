package domain

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Field is one transformed label field, kept in the order the backend sent it.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Fields preserves key order of the backend's transformed_fields object.
type Fields []Field

// UnmarshalJSON decodes a JSON object into ordered fields. Non-string values keep
// their raw JSON text.
func (f *Fields) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("transformed_fields: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("transformed_fields: expected object, got %v", tok)
	}

	out := Fields{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("transformed_fields: %w", err)
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("transformed_fields[%s]: %w", key, err)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(raw)
		}
		out = append(out, Field{Name: key, Value: s})
	}
	*f = out
	return nil
}

// OrderMessage is the JSON payload of the orders stream.
type OrderMessage struct {
	TransformedFields Fields `json:"transformed_fields"`
	CapturedFrame     string `json:"captured_frame"`
	AudioByte         string `json:"audio_byte"`
	CorrelationID     string `json:"correlation_id"`
	DeviceID          string `json:"device_id"`
	StoreID           string `json:"store_id"`
	OrderType         string `json:"order_type"`
	OrderNumber       string `json:"order_number"`
}

// OrderRecord is an announceable order. Immutable after creation.
type OrderRecord struct {
	ID                uuid.UUID
	TransformedFields Fields
	CapturedFrame     string
	Audio             []byte
	CorrelationID     string
	DeviceID          string
	StoreID           string
	OrderType         string
	OrderNumber       string
	CreatedAt         time.Time
}

// NewOrderRecord builds the record for an order message received at. The audio is
// base64 on the wire; an undecodable announcement is returned alongside the record,
// which then carries no audio.
func NewOrderRecord(msg OrderMessage, at time.Time) (OrderRecord, error) {
	order := OrderRecord{
		ID:                uuid.New(),
		TransformedFields: msg.TransformedFields,
		CapturedFrame:     msg.CapturedFrame,
		CorrelationID:     msg.CorrelationID,
		DeviceID:          msg.DeviceID,
		StoreID:           msg.StoreID,
		OrderType:         msg.OrderType,
		OrderNumber:       msg.OrderNumber,
		CreatedAt:         at,
	}
	if msg.AudioByte == "" {
		return order, nil
	}
	audio, err := base64.StdEncoding.DecodeString(msg.AudioByte)
	if err != nil {
		return order, fmt.Errorf("audio_byte: %w", err)
	}
	order.Audio = audio
	return order, nil
}

// HasAudio reports whether the order carries an announcement.
func (o OrderRecord) HasAudio() bool {
	return len(o.Audio) > 0
}

// SlotPhase is the lifecycle phase of an order occupying a presentation slot.
type SlotPhase int

const (
	PhaseQueued SlotPhase = iota
	PhaseDisplayingAudio
	PhaseAwaitingAck
	PhaseRemoved
)

func (p SlotPhase) String() string {
	switch p {
	case PhaseDisplayingAudio:
		return "displaying-audio"
	case PhaseAwaitingAck:
		return "awaiting-ack"
	case PhaseRemoved:
		return "removed"
	default:
		return "queued"
	}
}

// PresentationSlot is an order currently occupying one of the K display positions.
type PresentationSlot struct {
	Order OrderRecord
	Phase SlotPhase
}

// OrderSummary is the JSON view of an order. It leaves out the audio and the
// captured frame.
type OrderSummary struct {
	ID            uuid.UUID `json:"id"`
	OrderNumber   string    `json:"order_number"`
	OrderType     string    `json:"order_type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Fields        []Field   `json:"fields"`
	HasAudio      bool      `json:"has_audio"`
	CreatedAt     time.Time `json:"created_at"`
}

func (o OrderRecord) Summary() OrderSummary {
	return OrderSummary{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		OrderType:     o.OrderType,
		CorrelationID: o.CorrelationID,
		Fields:        o.TransformedFields,
		HasAudio:      o.HasAudio(),
		CreatedAt:     o.CreatedAt,
	}
}
