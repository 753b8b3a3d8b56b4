package domain

// StreamID names one logical backend stream. Exactly one Channel exists per stream.
type StreamID string

const (
	StreamVideo    StreamID = "video"
	StreamOrders   StreamID = "orders"
	StreamStatus   StreamID = "status"
	StreamFeedback StreamID = "feedback"
	StreamControl  StreamID = "control"
)

// Streams lists every stream in the order the manager opens them.
var Streams = []StreamID{StreamVideo, StreamOrders, StreamStatus, StreamFeedback, StreamControl}

// ParseStreamID validates a stream name.
func ParseStreamID(s string) (StreamID, error) {
	for _, id := range Streams {
		if string(id) == s {
			return id, nil
		}
	}
	return "", ErrUnknownStream
}

// Encoding is the payload encoding a Channel declares for inbound messages.
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingBinary
)

func (e Encoding) String() string {
	switch e {
	case EncodingBinary:
		return "binary"
	default:
		return "json"
	}
}

// ChannelState is the lifecycle state of a Channel.
type ChannelState int

const (
	ChannelClosed ChannelState = iota
	ChannelConnecting
	ChannelOpen
	ChannelFailed
)

func (s ChannelState) String() string {
	switch s {
	case ChannelConnecting:
		return "connecting"
	case ChannelOpen:
		return "open"
	case ChannelFailed:
		return "failed"
	default:
		return "closed"
	}
}

// Envelope is one inbound unit received on a Channel, not yet decoded.
type Envelope struct {
	ChannelID StreamID
	Encoding  Encoding
	Payload   []byte
}
