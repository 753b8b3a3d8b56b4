package channel

import (
	"encoding/json"
	"fmt"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// Decode turns an inbound envelope into the typed message for its stream:
// domain.VideoFrame, domain.OrderMessage, domain.DiagnosticEvent,
// domain.FeedbackAck or domain.ControlMessage.
func Decode(env domain.Envelope) (any, error) {
	switch env.ChannelID {
	case domain.StreamVideo:
		var frame domain.VideoFrame
		if err := unmarshal(env, &frame); err != nil {
			return nil, err
		}
		return frame, nil
	case domain.StreamOrders:
		var msg domain.OrderMessage
		if err := unmarshal(env, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case domain.StreamStatus:
		var msg domain.StatusMessage
		if err := unmarshal(env, &msg); err != nil {
			return nil, err
		}
		return msg.Event(), nil
	case domain.StreamFeedback:
		var ack domain.FeedbackAck
		if err := unmarshal(env, &ack); err != nil {
			return nil, err
		}
		return ack, nil
	case domain.StreamControl:
		var msg domain.ControlMessage
		if err := unmarshal(env, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("decode %q: %w", env.ChannelID, domain.ErrUnknownStream)
	}
}

func unmarshal(env domain.Envelope, v any) error {
	var err error
	if env.Encoding == domain.EncodingBinary {
		err = msgpack.Unmarshal(env.Payload, v)
	} else {
		err = json.Unmarshal(env.Payload, v)
	}
	if err != nil {
		return fmt.Errorf("decode %s %s payload: %w", env.ChannelID, env.Encoding, err)
	}
	return nil
}

// Encode serializes an outbound message in the stream's encoding.
func Encode(encoding domain.Encoding, v any) ([]byte, error) {
	if encoding == domain.EncodingBinary {
		return msgpack.Marshal(v)
	}
	return json.Marshal(v)
}
