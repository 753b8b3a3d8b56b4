package domain

// Control commands and statuses on the control stream.
const (
	CommandStart = "start"
	CommandStop  = "stop"

	ControlTypeRequest = "request"
	StatusInitiated    = "initiated"
	StatusSuccess      = "success"
)

// ControlMessage is both the request and the response shape of the control stream.
type ControlMessage struct {
	Command string `json:"command"`
	Type    string `json:"type,omitempty"`
	Status  string `json:"status"`
}

// LiveFeedState is what the live-feed switch shows.
type LiveFeedState struct {
	On      bool   `json:"on"`
	Pending bool   `json:"pending"`
	Label   string `json:"label"`
}
