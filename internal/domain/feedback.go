package domain

import "strings"

const capturedFramePrefix = "data:image/jpeg;base64,"

// FeedbackRequest reports an issue with a recognised order.
type FeedbackRequest struct {
	OrderType     string `json:"order_type"`
	OrderNumber   string `json:"order_number"`
	CapturedFrame string `json:"captured_frame"`
	CorrelationID string `json:"correlation_id"`
	DeviceID      string `json:"device_id"`
	StoreID       string `json:"store_id"`
}

// NewFeedbackRequest builds the request for an order, stripping the data-URL prefix
// from the captured frame.
func NewFeedbackRequest(o OrderRecord) FeedbackRequest {
	return FeedbackRequest{
		OrderType:     o.OrderType,
		OrderNumber:   o.OrderNumber,
		CapturedFrame: strings.TrimPrefix(o.CapturedFrame, capturedFramePrefix),
		CorrelationID: o.CorrelationID,
		DeviceID:      o.DeviceID,
		StoreID:       o.StoreID,
	}
}

// FeedbackAck is the backend's acknowledgement of a FeedbackRequest.
type FeedbackAck struct {
	Outcome string `json:"outcome"`
	Detail  string `json:"detail"`
}

// Accepted reports whether the backend stored the feedback.
func (a FeedbackAck) Accepted() bool {
	return a.Outcome == StatusSuccess
}
