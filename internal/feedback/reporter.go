// Package feedback reports recognition issues for an order to the backend.
package feedback

import (
	"log/slog"

	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/domain"
	"github.com/Azure-Samples/vision-on-edge-accelerator/internal/metrics"
)

// Reporter sends feedback requests and renders the backend's acknowledgement.
type Reporter struct {
	sender domain.Sender
	view   domain.FeedbackRenderer
}

func NewReporter(sender domain.Sender, view domain.FeedbackRenderer) *Reporter {
	return &Reporter{sender: sender, view: view}
}

// Report sends a feedback request for order.
func (r *Reporter) Report(order domain.OrderRecord) error {
	if err := r.sender.Send(domain.StreamFeedback, domain.NewFeedbackRequest(order)); err != nil {
		metrics.FeedbackReportsTotal.WithLabelValues("send_failed").Inc()
		return err
	}
	metrics.FeedbackReportsTotal.WithLabelValues("sent").Inc()
	slog.Info("Feedback reported", "order_id", order.ID, "correlation_id", order.CorrelationID)
	return nil
}

// HandleAck renders an acknowledgement from the feedback stream.
func (r *Reporter) HandleAck(ack domain.FeedbackAck) {
	outcome := "rejected"
	if ack.Accepted() {
		outcome = "accepted"
	}
	metrics.FeedbackReportsTotal.WithLabelValues(outcome).Inc()
	if !ack.Accepted() {
		slog.Warn("Feedback not stored", "outcome", ack.Outcome, "detail", ack.Detail)
	}
	r.view.RenderFeedbackResult(ack.Accepted())
}
