package services

import "nidar/preorder/internal/models"

const (
	AgentStatusReady      = "Ready"
	AgentStatusProcessing = "Processing"
)

// SessionSnapshot is the read model of a session: what the views and the JSON API show.
type SessionSnapshot struct {
	ID                string                    `json:"id"`
	View              models.ViewState          `json:"view"`
	SampleMode        bool                      `json:"sample_mode"`
	Form              models.OrderForm          `json:"form"`
	Errors            models.ValidationErrors   `json:"errors"`
	MinArrival        string                    `json:"min_arrival"`
	MinArrivalDisplay string                    `json:"min_arrival_display"`
	OrderID           string                    `json:"order_id,omitempty"`
	Lines             []SummaryLine             `json:"lines"`
	TotalPrice        int                       `json:"total_price"`
	TotalItems        int                       `json:"total_items"`
	AgentStatus       string                    `json:"agent_status"`
	Submitting        bool                      `json:"submitting"`
	ErrorMessage      string                    `json:"error_message,omitempty"`
	Confirmation      *models.AgentResponseData `json:"confirmation,omitempty"`
	ShareLink         string                    `json:"share_link,omitempty"`
	Fault             *models.Fault             `json:"fault,omitempty"`
}

// Snapshot derives everything displayed for a session. It never mutates the session.
func (f *OrderFlow) Snapshot(s *models.Session) SessionSnapshot {
	minArrival := s.MinArrival
	if minArrival == "" {
		minArrival = f.MinArrival()
	}

	snap := SessionSnapshot{
		ID:                s.ID,
		View:              s.View,
		SampleMode:        s.SampleMode,
		Form:              s.Form.Clone(),
		Errors:            s.Errors,
		MinArrival:        minArrival,
		MinArrivalDisplay: FormatTimeForDisplay(minArrival),
		OrderID:           s.OrderID,
		Lines:             SummaryLines(s.Form.Items),
		TotalPrice:        TotalPrice(s.Form.Items),
		TotalItems:        TotalItems(s.Form.Items),
		AgentStatus:       AgentStatusReady,
		Submitting:        s.Submitting,
		ErrorMessage:      s.ErrorMessage,
		Fault:             s.Fault,
	}
	if s.Submitting {
		snap.AgentStatus = AgentStatusProcessing
	}
	if s.AgentResponse != nil {
		confirmation := *s.AgentResponse
		snap.Confirmation = &confirmation
		snap.ShareLink = ShareLink(f.shareLinkBase, f.shareRecipient, confirmation.WhatsAppMessage)
	}
	return snap
}
