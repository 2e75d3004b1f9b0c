package models

import "time"

type ViewState string

const (
	ViewHome         ViewState = "home"
	ViewOrder        ViewState = "order"
	ViewConfirmation ViewState = "confirmation"
)

// ValidationErrors holds one optional message per validated field.
type ValidationErrors struct {
	CustomerName string `json:"customerName,omitempty"`
	Phone        string `json:"phone,omitempty"`
	ArrivalTime  string `json:"arrivalTime,omitempty"`
	Items        string `json:"items,omitempty"`
}

const (
	FieldCustomerName = "customerName"
	FieldPhone        = "phone"
	FieldArrivalTime  = "arrivalTime"
	FieldItems        = "items"
)

func (e ValidationErrors) Empty() bool {
	return e == ValidationErrors{}
}

// Clear removes the message of a single field as the user edits it.
func (e *ValidationErrors) Clear(field string) {
	switch field {
	case FieldCustomerName:
		e.CustomerName = ""
	case FieldPhone:
		e.Phone = ""
	case FieldArrivalTime:
		e.ArrivalTime = ""
	case FieldItems:
		e.Items = ""
	}
}

// AgentResponseData is the confirmation shown to the customer.
// After normalization every field is filled, from the agent or from local values.
type AgentResponseData struct {
	WhatsAppMessage string `json:"whatsapp_message"`
	OrderID         string `json:"order_id"`
	TotalPrice      int    `json:"total_price"`
	CustomerName    string `json:"customer_name"`
	ArrivalTime     string `json:"arrival_time"` // display form, "h:mm PM"
}

// SampleConfirmation is the canned agent result used in sample mode.
func SampleConfirmation() AgentResponseData {
	return AgentResponseData{
		WhatsAppMessage: "NEW ORDER - NIDAR Pasta & Burger\n\nOrder ID: NID-A7K2M\nCustomer: Rahul Sharma\nPhone: 9876543210\nArrival: 10:30 PM\n\nItems:\n2x Classic Alfredo Pasta - Rs.298\n1x Tandoori Burger - Rs.119\n1x Cheese Burst Burger - Rs.139\n\nTotal: Rs.556\n\nSpecial Instructions: Extra cheese on the pasta, please. No onions in the burgers.",
		OrderID:         "NID-A7K2M",
		TotalPrice:      556,
		CustomerName:    "Rahul Sharma",
		ArrivalTime:     "10:30 PM",
	}
}

// Fault records a rendering failure of one view until the customer resets it.
type Fault struct {
	View    ViewState `json:"view"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Session is everything one browser tab knows about its order.
type Session struct {
	ID            string             `json:"id"`
	View          ViewState          `json:"view"`
	SampleMode    bool               `json:"sample_mode"`
	Form          OrderForm          `json:"form"`
	Errors        ValidationErrors   `json:"errors"`
	MinArrival    string             `json:"min_arrival"`
	OrderID       string             `json:"order_id,omitempty"`
	AgentResponse *AgentResponseData `json:"agent_response,omitempty"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	Submitting    bool               `json:"submitting"`
	Fault         *Fault             `json:"fault,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func NewSession(id string, sampleMode bool) *Session {
	return &Session{
		ID:         id,
		View:       ViewHome,
		SampleMode: sampleMode,
		Form:       EmptyOrderForm(),
		UpdatedAt:  time.Now(),
	}
}
