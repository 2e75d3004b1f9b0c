package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"nidar/preorder/internal/models"
)

var (
	ErrSubmissionInProgress = errors.New("an order submission is already in progress")
	ErrInvalidTransition    = errors.New("action not available in the current view")
	ErrValidationFailed     = errors.New("order form is not valid")
)

type OrderFlowConfig struct {
	AgentID    string
	MinLead    time.Duration
	Location   *time.Location
	Now        func() time.Time
	NewOrderID OrderIDGenerator

	// ShareLinkBase and ShareRecipient build the confirmation deep link.
	ShareLinkBase  string
	ShareRecipient string
}

// OrderFlow drives a session through home -> order -> confirmation.
// All methods that take a *models.Session expect the caller to hold the session's lock.
type OrderFlow struct {
	validator  *Validator
	agent      AgentSubmitter
	publisher  OrderEventPublisher
	agentID    string
	minLead    time.Duration
	location   *time.Location
	now        func() time.Time
	newOrderID OrderIDGenerator

	shareLinkBase  string
	shareRecipient string
}

func NewOrderFlow(agent AgentSubmitter, publisher OrderEventPublisher, cfg OrderFlowConfig) *OrderFlow {
	if cfg.MinLead <= 0 {
		cfg.MinLead = DefaultMinLead
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewOrderID == nil {
		cfg.NewOrderID = GenerateOrderID
	}
	if publisher == nil {
		publisher = NoopOrderPublisher{}
	}
	return &OrderFlow{
		validator:  NewValidator(cfg.MinLead),
		agent:      agent,
		publisher:  publisher,
		agentID:    cfg.AgentID,
		minLead:    cfg.MinLead,
		location:   cfg.Location,
		now:        cfg.Now,
		newOrderID: cfg.NewOrderID,

		shareLinkBase:  cfg.ShareLinkBase,
		shareRecipient: cfg.ShareRecipient,
	}
}

// MinArrival is the earliest arrival accepted right now, "HH:MM" in restaurant time.
func (f *OrderFlow) MinArrival() string {
	return MinArrivalTime(f.now().In(f.location), f.minLead)
}

func (f *OrderFlow) MinLead() time.Duration {
	return f.minLead
}

func (f *OrderFlow) Validate(form models.OrderForm, minTime string) (models.ValidationErrors, bool) {
	return f.validator.Validate(form, minTime)
}

func guard(s *models.Session, view models.ViewState) error {
	if s.Submitting {
		return ErrSubmissionInProgress
	}
	if s.View != view {
		return fmt.Errorf("%w: in %s", ErrInvalidTransition, s.View)
	}
	return nil
}

// OrderNow opens the order view; in sample mode the form is replaced by the canned order.
func (f *OrderFlow) OrderNow(s *models.Session) error {
	if err := guard(s, models.ViewHome); err != nil {
		return err
	}
	s.MinArrival = f.MinArrival()
	if s.SampleMode {
		s.Form = models.SampleOrderForm(s.MinArrival)
	}
	s.Errors = models.ValidationErrors{}
	s.ErrorMessage = ""
	s.View = models.ViewOrder
	return nil
}

// Back returns home keeping the form so the customer can continue later.
func (f *OrderFlow) Back(s *models.Session) error {
	if err := guard(s, models.ViewOrder); err != nil {
		return err
	}
	s.View = models.ViewHome
	s.ErrorMessage = ""
	return nil
}

// SetSampleMode flips the demo flag. On the order view the form is swapped right away;
// elsewhere only the flag changes and takes effect on the next OrderNow.
func (f *OrderFlow) SetSampleMode(s *models.Session, on bool) error {
	if s.Submitting {
		return ErrSubmissionInProgress
	}
	s.SampleMode = on
	if s.View != models.ViewOrder {
		return nil
	}
	s.MinArrival = f.MinArrival()
	if on {
		s.Form = models.SampleOrderForm(s.MinArrival)
	} else {
		s.Form = models.EmptyOrderForm()
	}
	s.Errors = models.ValidationErrors{}
	return nil
}

func (f *OrderFlow) AddItem(s *models.Session, id string) error {
	if err := guard(s, models.ViewOrder); err != nil {
		return err
	}
	if err := s.Form.AddItem(id); err != nil {
		return err
	}
	s.Errors.Clear(models.FieldItems)
	return nil
}

func (f *OrderFlow) RemoveItem(s *models.Session, id string) error {
	if err := guard(s, models.ViewOrder); err != nil {
		return err
	}
	s.Form.RemoveItem(id)
	return nil
}

// DetailsUpdate carries the fields the customer edited; nil means untouched.
type DetailsUpdate struct {
	CustomerName        *string
	Phone               *string
	ArrivalTime         *string
	SpecialInstructions *string
}

// UpdateDetails applies edited fields and clears the validation message of each changed field.
func (f *OrderFlow) UpdateDetails(s *models.Session, upd DetailsUpdate) error {
	if err := guard(s, models.ViewOrder); err != nil {
		return err
	}
	if upd.CustomerName != nil && *upd.CustomerName != s.Form.CustomerName {
		s.Form.CustomerName = *upd.CustomerName
		s.Errors.Clear(models.FieldCustomerName)
	}
	if upd.Phone != nil {
		if phone := models.SanitizePhone(*upd.Phone); phone != s.Form.Phone {
			s.Form.Phone = phone
			s.Errors.Clear(models.FieldPhone)
		}
	}
	if upd.ArrivalTime != nil && *upd.ArrivalTime != s.Form.ArrivalTime {
		s.Form.ArrivalTime = *upd.ArrivalTime
		s.Errors.Clear(models.FieldArrivalTime)
	}
	if upd.SpecialInstructions != nil {
		s.Form.SpecialInstructions = *upd.SpecialInstructions
	}
	return nil
}

// RefreshMinArrival recomputes the minimum arrival shown on the order view.
func (f *OrderFlow) RefreshMinArrival(s *models.Session) string {
	s.MinArrival = f.MinArrival()
	return s.MinArrival
}

// NewOrder resets the session for another order.
func (f *OrderFlow) NewOrder(s *models.Session) error {
	if err := guard(s, models.ViewConfirmation); err != nil {
		return err
	}
	s.Form = models.EmptyOrderForm()
	s.AgentResponse = nil
	s.OrderID = ""
	s.ErrorMessage = ""
	s.Errors = models.ValidationErrors{}
	s.View = models.ViewHome
	return nil
}

// ResetFault clears a recorded rendering fault and nothing else.
func (f *OrderFlow) ResetFault(s *models.Session) {
	s.Fault = nil
}

// Submission is an order that passed validation and waits for the agent.
type Submission struct {
	SessionID string
	OrderID   string
	Form      models.OrderForm
	Total     int
	Message   string
}

// SubmissionOutcome is the agent's verdict on a Submission.
type SubmissionOutcome struct {
	Confirmation *models.AgentResponseData
	ErrorMessage string
	Err          error
}

// BeginSubmit validates the form against a freshly computed minimum arrival. It returns
// ErrValidationFailed with the errors stored on the session, or a Submission with the session
// marked Submitting. In sample mode the canned confirmation is applied at once and the
// returned Submission is nil.
func (f *OrderFlow) BeginSubmit(s *models.Session) (*Submission, error) {
	if err := guard(s, models.ViewOrder); err != nil {
		return nil, err
	}

	s.MinArrival = f.MinArrival()
	errs, ok := f.validator.Validate(s.Form, s.MinArrival)
	s.Errors = errs
	if !ok {
		return nil, ErrValidationFailed
	}

	s.ErrorMessage = ""
	s.OrderID = f.newOrderID()

	if s.SampleMode {
		sample := models.SampleConfirmation()
		s.AgentResponse = &sample
		s.View = models.ViewConfirmation
		log.Info().Str("session_id", s.ID).Msg("🧪 Sample order confirmed without agent call")
		return nil, nil
	}

	total := TotalPrice(s.Form.Items)
	s.Submitting = true
	return &Submission{
		SessionID: s.ID,
		OrderID:   s.OrderID,
		Form:      s.Form.Clone(),
		Total:     total,
		Message:   BuildAgentMessage(s.Form, s.OrderID, total),
	}, nil
}

// Execute performs the single agent call. It touches no session state.
func (f *OrderFlow) Execute(ctx context.Context, sub *Submission) SubmissionOutcome {
	reply, err := f.agent.SubmitOrder(ctx, sub.Message, f.agentID)
	if err != nil {
		message := MsgAgentFailure
		var agentErr *AgentError
		if errors.As(err, &agentErr) {
			message = agentErr.Message
		}
		return SubmissionOutcome{ErrorMessage: message, Err: err}
	}

	confirmation := NormalizeAgentResult(reply.Result, models.AgentResponseData{
		OrderID:      sub.OrderID,
		TotalPrice:   sub.Total,
		CustomerName: sub.Form.CustomerName,
		ArrivalTime:  FormatTimeForDisplay(sub.Form.ArrivalTime),
	})
	return SubmissionOutcome{Confirmation: &confirmation}
}

// CompleteSubmit applies the outcome. A failure keeps the form and the order view.
func (f *OrderFlow) CompleteSubmit(s *models.Session, sub *Submission, outcome SubmissionOutcome) {
	s.Submitting = false
	if outcome.Confirmation == nil {
		s.ErrorMessage = outcome.ErrorMessage
		log.Warn().Err(outcome.Err).Str("session_id", s.ID).Str("order_id", sub.OrderID).Msg("⚠️ Order submission failed")
		return
	}

	s.AgentResponse = outcome.Confirmation
	s.View = models.ViewConfirmation
	log.Info().Str("session_id", s.ID).Str("order_id", outcome.Confirmation.OrderID).
		Int("total", outcome.Confirmation.TotalPrice).Msg("✅ Order confirmed by agent")

	f.publisher.PublishOrderPlaced(NewPlacedOrderEvent(sub.Form, *outcome.Confirmation, f.now()))
}

// Submit runs a whole submission for one session. The session lock is released while the
// agent is called, so the session can be rendered as processing meanwhile; the Submitting flag
// keeps every other action out until the result is applied.
func (f *OrderFlow) Submit(ctx context.Context, sessions *SessionManager, sessionID string) (*models.Session, error) {
	var sub *Submission
	s, err := sessions.WithSession(ctx, sessionID, func(s *models.Session) error {
		var err error
		sub, err = f.BeginSubmit(s)
		return err
	})
	if err != nil || sub == nil {
		return s, err
	}

	// a closed tab must neither abort an order the agent may already be processing
	// nor leave the session stuck in Submitting
	applyCtx := context.WithoutCancel(ctx)
	outcome := f.Execute(applyCtx, sub)

	return sessions.WithSession(applyCtx, sub.SessionID, func(s *models.Session) error {
		f.CompleteSubmit(s, sub, outcome)
		return nil
	})
}
