package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nidar/preorder/internal/models"
)

type fakeAgent struct {
	mu       sync.Mutex
	calls    int
	messages []string
	agentIDs []string
	reply    *AgentReply
	err      error
	// block, when set, holds the call until closed
	block chan struct{}
	// started is signalled when a call begins
	started chan struct{}
	// onCall runs inside the call, before it returns
	onCall func()
}

func (a *fakeAgent) SubmitOrder(_ context.Context, message, agentID string) (*AgentReply, error) {
	a.mu.Lock()
	a.calls++
	a.messages = append(a.messages, message)
	a.agentIDs = append(a.agentIDs, agentID)
	a.mu.Unlock()
	if a.started != nil {
		a.started <- struct{}{}
	}
	if a.block != nil {
		<-a.block
	}
	if a.onCall != nil {
		a.onCall()
	}
	return a.reply, a.err
}

func (a *fakeAgent) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []PlacedOrderEvent
}

func (p *recordingPublisher) PublishOrderPlaced(evt PlacedOrderEvent) {
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// ctxStore fails once the caller's context is done, as a network-backed store does.
type ctxStore struct {
	SessionStore
}

func (c ctxStore) Get(ctx context.Context, id string) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.SessionStore.Get(ctx, id)
}

func (c ctxStore) Save(ctx context.Context, s *models.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.SessionStore.Save(ctx, s)
}

// 19:50 in the restaurant, so the minimum arrival is 20:15
var flowNow = time.Date(2026, 10, 19, 19, 50, 0, 0, time.UTC)

func newTestFlow(agent AgentSubmitter, publisher OrderEventPublisher) *OrderFlow {
	return NewOrderFlow(agent, publisher, OrderFlowConfig{
		AgentID:    "agent-123",
		MinLead:    25 * time.Minute,
		Location:   time.UTC,
		Now:        func() time.Time { return flowNow },
		NewOrderID: func() string { return "NID-TEST1" },
	})
}

func fillValidOrder(t *testing.T, f *OrderFlow, s *models.Session) {
	t.Helper()
	name, phone, arrival := "Rahul Sharma", "9876543210", "20:30"
	require.NoError(t, f.UpdateDetails(s, DetailsUpdate{CustomerName: &name, Phone: &phone, ArrivalTime: &arrival}))
	require.NoError(t, f.AddItem(s, "pasta-alfredo"))
	require.NoError(t, f.AddItem(s, "pasta-alfredo"))
	require.NoError(t, f.AddItem(s, "burger-tandoori"))
	require.NoError(t, f.AddItem(s, "burger-cheeseburst"))
}

func TestOrderNowAndBack(t *testing.T) {
	f := newTestFlow(&fakeAgent{}, nil)
	s := models.NewSession("s1", false)

	require.NoError(t, f.OrderNow(s))
	assert.Equal(t, models.ViewOrder, s.View)
	assert.Equal(t, "20:15", s.MinArrival)
	assert.Empty(t, s.Form.Items)

	require.NoError(t, f.AddItem(s, "burger-classic"))
	s.ErrorMessage = "old error"
	require.NoError(t, f.Back(s))
	assert.Equal(t, models.ViewHome, s.View)
	assert.Empty(t, s.ErrorMessage)
	assert.Equal(t, 1, s.Form.Quantity("burger-classic"), "form survives back navigation")
}

func TestTransitionsOutsideTheirView(t *testing.T) {
	f := newTestFlow(&fakeAgent{}, nil)
	s := models.NewSession("s1", false)

	assert.ErrorIs(t, f.Back(s), ErrInvalidTransition)
	assert.ErrorIs(t, f.NewOrder(s), ErrInvalidTransition)
	assert.ErrorIs(t, f.AddItem(s, "burger-classic"), ErrInvalidTransition)
	_, err := f.BeginSubmit(s)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, f.OrderNow(s))
	assert.ErrorIs(t, f.OrderNow(s), ErrInvalidTransition)
}

func TestAddUnknownItem(t *testing.T) {
	f := newTestFlow(&fakeAgent{}, nil)
	s := models.NewSession("s1", false)
	require.NoError(t, f.OrderNow(s))

	assert.ErrorIs(t, f.AddItem(s, "pizza"), models.ErrUnknownMenuItem)
	assert.Empty(t, s.Form.Items)
}

func TestEditingClearsOnlyThatFieldError(t *testing.T) {
	f := newTestFlow(&fakeAgent{}, nil)
	s := models.NewSession("s1", false)
	require.NoError(t, f.OrderNow(s))

	_, err := f.BeginSubmit(s)
	require.ErrorIs(t, err, ErrValidationFailed)
	require.NotEmpty(t, s.Errors.Phone)
	require.NotEmpty(t, s.Errors.CustomerName)

	phone := "98-76"
	require.NoError(t, f.UpdateDetails(s, DetailsUpdate{Phone: &phone}))
	assert.Equal(t, "9876", s.Form.Phone)
	assert.Empty(t, s.Errors.Phone)
	assert.NotEmpty(t, s.Errors.CustomerName)
	assert.NotEmpty(t, s.Errors.ArrivalTime)

	require.NoError(t, f.AddItem(s, "burger-classic"))
	assert.Empty(t, s.Errors.Items)
	assert.NotEmpty(t, s.Errors.CustomerName)
}

// The agent confirms and totals match the local computation.
func TestSubmitSuccess(t *testing.T) {
	agent := &fakeAgent{reply: &AgentReply{Result: map[string]interface{}{
		"whatsappMessage": "NEW ORDER ...",
		"orderId":         "NID-AGENT",
	}}}
	publisher := &recordingPublisher{}
	f := newTestFlow(agent, publisher)
	sessions := NewSessionManager(NewMemorySessionStore(time.Hour), false)
	ctx := context.Background()

	s, err := sessions.WithSession(ctx, "", func(s *models.Session) error {
		require.NoError(t, f.OrderNow(s))
		fillValidOrder(t, f, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 556, TotalPrice(s.Form.Items))

	s, err = f.Submit(ctx, sessions, s.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ViewConfirmation, s.View)
	assert.False(t, s.Submitting)
	assert.Equal(t, "NID-TEST1", s.OrderID)
	require.NotNil(t, s.AgentResponse)
	assert.Equal(t, "NID-AGENT", s.AgentResponse.OrderID)
	assert.Equal(t, 556, s.AgentResponse.TotalPrice)
	assert.Equal(t, "Rahul Sharma", s.AgentResponse.CustomerName)
	assert.Equal(t, "8:30 PM", s.AgentResponse.ArrivalTime)
	assert.Equal(t, "NEW ORDER ...", s.AgentResponse.WhatsAppMessage)

	require.Equal(t, 1, agent.callCount())
	assert.Equal(t, []string{"agent-123"}, agent.agentIDs)
	assert.Contains(t, agent.messages[0], "Order ID: NID-TEST1")
	assert.Contains(t, agent.messages[0], "Total: Rs.556")

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "NID-AGENT", publisher.events[0].OrderID)
	assert.Equal(t, 556, publisher.events[0].TotalPrice)
	assert.Len(t, publisher.events[0].Items, 3)

	s, err = sessions.WithSession(ctx, s.ID, f.NewOrder)
	require.NoError(t, err)
	assert.Equal(t, models.ViewHome, s.View)
	assert.Empty(t, s.Form.Items)
	assert.Empty(t, s.OrderID)
	assert.Nil(t, s.AgentResponse)
}

// An empty phone blocks submission before any network call.
func TestSubmitEmptyPhoneIsBlocked(t *testing.T) {
	agent := &fakeAgent{}
	f := newTestFlow(agent, nil)
	sessions := NewSessionManager(NewMemorySessionStore(time.Hour), false)
	ctx := context.Background()

	s, err := sessions.WithSession(ctx, "", func(s *models.Session) error {
		require.NoError(t, f.OrderNow(s))
		fillValidOrder(t, f, s)
		empty := ""
		return f.UpdateDetails(s, DetailsUpdate{Phone: &empty})
	})
	require.NoError(t, err)

	s, err = f.Submit(ctx, sessions, s.ID)

	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, "Enter a valid 10-digit phone number", s.Errors.Phone)
	assert.Empty(t, s.Errors.CustomerName)
	assert.Equal(t, models.ViewOrder, s.View)
	assert.False(t, s.Submitting)
	assert.Zero(t, agent.callCount())
}

// Sample mode pre-fills the form and confirms without the agent.
func TestSampleModeBypassesAgent(t *testing.T) {
	agent := &fakeAgent{}
	publisher := &recordingPublisher{}
	f := newTestFlow(agent, publisher)
	sessions := NewSessionManager(NewMemorySessionStore(time.Hour), false)
	ctx := context.Background()

	s, err := sessions.WithSession(ctx, "", func(s *models.Session) error {
		require.NoError(t, f.SetSampleMode(s, true))
		assert.Equal(t, models.ViewHome, s.View, "toggle on home only sets the flag")
		assert.Empty(t, s.Form.Items)
		return f.OrderNow(s)
	})
	require.NoError(t, err)
	assert.Equal(t, "Rahul Sharma", s.Form.CustomerName)
	assert.Equal(t, "20:15", s.Form.ArrivalTime)
	assert.Equal(t, 556, TotalPrice(s.Form.Items))

	s, err = f.Submit(ctx, sessions, s.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ViewConfirmation, s.View)
	require.NotNil(t, s.AgentResponse)
	assert.Equal(t, models.SampleConfirmation(), *s.AgentResponse)
	assert.Zero(t, agent.callCount())
	assert.Empty(t, publisher.events)
}

func TestSampleToggleOnOrderViewSwapsForm(t *testing.T) {
	f := newTestFlow(&fakeAgent{}, nil)
	s := models.NewSession("s1", false)
	require.NoError(t, f.OrderNow(s))
	require.NoError(t, f.AddItem(s, "burger-loaded"))

	require.NoError(t, f.SetSampleMode(s, true))
	assert.Equal(t, models.SampleOrderForm("20:15"), s.Form)

	require.NoError(t, f.SetSampleMode(s, false))
	assert.Equal(t, models.EmptyOrderForm(), s.Form)
	assert.Equal(t, models.ViewOrder, s.View)
}

// The agent fails without a message; the form stays and so does the view.
func TestSubmitAgentFailureKeepsForm(t *testing.T) {
	agent := &fakeAgent{err: &AgentError{Kind: AgentFailureApplication, Message: MsgAgentFailure}}
	f := newTestFlow(agent, nil)
	sessions := NewSessionManager(NewMemorySessionStore(time.Hour), false)
	ctx := context.Background()

	s, err := sessions.WithSession(ctx, "", func(s *models.Session) error {
		require.NoError(t, f.OrderNow(s))
		fillValidOrder(t, f, s)
		return nil
	})
	require.NoError(t, err)
	before := s.Form

	s, err = f.Submit(ctx, sessions, s.ID)
	require.NoError(t, err)

	assert.Equal(t, "Something went wrong. Please try again.", s.ErrorMessage)
	assert.Equal(t, models.ViewOrder, s.View)
	assert.Equal(t, before, s.Form)
	assert.False(t, s.Submitting)
	assert.Nil(t, s.AgentResponse)
	assert.Equal(t, 1, agent.callCount())
}

// The browser goes away while the agent works; the result is still applied.
func TestSubmitAppliesResultAfterRequestCancelled(t *testing.T) {
	reqCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agent := &fakeAgent{
		reply:  &AgentReply{Result: map[string]interface{}{"order_id": "NID-AGENT"}},
		onCall: cancel,
	}
	publisher := &recordingPublisher{}
	f := newTestFlow(agent, publisher)
	sessions := NewSessionManager(ctxStore{NewMemorySessionStore(time.Hour)}, false)

	s, err := sessions.WithSession(reqCtx, "", func(s *models.Session) error {
		require.NoError(t, f.OrderNow(s))
		fillValidOrder(t, f, s)
		return nil
	})
	require.NoError(t, err)
	id := s.ID

	s, err = f.Submit(reqCtx, sessions, id)
	require.NoError(t, err)
	require.ErrorIs(t, reqCtx.Err(), context.Canceled)
	assert.Equal(t, models.ViewConfirmation, s.View)

	ctx := context.Background()
	loaded, err := sessions.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, loaded.ID)
	assert.False(t, loaded.Submitting)
	assert.Equal(t, models.ViewConfirmation, loaded.View)
	require.NotNil(t, loaded.AgentResponse)
	assert.Equal(t, "NID-AGENT", loaded.AgentResponse.OrderID)
	assert.Equal(t, 1, publisher.count())

	_, err = sessions.WithSession(ctx, id, f.NewOrder)
	assert.NoError(t, err)
}

// A failed call during a cancelled request still leaves the form retryable.
func TestSubmitFailureAfterRequestCancelledIsRetryable(t *testing.T) {
	reqCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agent := &fakeAgent{
		err:    &AgentError{Kind: AgentFailureNetwork, Message: MsgNetworkError},
		onCall: cancel,
	}
	f := newTestFlow(agent, nil)
	sessions := NewSessionManager(ctxStore{NewMemorySessionStore(time.Hour)}, false)

	s, err := sessions.WithSession(reqCtx, "", func(s *models.Session) error {
		require.NoError(t, f.OrderNow(s))
		fillValidOrder(t, f, s)
		return nil
	})
	require.NoError(t, err)
	id := s.ID

	_, err = f.Submit(reqCtx, sessions, id)
	require.NoError(t, err)

	ctx := context.Background()
	loaded, err := sessions.Load(ctx, id)
	require.NoError(t, err)
	assert.False(t, loaded.Submitting)
	assert.Equal(t, models.ViewOrder, loaded.View)
	assert.Equal(t, MsgNetworkError, loaded.ErrorMessage)

	agent.onCall = nil
	agent.err = nil
	agent.reply = &AgentReply{Result: map[string]interface{}{}}
	s, err = f.Submit(ctx, sessions, id)
	require.NoError(t, err)
	assert.Equal(t, models.ViewConfirmation, s.View)
	assert.Equal(t, 2, agent.callCount())
}

func TestSubmitNetworkFailureMessage(t *testing.T) {
	agent := &fakeAgent{err: &AgentError{Kind: AgentFailureNetwork, Message: MsgNetworkError}}
	f := newTestFlow(agent, nil)
	s := models.NewSession("s1", false)
	require.NoError(t, f.OrderNow(s))
	fillValidOrder(t, f, s)

	sub, err := f.BeginSubmit(s)
	require.NoError(t, err)
	require.NotNil(t, sub)
	f.CompleteSubmit(s, sub, f.Execute(context.Background(), sub))

	assert.Equal(t, MsgNetworkError, s.ErrorMessage)
	assert.Equal(t, models.ViewOrder, s.View)
}

func TestNoTransitionWhileSubmitting(t *testing.T) {
	agent := &fakeAgent{
		reply:   &AgentReply{Result: map[string]interface{}{}},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	f := newTestFlow(agent, nil)
	sessions := NewSessionManager(NewMemorySessionStore(time.Hour), false)
	ctx := context.Background()

	s, err := sessions.WithSession(ctx, "", func(s *models.Session) error {
		require.NoError(t, f.OrderNow(s))
		fillValidOrder(t, f, s)
		return nil
	})
	require.NoError(t, err)
	id := s.ID

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(ctx, sessions, id)
		done <- err
	}()
	<-agent.started

	_, err = f.Submit(ctx, sessions, id)
	assert.ErrorIs(t, err, ErrSubmissionInProgress)
	_, err = sessions.WithSession(ctx, id, f.Back)
	assert.ErrorIs(t, err, ErrSubmissionInProgress)
	_, err = sessions.WithSession(ctx, id, func(s *models.Session) error { return f.SetSampleMode(s, true) })
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	loaded, err := sessions.Load(ctx, id)
	require.NoError(t, err)
	assert.True(t, loaded.Submitting)

	close(agent.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, agent.callCount())

	loaded, err = sessions.Load(ctx, id)
	require.NoError(t, err)
	assert.False(t, loaded.Submitting)
	assert.Equal(t, models.ViewConfirmation, loaded.View)
}

func TestMinArrivalUsesRestaurantTimezone(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	f := NewOrderFlow(&fakeAgent{}, nil, OrderFlowConfig{
		Location: loc,
		Now:      func() time.Time { return time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC) },
	})
	assert.Equal(t, "19:55", f.MinArrival())
}
