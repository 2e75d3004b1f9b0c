package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nidar/preorder/internal/models"
)

func TestSnapshotOrderView(t *testing.T) {
	f := newTestFlow(&fakeAgent{}, nil)
	s := models.NewSession("s1", true)
	require.NoError(t, f.OrderNow(s))

	snap := f.Snapshot(s)
	assert.Equal(t, models.ViewOrder, snap.View)
	assert.Equal(t, "20:15", snap.MinArrival)
	assert.Equal(t, "8:15 PM", snap.MinArrivalDisplay)
	assert.Equal(t, 556, snap.TotalPrice)
	assert.Equal(t, 4, snap.TotalItems)
	assert.Len(t, snap.Lines, 3)
	assert.Equal(t, AgentStatusReady, snap.AgentStatus)
	assert.Empty(t, snap.ShareLink)

	s.Submitting = true
	assert.Equal(t, AgentStatusProcessing, f.Snapshot(s).AgentStatus)
}

func TestSnapshotShareLinkOnlyWithMessage(t *testing.T) {
	f := NewOrderFlow(&fakeAgent{}, nil, OrderFlowConfig{
		Location:       time.UTC,
		Now:            func() time.Time { return flowNow },
		ShareLinkBase:  "whatsapp://send",
		ShareRecipient: "919876543210",
	})
	s := models.NewSession("s1", false)
	s.View = models.ViewConfirmation
	s.AgentResponse = &models.AgentResponseData{OrderID: "NID-ABCDE", TotalPrice: 99}

	assert.Empty(t, f.Snapshot(s).ShareLink)

	s.AgentResponse.WhatsAppMessage = "Hi there"
	snap := f.Snapshot(s)
	assert.Equal(t, "whatsapp://send?phone=919876543210&text=Hi%20there", snap.ShareLink)

	snap.Confirmation.OrderID = "changed"
	assert.Equal(t, "NID-ABCDE", s.AgentResponse.OrderID)
}
