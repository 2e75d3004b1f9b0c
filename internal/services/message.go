package services

import (
	"fmt"
	"strings"

	"nidar/preorder/internal/models"
)

// BuildAgentMessage renders the plain-text order handed to the agent.
// Items follow catalog order so the same form always yields the same text.
func BuildAgentMessage(form models.OrderForm, orderID string, totalPrice int) string {
	lines := SummaryLines(form.Items)
	itemLines := make([]string, 0, len(lines))
	for _, line := range lines {
		itemLines = append(itemLines, fmt.Sprintf("%d x %s - Rs.%d", line.Quantity, line.Name, line.LineTotal))
	}

	instructions := form.SpecialInstructions
	if instructions == "" {
		instructions = "None"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Customer Name: %s\n", form.CustomerName)
	fmt.Fprintf(&b, "Phone: %s\n", form.Phone)
	fmt.Fprintf(&b, "Arrival Time: %s\n", FormatTimeForDisplay(form.ArrivalTime))
	fmt.Fprintf(&b, "Order ID: %s\n", orderID)
	b.WriteString("\nItems:\n")
	b.WriteString(strings.Join(itemLines, "\n"))
	fmt.Fprintf(&b, "\n\nTotal: Rs.%d\n", totalPrice)
	fmt.Fprintf(&b, "\nSpecial Instructions: %s", instructions)
	return b.String()
}
