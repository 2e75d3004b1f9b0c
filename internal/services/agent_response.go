package services

import (
	"math"
	"strconv"
	"strings"

	"nidar/preorder/internal/models"
)

// NormalizeAgentResult maps the agent's result onto the confirmation fields.
// Each field is looked up as snake_case first, then camelCase; when neither is
// present (or it is empty) the locally known value from fallback is used.
func NormalizeAgentResult(result map[string]interface{}, fallback models.AgentResponseData) models.AgentResponseData {
	return models.AgentResponseData{
		WhatsAppMessage: stringField(result, fallback.WhatsAppMessage, "whatsapp_message", "whatsappMessage"),
		OrderID:         stringField(result, fallback.OrderID, "order_id", "orderId"),
		TotalPrice:      intField(result, fallback.TotalPrice, "total_price", "totalPrice"),
		CustomerName:    stringField(result, fallback.CustomerName, "customer_name", "customerName"),
		ArrivalTime:     stringField(result, fallback.ArrivalTime, "arrival_time", "arrivalTime"),
	}
}

func stringField(result map[string]interface{}, fallback string, keys ...string) string {
	for _, key := range keys {
		switch v := result[key].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return fallback
}

func intField(result map[string]interface{}, fallback int, keys ...string) int {
	for _, key := range keys {
		switch v := result[key].(type) {
		case float64:
			if n, ok := toAmount(v); ok {
				return n
			}
		case string:
			if n, ok := parseAmount(v); ok {
				return n
			}
		}
	}
	return fallback
}

// parseAmount reads "556", "Rs.556" or "₹556".
func parseAmount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "Rs.")
	s = strings.TrimPrefix(s, "₹")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return toAmount(f)
}

// maxAmount bounds a total any real order could reach.
const maxAmount = 10_000_000

// toAmount rounds f to whole rupees, rejecting NaN, infinities and values outside [0, maxAmount].
func toAmount(f float64) (int, bool) {
	if math.IsNaN(f) || f < 0 || f > maxAmount {
		return 0, false
	}
	return int(math.Round(f)), true
}
