package services

import "nidar/preorder/internal/models"

// SummaryLine is one row of the order summary.
type SummaryLine struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int    `json:"unit_price"`
	LineTotal int    `json:"line_total"`
}

// TotalPrice sums quantity x price over the catalog; unknown ids contribute nothing.
func TotalPrice(items map[string]int) int {
	total := 0
	for _, item := range models.GetAllMenuItems() {
		total += item.Price * items[item.ID]
	}
	return total
}

// TotalItems is the number of units across all lines.
func TotalItems(items map[string]int) int {
	count := 0
	for _, qty := range items {
		count += qty
	}
	return count
}

// SummaryLines lists selected items in catalog order, not insertion order.
// An empty result means the cart is empty.
func SummaryLines(items map[string]int) []SummaryLine {
	var lines []SummaryLine
	for _, item := range models.GetAllMenuItems() {
		qty := items[item.ID]
		if qty <= 0 {
			continue
		}
		lines = append(lines, SummaryLine{
			ItemID:    item.ID,
			Name:      item.Name,
			Quantity:  qty,
			UnitPrice: item.Price,
			LineTotal: item.Price * qty,
		})
	}
	return lines
}
