package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownMenuItem = errors.New("unknown menu item")

// PhoneLength is the number of digits of a local mobile number (no country code).
const PhoneLength = 10

// OrderForm is the customer's in-progress order.
// Items maps a menu item id to a quantity; a missing key means zero and zero is never stored.
type OrderForm struct {
	CustomerName        string         `json:"customer_name"`
	Phone               string         `json:"phone"`
	ArrivalTime         string         `json:"arrival_time"` // "HH:MM", 24h, restaurant local time
	Items               map[string]int `json:"items"`
	SpecialInstructions string         `json:"special_instructions"`
}

func EmptyOrderForm() OrderForm {
	return OrderForm{Items: map[string]int{}}
}

// SampleOrderForm is the canned demo order. The caller supplies a valid arrival time.
func SampleOrderForm(arrivalTime string) OrderForm {
	return OrderForm{
		CustomerName: "Rahul Sharma",
		Phone:        "9876543210",
		ArrivalTime:  arrivalTime,
		Items: map[string]int{
			"pasta-alfredo":      2,
			"burger-tandoori":    1,
			"burger-cheeseburst": 1,
		},
		SpecialInstructions: "Extra cheese on the pasta, please. No onions in the burgers.",
	}
}

func (f *OrderForm) Quantity(id string) int {
	return f.Items[id]
}

func (f *OrderForm) AddItem(id string) error {
	if !IsMenuItem(id) {
		return fmt.Errorf("%w: %s", ErrUnknownMenuItem, id)
	}
	if f.Items == nil {
		f.Items = map[string]int{}
	}
	f.Items[id]++
	return nil
}

// RemoveItem drops one unit; removing the last unit deletes the key.
func (f *OrderForm) RemoveItem(id string) {
	current := f.Items[id]
	if current <= 1 {
		delete(f.Items, id)
		return
	}
	f.Items[id] = current - 1
}

func (f OrderForm) Clone() OrderForm {
	clone := f
	clone.Items = make(map[string]int, len(f.Items))
	for id, qty := range f.Items {
		clone.Items[id] = qty
	}
	return clone
}

// Normalize drops unknown ids and non-positive quantities, e.g. after decoding from a store.
func (f *OrderForm) Normalize() {
	if f.Items == nil {
		f.Items = map[string]int{}
		return
	}
	for id, qty := range f.Items {
		if qty <= 0 || !IsMenuItem(id) {
			delete(f.Items, id)
		}
	}
}

// SanitizePhone keeps digits only and cuts the result to PhoneLength.
func SanitizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if b.Len() == PhoneLength {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
