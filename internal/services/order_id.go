package services

import "math/rand"

const (
	OrderIDPrefix   = "NID-"
	orderIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	orderIDLength   = 5
)

// OrderIDGenerator produces the local fallback order id.
type OrderIDGenerator func() string

// GenerateOrderID returns NID- followed by 5 uniformly drawn characters of A-Z0-9.
func GenerateOrderID() string {
	buf := make([]byte, orderIDLength)
	for i := range buf {
		buf[i] = orderIDAlphabet[rand.Intn(len(orderIDAlphabet))]
	}
	return OrderIDPrefix + string(buf)
}
