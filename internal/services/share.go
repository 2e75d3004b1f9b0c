package services

import (
	"net/url"
	"strings"
)

// ShareLink builds the messaging deep link carrying the confirmation text to the restaurant.
// No link is produced without a message.
func ShareLink(base, recipient, message string) string {
	if message == "" {
		return ""
	}
	q := url.Values{}
	q.Set("phone", recipient)
	q.Set("text", message)
	// url.Values encodes spaces as '+', messaging apps expect %20
	encoded := strings.ReplaceAll(q.Encode(), "+", "%20")

	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + encoded
}
