package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"nidar/preorder/internal/models"
)

// DefaultMinLead is how far ahead of now an arrival must be.
const DefaultMinLead = 25 * time.Minute

const (
	msgNameTooShort   = "Name must be at least 2 characters"
	msgInvalidPhone   = "Enter a valid 10-digit phone number"
	msgArrivalMissing = "Please select an arrival time"
	msgNoItems        = "Please add at least one item to your order"
)

var (
	phonePattern   = regexp.MustCompile(`^\d{10}$`)
	arrivalPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ValidArrival reports whether s is a 24h "HH:MM" time.
func ValidArrival(s string) bool {
	return arrivalPattern.MatchString(s)
}

// Validator checks a form against a minimum arrival time. It keeps no state.
type Validator struct {
	minLead time.Duration
}

func NewValidator(minLead time.Duration) *Validator {
	if minLead <= 0 {
		minLead = DefaultMinLead
	}
	return &Validator{minLead: minLead}
}

// Validate reports every failing field at once. minTime is "HH:MM"; both times are
// same-day 24h strings so plain string comparison orders them.
func (v *Validator) Validate(form models.OrderForm, minTime string) (models.ValidationErrors, bool) {
	var errs models.ValidationErrors

	if utf8.RuneCountInString(strings.TrimSpace(form.CustomerName)) < 2 {
		errs.CustomerName = msgNameTooShort
	}
	if !ValidPhone(form.Phone) {
		errs.Phone = msgInvalidPhone
	}
	if !ValidArrival(form.ArrivalTime) {
		errs.ArrivalTime = msgArrivalMissing
	} else if form.ArrivalTime < minTime {
		errs.ArrivalTime = fmt.Sprintf("Arrival must be at least %d minutes from now (after %s)",
			int(v.minLead/time.Minute), FormatTimeForDisplay(minTime))
	}
	if TotalItems(form.Items) == 0 {
		errs.Items = msgNoItems
	}

	return errs, errs.Empty()
}

// MinArrivalTime returns now+lead as "HH:MM" in now's location.
func MinArrivalTime(now time.Time, lead time.Duration) string {
	return now.Add(lead).Format("15:04")
}

// FormatTimeForDisplay turns "HH:MM" into "h:mm AM|PM". Empty input gives empty output;
// input that is not HH:MM is returned unchanged.
func FormatTimeForDisplay(time24 string) string {
	if !ValidArrival(time24) {
		return time24
	}
	hourStr, minuteStr, _ := strings.Cut(time24, ":")
	hour, _ := strconv.Atoi(hourStr)
	ampm := "AM"
	if hour >= 12 {
		ampm = "PM"
	}
	displayHour := hour % 12
	if displayHour == 0 {
		displayHour = 12
	}
	return fmt.Sprintf("%d:%s %s", displayHour, minuteStr, ampm)
}
