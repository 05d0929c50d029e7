// Package phone validates and normalizes phone numbers to E.164.
package phone

import (
	"errors"
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is assumed for numbers without a country prefix.
const DefaultRegion = "US"

var ErrInvalid = errors.New("invalid phone number")

// Normalize parses raw and returns its E.164 form, e.g. "+15551234567".
func Normalize(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalid
	}

	num, err := phonenumbers.Parse(raw, DefaultRegion)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalid
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// IsValid reports whether raw parses to a valid number.
func IsValid(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}
