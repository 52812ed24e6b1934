package privacy

import (
	"strings"
)

// Masking is deterministic: the same input always produces the same output,
// and the output never equals a non-empty input. The mask run is a fixed
// length so original lengths are not recoverable either.

const (
	phoneMaskRun   = "***"
	addressMaskRun = "****"
)

// MaskPhoneNumber keeps the first 4 and last 3 digits of a phone number.
// Example: "0912345678" -> "0912***678". Short numbers are fully starred.
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}
	if len(phone) <= 7 {
		return strings.Repeat("*", len(phone))
	}
	return phone[:4] + phoneMaskRun + phone[len(phone)-3:]
}

// MaskName keeps the first and last rune of a personal name.
// Example: "王小明" -> "王*明". Two-rune names keep only the first rune.
func MaskName(name string) string {
	runes := []rune(name)
	switch {
	case len(runes) == 0:
		return ""
	case len(runes) <= 2:
		return string(runes[0]) + "*"
	default:
		return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
	}
}

// MaskAddress keeps the first 3 and last 3 runes of an address.
func MaskAddress(address string) string {
	runes := []rune(address)
	if len(runes) == 0 {
		return ""
	}
	if len(runes) <= 6 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:3]) + addressMaskRun + string(runes[len(runes)-3:])
}

// MaskDate keeps the year of an ISO-formatted date and stars the rest.
// Example: "1990-04-17" -> "1990-**-**". Values without a recognizable
// year prefix are fully starred.
func MaskDate(date string) string {
	if date == "" {
		return ""
	}
	if len(date) >= 4 && isDigits(date[:4]) {
		return date[:4] + "-**-**"
	}
	return strings.Repeat("*", len(date))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
