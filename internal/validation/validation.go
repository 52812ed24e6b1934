package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"promosms/internal/constants"
	"promosms/internal/errors"
)

// ValidateRecipientNumber validates a recipient mobile number in the
// gateway's national format: leading "09", exactly 10 digits.
func ValidateRecipientNumber(phone string) error {
	if phone == "" {
		return errors.New(errors.ErrCodeInvalidMessage, "recipient number cannot be empty")
	}

	if len(phone) != constants.MinRecipientDigits {
		return errors.New(errors.ErrCodeInvalidMessage,
			fmt.Sprintf("recipient number must be exactly %d digits", constants.MinRecipientDigits))
	}

	if !strings.HasPrefix(phone, "09") {
		return errors.New(errors.ErrCodeInvalidMessage, "recipient number must start with 09")
	}

	for _, char := range phone {
		if !unicode.IsDigit(char) {
			return errors.New(errors.ErrCodeInvalidMessage, "recipient number must contain only digits")
		}
	}

	return nil
}

// ValidateMessageBody validates the body against the configured maximum.
// Length is counted in runes so CJK text is billed one character each,
// matching the gateway's accounting.
func ValidateMessageBody(body string, maxLength int) error {
	if strings.TrimSpace(body) == "" {
		return errors.New(errors.ErrCodeInvalidMessage, "message body cannot be empty")
	}

	if count := utf8.RuneCountInString(body); count > maxLength {
		return errors.New(errors.ErrCodeInvalidMessage,
			fmt.Sprintf("message body too long: %d characters (max %d)", count, maxLength))
	}

	return nil
}

// BodyCharCount reports the rune count and remaining capacity for a body.
func BodyCharCount(body string, maxLength int) (count, remaining int) {
	count = utf8.RuneCountInString(body)
	remaining = maxLength - count
	if remaining < 0 {
		remaining = 0
	}
	return count, remaining
}

// ParsePhoneList splits a free-form recipient string on commas and
// semicolons, trimming blanks.
func ParsePhoneList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ValidateQueryRequest bounds the free-text input to the translator.
func ValidateQueryRequest(text string, maxLength int) error {
	if strings.TrimSpace(text) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "query text cannot be empty")
	}

	if utf8.RuneCountInString(text) > maxLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("query text too long (max %d characters)", maxLength))
	}

	return nil
}
