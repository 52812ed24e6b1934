package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"promosms/internal/constants"
	"promosms/internal/errors"
	"promosms/pkg/textgen"

	"github.com/sirupsen/logrus"
)

const draftSystemTemplate = `You write promotional SMS copy for the brand "%s".
Write exactly one message in the language of the user's request.
Hard limit: %d characters including spaces and punctuation.
Output only the message text, nothing else.`

// Drafter produces campaign copy suggestions from a short description.
// Drafts are suggestions only; nothing is stored or sent from here.
type Drafter struct {
	generator textgen.Client
	brand     string
	maxLength int
	logger    *logrus.Logger
}

func NewDrafter(generator textgen.Client, brand string, maxLength int, logger *logrus.Logger) *Drafter {
	if maxLength <= 0 {
		maxLength = constants.DefaultSMSMaxLength
	}
	return &Drafter{
		generator: generator,
		brand:     brand,
		maxLength: maxLength,
		logger:    logger,
	}
}

// Draft generates one candidate message body. Output over the length
// limit is truncated rather than rejected; the model treats the limit as
// advisory and the caller still edits before submitting.
func (d *Drafter) Draft(ctx context.Context, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "draft description cannot be empty")
	}

	systemPrompt := fmt.Sprintf(draftSystemTemplate, d.brand, d.maxLength)

	draft, err := d.generator.Complete(ctx, systemPrompt, description)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeTranslationUnavailable, "draft generation failed")
	}

	draft = strings.TrimSpace(strings.Trim(draft, `"`))
	if draft == "" {
		return "", errors.New(errors.ErrCodeTranslationUnavailable, "draft generation returned empty text")
	}

	if utf8.RuneCountInString(draft) > d.maxLength {
		runes := []rune(draft)
		draft = string(runes[:d.maxLength])
		d.logger.WithField("max_length", d.maxLength).Debug("Draft truncated to length limit")
	}

	return draft, nil
}
