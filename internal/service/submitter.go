package service

import (
	"context"
	"time"

	"promosms/internal/constants"
	"promosms/internal/errors"
	"promosms/internal/metrics"
	"promosms/internal/models"
	"promosms/internal/validation"

	"github.com/sirupsen/logrus"
)

// SubmissionStore is the submitter's view of persistence: message
// creation plus customer-to-phone resolution from the reference tables.
type SubmissionStore interface {
	CreateMessage(ctx context.Context, msg *models.Message, maxBodyLen int) (int64, error)
	PhoneNumbersByCustomerIDs(ctx context.Context, ids []int64) ([]string, error)
}

// SubmitRequest is one campaign submission: a body plus recipients named
// directly, as a free-form comma/semicolon list, or by customer id. A nil
// ScheduledAt means send now.
type SubmitRequest struct {
	Body          string     `json:"body"`
	Recipients    []string   `json:"recipients,omitempty"`
	RecipientList string     `json:"recipient_list,omitempty"`
	CustomerIDs   []int64    `json:"customer_ids,omitempty"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
}

// SubmitResult reports per-recipient acceptance. Rejected recipients do
// not block the rest of the batch.
type SubmitResult struct {
	Created  []CreatedMessage  `json:"created"`
	Rejected []RejectedAddress `json:"rejected,omitempty"`
}

type CreatedMessage struct {
	Key       int64  `json:"key"`
	Recipient string `json:"recipient"`
}

type RejectedAddress struct {
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
}

// Submitter expands a submission into one stored message per recipient.
type Submitter struct {
	store      SubmissionStore
	maxBodyLen int
	logger     *logrus.Logger
}

func NewSubmitter(store SubmissionStore, maxBodyLen int, logger *logrus.Logger) *Submitter {
	if maxBodyLen <= 0 {
		maxBodyLen = constants.DefaultSMSMaxLength
	}
	return &Submitter{
		store:      store,
		maxBodyLen: maxBodyLen,
		logger:     logger,
	}
}

// Submit validates the body once, resolves customer ids to phone numbers,
// deduplicates the combined recipient list and creates one message per
// surviving recipient. Customers who refused contact are dropped during
// resolution and never appear in the result.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := validation.ValidateMessageBody(req.Body, s.maxBodyLen); err != nil {
		return nil, err
	}

	recipients := append([]string(nil), req.Recipients...)
	recipients = append(recipients, validation.ParsePhoneList(req.RecipientList)...)

	if len(recipients) == 0 && len(req.CustomerIDs) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "at least one recipient or customer id is required")
	}
	if req.ScheduledAt != nil && req.ScheduledAt.Before(time.Now().Add(-time.Minute)) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "scheduled time is in the past")
	}

	if len(req.CustomerIDs) > 0 {
		resolved, err := s.store.PhoneNumbersByCustomerIDs(ctx, req.CustomerIDs)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, resolved...)
	}

	recipients = dedupe(recipients)

	result := &SubmitResult{}
	for _, recipient := range recipients {
		if err := validation.ValidateRecipientNumber(recipient); err != nil {
			result.Rejected = append(result.Rejected, RejectedAddress{
				Recipient: recipient,
				Reason:    err.Error(),
			})
			continue
		}

		key, err := s.store.CreateMessage(ctx, &models.Message{
			Body:        req.Body,
			Recipient:   recipient,
			ScheduledAt: req.ScheduledAt,
		}, s.maxBodyLen)
		if err != nil {
			return nil, err
		}
		result.Created = append(result.Created, CreatedMessage{Key: key, Recipient: recipient})
	}

	s.logger.WithFields(logrus.Fields{
		"created":  len(result.Created),
		"rejected": len(result.Rejected),
	}).Info("Submission processed")
	metrics.AddToCounter("messages_submitted", float64(len(result.Created)), nil)

	return result, nil
}

func dedupe(recipients []string) []string {
	seen := make(map[string]bool, len(recipients))
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
