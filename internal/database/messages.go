package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"promosms/internal/errors"
	"promosms/internal/models"
	"promosms/internal/validation"
)

const messageColumns = `key, created_at, message_class, body, recipient, scheduled_at,
	sent_at, status, gateway_code, gateway_message, gateway_msg_id`

// CreateMessage validates and persists a new message. On a validation
// failure nothing is written. A nil schedule means "send now": the
// message is created claim-eligible in pending state.
func (d *Database) CreateMessage(ctx context.Context, msg *models.Message, maxBodyLen int) (int64, error) {
	if err := validation.ValidateMessageBody(msg.Body, maxBodyLen); err != nil {
		return 0, err
	}
	if err := validation.ValidateRecipientNumber(msg.Recipient); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	class := models.MessageClassImmediate
	status := models.MessageStatusPending
	var scheduledAt interface{}
	if msg.ScheduledAt != nil {
		class = models.MessageClassScheduled
		status = models.MessageStatusScheduled
		scheduledAt = msg.ScheduledAt.UTC()
	}

	encryptedRecipient, err := d.encryptor.Encrypt(msg.Recipient)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to encrypt recipient")
	}

	query := `
		INSERT INTO sms_messages (created_at, message_class, body, recipient, scheduled_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := d.db.ExecContext(ctx, query,
		createdAt, class, msg.Body, encryptedRecipient, scheduledAt, status)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to create message")
	}

	key, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to read message key")
	}
	return key, nil
}

// ClaimDue atomically transitions every due message to sending and
// returns the claimed batch in ascending intended-send order. The single
// conditional UPDATE is the claim's exclusivity guarantee: a row already
// moved to sending cannot match a second claimant's predicate.
func (d *Database) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "claim limit must be positive")
	}

	query := fmt.Sprintf(`
		UPDATE sms_messages SET status = ?
		WHERE key IN (
			SELECT key FROM sms_messages
			WHERE status IN (?, ?)
			  AND (scheduled_at IS NULL OR scheduled_at <= ?)
			ORDER BY COALESCE(scheduled_at, created_at) ASC
			LIMIT ?
		)
		AND status IN (?, ?)
		RETURNING %s`, messageColumns)

	rows, err := d.db.QueryContext(ctx, query,
		models.MessageStatusSending,
		models.MessageStatusPending, models.MessageStatusScheduled,
		now.UTC(), limit,
		models.MessageStatusPending, models.MessageStatusScheduled)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to claim due messages")
	}
	defer rows.Close()

	var claimed []models.Message
	for rows.Next() {
		msg, err := d.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to read claimed messages")
	}

	// RETURNING order is unspecified; restore the fairness ordering.
	sort.SliceStable(claimed, func(i, j int) bool {
		return intendedSendTime(claimed[i]).Before(intendedSendTime(claimed[j]))
	})

	return claimed, nil
}

func intendedSendTime(msg models.Message) time.Time {
	if msg.ScheduledAt != nil {
		return *msg.ScheduledAt
	}
	return msg.CreatedAt
}

// RecordOutcome moves a sending message to its terminal state. Recording
// an outcome for a message not currently sending is an error and leaves
// the row untouched; terminal states are never overwritten.
func (d *Database) RecordOutcome(ctx context.Context, key int64, outcome models.SendOutcome) error {
	completedAt := outcome.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	var gatewayMsgID sql.NullString
	if outcome.GatewayMsgID != "" {
		gatewayMsgID = sql.NullString{String: outcome.GatewayMsgID, Valid: true}
	}

	query := `
		UPDATE sms_messages
		SET status = ?, sent_at = ?, gateway_code = ?, gateway_message = ?, gateway_msg_id = ?
		WHERE key = ? AND status = ?
	`

	result, err := d.db.ExecContext(ctx, query,
		outcome.TerminalStatus(), completedAt.UTC(),
		outcome.Code, outcome.Message, gatewayMsgID,
		key, models.MessageStatusSending)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to record outcome")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to get affected rows")
	}
	if affected == 0 {
		return errors.New(errors.ErrCodeInvalidState,
			fmt.Sprintf("message %d is not in sending state", key))
	}

	return nil
}

// GetMessage returns a message by key, or nil when it does not exist.
func (d *Database) GetMessage(ctx context.Context, key int64) (*models.Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM sms_messages WHERE key = ?`, messageColumns)

	row := d.db.QueryRowContext(ctx, query, key)
	msg, err := d.scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Stats summarizes stored messages by status.
func (d *Database) Stats(ctx context.Context) (*models.MessageStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status IN (?, ?) THEN 1 END),
			COUNT(CASE WHEN status = ? THEN 1 END),
			COUNT(CASE WHEN status = ? THEN 1 END),
			COUNT(CASE WHEN status = ? THEN 1 END)
		FROM sms_messages
	`

	stats := &models.MessageStats{}
	err := d.db.QueryRowContext(ctx, query,
		models.MessageStatusPending, models.MessageStatusScheduled,
		models.MessageStatusSending,
		models.MessageStatusSent,
		models.MessageStatusFailed,
	).Scan(&stats.Total, &stats.Pending, &stats.Sending, &stats.Sent, &stats.Failed)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to read stats")
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (d *Database) scanMessage(row rowScanner) (*models.Message, error) {
	msg := &models.Message{}
	var scheduledAt, sentAt sql.NullTime
	var gatewayCode, gatewayMessage, gatewayMsgID sql.NullString
	var encryptedRecipient string

	err := row.Scan(
		&msg.Key,
		&msg.CreatedAt,
		&msg.Class,
		&msg.Body,
		&encryptedRecipient,
		&scheduledAt,
		&sentAt,
		&msg.Status,
		&gatewayCode,
		&gatewayMessage,
		&gatewayMsgID,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to scan message")
	}

	msg.Recipient, err = d.encryptor.Decrypt(encryptedRecipient)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to decrypt recipient")
	}

	if scheduledAt.Valid {
		t := scheduledAt.Time
		msg.ScheduledAt = &t
	}
	if sentAt.Valid {
		t := sentAt.Time
		msg.SentAt = &t
	}
	if gatewayCode.Valid {
		msg.GatewayCode = &gatewayCode.String
	}
	if gatewayMessage.Valid {
		msg.GatewayMessage = &gatewayMessage.String
	}
	if gatewayMsgID.Valid {
		msg.GatewayMsgID = &gatewayMsgID.String
	}

	return msg, nil
}
