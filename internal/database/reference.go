package database

import (
	"context"
	"strings"

	"promosms/internal/errors"
)

// PhoneNumbersByCustomerIDs resolves selected customers to their mobile
// numbers, skipping customers who refused contact and rows without a
// usable number. Reference tables are never written.
func (d *Database) PhoneNumbersByCustomerIDs(ctx context.Context, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	query := `
		SELECT mobile_number
		FROM cust_info
		WHERE cust_id IN (` + placeholders + `)
		  AND mobile_number IS NOT NULL
		  AND mobile_number != ''
		  AND refuse = 0
	`

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to resolve customer phone numbers")
	}
	defer rows.Close()

	var phones []string
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to scan phone number")
		}
		phones = append(phones, phone)
	}
	return phones, rows.Err()
}
