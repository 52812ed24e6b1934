// Package query executes validated SELECT statements against the
// reference schema and redacts PII columns in the results. Redaction is
// unconditional: there is no code path from raw rows to a caller.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"promosms/internal/constants"
	"promosms/internal/errors"
	"promosms/internal/privacy"
	"promosms/internal/schema"

	"github.com/sirupsen/logrus"
)

// Result carries redacted rows plus the column order of the statement's
// projection, which map-typed rows would otherwise lose.
type Result struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Count   int              `json:"count"`
	Limited bool             `json:"limited"`
}

type Executor struct {
	db           *sql.DB
	catalog      *schema.Catalog
	logger       *logrus.Logger
	limitCeiling int
}

func NewExecutor(db *sql.DB, catalog *schema.Catalog, limitCeiling int, logger *logrus.Logger) *Executor {
	if limitCeiling <= 0 {
		limitCeiling = constants.DefaultQueryLimitCeiling
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	return &Executor{
		db:           db,
		catalog:      catalog,
		logger:       logger,
		limitCeiling: limitCeiling,
	}
}


// Execute re-validates the statement, bounds its result size, runs it and
// returns redacted rows. The statement is validated here even when the
// translator already did so; the executor does not assume a trusted caller.
func (e *Executor) Execute(ctx context.Context, statement string) (*Result, error) {
	if err := e.catalog.ValidateStatement(statement); err != nil {
		return nil, err
	}

	statement, limited := e.enforceLimit(statement)

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, statement)
	if err != nil {
		// The raw driver error can echo statement fragments; log it and
		// hand the caller a generic failure.
		e.logger.WithError(err).WithField("statement", statement).Warn("Query execution failed")
		return nil, errors.New(errors.ErrCodeQueryExecutionFailed, "query execution failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.New(errors.ErrCodeQueryExecutionFailed, "query execution failed")
	}

	result := &Result{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
		Limited: limited,
	}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.New(errors.ErrCodeQueryExecutionFailed, "query execution failed")
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = e.redact(col, normalizeValue(values[i]))
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeQueryExecutionFailed, "query execution failed")
	}

	result.Count = len(result.Rows)

	e.logger.WithFields(logrus.Fields{
		"rows":        result.Count,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Query executed")

	return result, nil
}

// enforceLimit bounds the result size. Only a LIMIT in the outermost
// clause counts: one inside a subquery or a string literal does not bound
// the result set. Any statement without a verifiable top-level limit
// within the ceiling is wrapped, which bounds it regardless of what the
// inner SQL does. Reports whether the ceiling was applied.
func (e *Executor) enforceLimit(statement string) (string, bool) {
	// A trailing semicolon is legal standalone but not inside the wrap.
	statement = strings.TrimRight(strings.TrimSpace(statement), ";")

	if requested, ok := topLevelLimit(statement); ok && requested <= e.limitCeiling {
		return statement, false
	}
	return fmt.Sprintf("SELECT * FROM (%s) LIMIT %d", statement, e.limitCeiling), true
}

// topLevelLimit reports the value of a LIMIT clause at paren depth zero
// and outside string literals, in the form "LIMIT n" or "LIMIT n OFFSET
// m". Comma forms and expressions report false so the caller wraps
// conservatively.
func topLevelLimit(statement string) (int, bool) {
	lower := strings.ToLower(statement)
	depth := 0
	inString := false

	for i := 0; i < len(lower); i++ {
		switch ch := lower[i]; {
		case inString:
			if ch == '\'' {
				inString = false
			}
		case ch == '\'':
			inString = true
		case ch == '(':
			depth++
		case ch == ')':
			if depth > 0 {
				depth--
			}
		case ch == 'l' && depth == 0:
			if strings.HasPrefix(lower[i:], "limit") &&
				isWordBoundary(lower, i-1) && isWordBoundary(lower, i+5) {
				return parseLimitValue(lower[i+5:])
			}
		}
	}
	return 0, false
}

func parseLimitValue(rest string) (int, bool) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return 0, false
	}

	switch {
	case len(fields) == 1:
		return n, true
	case len(fields) == 3 && fields[1] == "offset":
		if _, err := strconv.Atoi(fields[2]); err == nil {
			return n, true
		}
	}
	return 0, false
}

func isWordBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	ch := s[i]
	return !(ch >= 'a' && ch <= 'z') && !(ch >= '0' && ch <= '9') && ch != '_'
}

// redact applies the catalog's masking rule for the column, if any.
// Lookup is by output column name so aliased PII stays masked; non-string
// values under a masked column are stringified first.
func (e *Executor) redact(column string, value any) any {
	kind, ok := e.catalog.PIIMask(column)
	if !ok || value == nil {
		return value
	}

	text, isString := value.(string)
	if !isString {
		text = fmt.Sprintf("%v", value)
	}

	switch kind {
	case schema.MaskPhone:
		return privacy.MaskPhoneNumber(text)
	case schema.MaskName:
		return privacy.MaskName(text)
	case schema.MaskAddress:
		return privacy.MaskAddress(text)
	case schema.MaskDate:
		return privacy.MaskDate(text)
	default:
		return text
	}
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	default:
		return v
	}
}
