package query

import (
	"context"
	"path/filepath"
	"testing"

	"promosms/internal/database"
	"promosms/internal/errors"
	"promosms/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupExecutor(t *testing.T, limitCeiling int) *Executor {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "query-test.db")
	db, err := database.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})

	_, err = db.SQL().Exec(`
		INSERT INTO cust_info (cust_id, cust_name, gender, mobile_number, address, age, birthday, refuse)
		VALUES
			(1, '王小明', 'M', '0912345678', '台北市信義區松智路1號', 34, '1992-04-17', 0),
			(2, '陳美麗', 'F', '0987654321', '高雄市前鎮區中山二路5號', 28, '1998-11-02', 1),
			(3, '林大壯', 'M', '0911222333', '台中市西屯區台灣大道99號', 45, '1981-06-30', 0)`)
	require.NoError(t, err)

	_, err = db.SQL().Exec(`
		INSERT INTO order_master (order_no, order_date, cust_id, amount, pay_method, receiver, receiver_phone, order_type)
		VALUES
			(100, '2026-08-01 10:00:00', 1, 1500, 2, '王小明', '0912345678', 1),
			(101, '2026-08-02 11:30:00', 2, 820, 1, '陳美麗', '0987654321', 1),
			(102, '2026-08-03 09:15:00', 3, 2300, 2, '林大壯', '0911222333', 1)`)
	require.NoError(t, err)

	return NewExecutor(db.SQL(), schema.Default(), limitCeiling, nil)
}

func TestExecuteRedactsPhoneNumbers(t *testing.T) {
	exec := setupExecutor(t, 200)

	result, err := exec.Execute(context.Background(),
		"SELECT cust_id, mobile_number FROM cust_info WHERE cust_id = 1")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "0912***678", result.Rows[0]["mobile_number"])
}

func TestExecuteRedactsNamesAddressesAndDates(t *testing.T) {
	exec := setupExecutor(t, 200)

	result, err := exec.Execute(context.Background(),
		"SELECT cust_name, address, birthday FROM cust_info WHERE cust_id = 1")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.Equal(t, "王*明", row["cust_name"])
	assert.Equal(t, "1992-**-**", row["birthday"])

	address, ok := row["address"].(string)
	require.True(t, ok)
	assert.NotEqual(t, "台北市信義區松智路1號", address)
	assert.Contains(t, address, "****")
}

func TestExecuteLeavesNonPIIColumnsUntouched(t *testing.T) {
	exec := setupExecutor(t, 200)

	result, err := exec.Execute(context.Background(),
		"SELECT cust_id, age, gender FROM cust_info ORDER BY cust_id")
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)
	assert.Equal(t, int64(1), result.Rows[0]["cust_id"])
	assert.Equal(t, int64(34), result.Rows[0]["age"])
	assert.Equal(t, "M", result.Rows[0]["gender"])
}

func TestExecuteMasksAliasedPIIColumn(t *testing.T) {
	exec := setupExecutor(t, 200)

	// receiver_phone projected through a join stays masked by column name.
	result, err := exec.Execute(context.Background(),
		"SELECT o.order_no, o.receiver_phone FROM order_master o WHERE o.order_no = 100")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "0912***678", result.Rows[0]["receiver_phone"])
}

func TestExecuteAppendsLimit(t *testing.T) {
	exec := setupExecutor(t, 2)

	result, err := exec.Execute(context.Background(),
		"SELECT cust_id FROM cust_info ORDER BY cust_id")
	require.NoError(t, err)
	assert.True(t, result.Limited)
	assert.Equal(t, 2, result.Count)
}

func TestExecuteClampsOversizedLimit(t *testing.T) {
	exec := setupExecutor(t, 2)

	result, err := exec.Execute(context.Background(),
		"SELECT cust_id FROM cust_info ORDER BY cust_id LIMIT 500")
	require.NoError(t, err)
	assert.True(t, result.Limited)
	assert.Equal(t, 2, result.Count)
}

func TestExecuteKeepsSmallExplicitLimit(t *testing.T) {
	exec := setupExecutor(t, 200)

	result, err := exec.Execute(context.Background(),
		"SELECT cust_id FROM cust_info ORDER BY cust_id LIMIT 1")
	require.NoError(t, err)
	assert.False(t, result.Limited)
	assert.Equal(t, 1, result.Count)
}

func TestExecuteBoundsSubqueryLimit(t *testing.T) {
	exec := setupExecutor(t, 2)

	// A LIMIT inside the subquery does not bound the outer result set;
	// the ceiling still has to.
	result, err := exec.Execute(context.Background(),
		"SELECT order_no FROM order_master WHERE cust_id IN (SELECT cust_id FROM cust_info LIMIT 5)")
	require.NoError(t, err)
	assert.True(t, result.Limited)
	assert.Equal(t, 2, result.Count)
}

func TestExecuteBoundsStatementWithTrailingSemicolon(t *testing.T) {
	exec := setupExecutor(t, 2)

	result, err := exec.Execute(context.Background(),
		"SELECT cust_id FROM cust_info ORDER BY cust_id;")
	require.NoError(t, err)
	assert.True(t, result.Limited)
	assert.Equal(t, 2, result.Count)
}

func TestExecuteBoundsLimitInsideLiteral(t *testing.T) {
	exec := setupExecutor(t, 2)

	result, err := exec.Execute(context.Background(),
		"SELECT cust_id FROM cust_info WHERE address != 'LIMIT 99'")
	require.NoError(t, err)
	assert.True(t, result.Limited)
	assert.Equal(t, 2, result.Count)
}

func TestTopLevelLimit(t *testing.T) {
	tests := []struct {
		stmt  string
		value int
		found bool
	}{
		{"SELECT cust_id FROM cust_info LIMIT 10", 10, true},
		{"SELECT cust_id FROM cust_info LIMIT 10 OFFSET 5", 10, true},
		{"SELECT cust_id FROM cust_info", 0, false},
		{"SELECT order_no FROM order_master WHERE cust_id IN (SELECT cust_id FROM cust_info LIMIT 5)", 0, false},
		{"SELECT cust_id FROM cust_info WHERE address = 'limit 3'", 0, false},
		{"SELECT cust_id FROM cust_info LIMIT 5, 10", 0, false},
		{"SELECT cust_id, limit_flag FROM cust_info", 0, false},
	}

	for _, tt := range tests {
		value, found := topLevelLimit(tt.stmt)
		assert.Equal(t, tt.found, found, tt.stmt)
		assert.Equal(t, tt.value, value, tt.stmt)
	}
}

func TestExecuteRejectsTableOutsideCatalog(t *testing.T) {
	exec := setupExecutor(t, 200)

	_, err := exec.Execute(context.Background(), "SELECT * FROM sms_messages")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTranslationRejected, errors.GetCode(err))
}

func TestExecuteRejectsMutation(t *testing.T) {
	exec := setupExecutor(t, 200)

	_, err := exec.Execute(context.Background(), "DELETE FROM cust_info")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTranslationRejected, errors.GetCode(err))
}

func TestExecuteFailureIsGeneric(t *testing.T) {
	exec := setupExecutor(t, 200)

	// Valid per the allow-list but broken SQL; the failure must not echo
	// driver detail to the caller.
	_, err := exec.Execute(context.Background(), "SELECT cust_id FROM cust_info WHERE")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueryExecutionFailed, errors.GetCode(err))
	assert.Equal(t, "query execution failed", err.(*errors.AppError).Message)
}

func TestExecuteEmptyResult(t *testing.T) {
	exec := setupExecutor(t, 200)

	result, err := exec.Execute(context.Background(),
		"SELECT cust_id FROM cust_info WHERE age > 100")
	require.NoError(t, err)
	assert.Zero(t, result.Count)
	assert.NotNil(t, result.Rows)
}
