package schema

import (
	"strings"
	"testing"

	"promosms/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogTables(t *testing.T) {
	c := Default()

	assert.ElementsMatch(t, []string{"cust_info", "order_master", "order_detail"}, c.Tables())
	assert.True(t, c.HasTable("cust_info"))
	assert.True(t, c.HasTable("CUST_INFO"))
	assert.False(t, c.HasTable("sms_messages"))
	assert.False(t, c.HasTable("sqlite_master"))
}

func TestPIIMask(t *testing.T) {
	c := Default()

	kind, ok := c.PIIMask("mobile_number")
	require.True(t, ok)
	assert.Equal(t, MaskPhone, kind)

	kind, ok = c.PIIMask("cust_name")
	require.True(t, ok)
	assert.Equal(t, MaskName, kind)

	kind, ok = c.PIIMask("birthday")
	require.True(t, ok)
	assert.Equal(t, MaskDate, kind)

	_, ok = c.PIIMask("amount")
	assert.False(t, ok)
}

func TestPIIColumns(t *testing.T) {
	cols := Default().PIIColumns()

	assert.Equal(t, MaskPhone, cols["mobile_number"])
	assert.Equal(t, MaskPhone, cols["home_number"])
	assert.Equal(t, MaskPhone, cols["receiver_phone"])
	assert.Equal(t, MaskName, cols["cust_name"])
	assert.Equal(t, MaskName, cols["receiver"])
	assert.Equal(t, MaskAddress, cols["address"])
	assert.Equal(t, MaskAddress, cols["delivery_address"])
	assert.Equal(t, MaskDate, cols["birthday"])
	assert.NotContains(t, cols, "amount")
}

func TestPromptVocabulary(t *testing.T) {
	vocab := Default().PromptVocabulary()

	assert.Contains(t, vocab, "cust_info")
	assert.Contains(t, vocab, "order_master")
	assert.Contains(t, vocab, "order_detail")
	assert.Contains(t, vocab, "mobile_number")
	assert.NotContains(t, vocab, "sms_messages")
}

func TestValidateStatementAccepts(t *testing.T) {
	c := Default()

	statements := []string{
		"SELECT cust_id, cust_name, mobile_number FROM cust_info",
		"SELECT cust_id, cust_name, mobile_number FROM cust_info;",
		"select c.cust_name, c.mobile_number from cust_info c where c.refuse = false",
		"SELECT c.cust_name, c.mobile_number FROM cust_info c JOIN order_master o ON c.cust_id = o.cust_id WHERE o.order_date >= date('now', '-30 day')",
		"SELECT cust_name, mobile_number FROM public.cust_info WHERE age > 30",
		"SELECT COUNT(*) FROM order_master GROUP BY cust_id HAVING COUNT(*) > 2",
		"SELECT c.mobile_number FROM cust_info c, order_master o WHERE c.cust_id = o.cust_id ORDER BY o.amount DESC LIMIT 50",
	}

	for _, stmt := range statements {
		assert.NoError(t, c.ValidateStatement(stmt), stmt)
	}
}

func TestValidateStatementRejects(t *testing.T) {
	c := Default()

	tests := []struct {
		name string
		stmt string
	}{
		{"empty", "   "},
		{"not select", "UPDATE cust_info SET refuse = true"},
		{"delete", "DELETE FROM cust_info"},
		{"multiple statements", "SELECT cust_id FROM cust_info; DROP TABLE cust_info"},
		{"embedded drop", "SELECT cust_id FROM cust_info WHERE cust_id IN (SELECT 1) OR (1=1); DROP TABLE order_master"},
		{"mutation keyword", "SELECT cust_id FROM cust_info WHERE 1=1 UNION SELECT 1 FROM cust_info; INSERT INTO cust_info VALUES (1)"},
		{"table outside allow-list", "SELECT * FROM sms_messages"},
		{"sqlite internals", "SELECT name FROM sqlite_master"},
		{"unknown column", "SELECT password FROM cust_info"},
		{"unknown alias", "SELECT x.mobile_number FROM cust_info c"},
		{"pragma", "SELECT cust_id FROM cust_info WHERE pragma = 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.ValidateStatement(tt.stmt)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeTranslationRejected, errors.GetCode(err))
		})
	}
}

func TestValidateStatementIgnoresLiteralContents(t *testing.T) {
	c := Default()

	// Table-looking words inside string literals must not trip the
	// identifier check, and quoting must not hide a second statement.
	assert.NoError(t, c.ValidateStatement(
		"SELECT cust_name, mobile_number FROM cust_info WHERE address LIKE '%drop table%'"))

	err := c.ValidateStatement("SELECT cust_id FROM cust_info WHERE cust_name = 'x'; DELETE FROM cust_info")
	require.Error(t, err)
}

func TestValidateStatementKeywordBoundaries(t *testing.T) {
	c := Default()

	// create_date contains "create" as a prefix but is a legal column.
	assert.NoError(t, c.ValidateStatement(
		"SELECT cust_id, mobile_number FROM cust_info WHERE create_date > '2024-01-01'"))

	long := "SELECT " + strings.Repeat("cust_id, ", 50) + "mobile_number FROM cust_info"
	assert.NoError(t, c.ValidateStatement(long))
}
