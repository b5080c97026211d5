package table_test

import (
	"bytes"
	"testing"
	"time"

	// Packages
	table "github.com/mutablelogic/go-aitemplate/pkg/ui/table"
	assert "github.com/stretchr/testify/assert"
)

type rows [][]any

func (r rows) Header() []string { return []string{"name", "count"} }
func (r rows) Len() int         { return len(r) }
func (r rows) Row(i int) []any  { return r[i] }

func Test_table_001(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("-", table.FormatCell(nil))
	assert.Equal("-", table.FormatCell(""))
	assert.Equal("-", table.FormatCell(0))
	assert.Equal("-", table.FormatCell(int64(0)))
	assert.Equal("42", table.FormatCell(uint64(42)))
	assert.Equal("1.5s", table.FormatCell(1500*time.Millisecond))
	assert.Equal("2025-01-02 03:04", table.FormatCell(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Equal("true", table.FormatCell(true))
}

func Test_table_002(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("hello", table.Truncate("hello", 10))
	assert.Equal("hel…", table.Truncate("hello world", 4))
	assert.Equal("a b", table.Truncate("a\nb", 10))
}

func Test_table_003(t *testing.T) {
	assert := assert.New(t)
	data := rows{
		{table.Bold{Value: "alpha"}, 1},
		nil,
		{"be|ta"},
	}
	assert.Equal("| name | count |\n|---|---|\n| **alpha** | 1 |\n| be\\|ta | - |", table.RenderMarkdown(data))

	// A buffer is not a terminal
	var buf bytes.Buffer
	assert.NoError(table.Write(&buf, data))
	assert.Equal(table.RenderMarkdown(data)+"\n", buf.String())
}
