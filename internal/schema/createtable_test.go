package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCreateTableColumns(t *testing.T) {
	cols, err := ParseCreateTableColumns(`CREATE TABLE apples(id INTEGER, name TEXT, weight REAL, data BLOB)`)
	assert.NoError(t, err)
	assert.Equal(t, []ColumnDef{
		{Name: "id", StorageClass: Integer},
		{Name: "name", StorageClass: Text},
		{Name: "weight", StorageClass: Real},
		{Name: "data", StorageClass: Blob},
	}, cols)
}

func TestParseCreateTableColumnsEmptySQL(t *testing.T) {
	cols, err := ParseCreateTableColumns("")
	assert.NoError(t, err)
	assert.Nil(t, cols)
}

func TestParseCreateIndexColumns(t *testing.T) {
	cols, err := ParseCreateIndexColumns(`CREATE INDEX idx_apples_color ON apples(color)`)
	assert.NoError(t, err)
	assert.Equal(t, []ColumnDef{{Name: "color", StorageClass: Text}}, cols)
}

func TestIndexTableName(t *testing.T) {
	assert.Equal(t, "apples", IndexTableName(`CREATE INDEX idx_apples_color ON apples (color)`))
	assert.Equal(t, "", IndexTableName(`not a create index statement`))
}
