package planner

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hgye/litescan/internal/page"
	"github.com/hgye/litescan/internal/pager"
	"github.com/hgye/litescan/internal/schema"
	"github.com/hgye/litescan/internal/testutil"
)

func schemaRow(typ, name, tblName, sql string, rootPage int64) []byte {
	return testutil.EncodeRecord(
		testutil.Text(typ), testutil.Text(name), testutil.Text(tblName),
		testutil.Int(rootPage), testutil.Text(sql),
	)
}

func buildSchema(t *testing.T) *schema.Schema {
	t.Helper()
	cells := [][]byte{
		testutil.EncodeTableLeafCell(1, schemaRow("table", "apples", "apples", "CREATE TABLE apples(id INTEGER, name TEXT, color TEXT)", 2)),
		testutil.EncodeTableLeafCell(2, schemaRow("table", "companies", "companies", "CREATE TABLE companies(id INTEGER, name TEXT, country TEXT)", 3)),
		testutil.EncodeTableLeafCell(3, schemaRow("index", "idx_companies_country", "companies", "CREATE INDEX idx_companies_country ON companies(country)", 4)),
	}
	p1 := testutil.BuildPage(512, testutil.Page{Kind: byte(page.KindTableLeaf), HeaderOffset: 100, Cells: cells})
	db := testutil.BuildDatabase(512, 0, map[uint32][]byte{1: p1})
	pg, err := pager.Open(bytes.NewReader(db), nil)
	assert.NoError(t, err)
	sch, err := schema.Load(pg)
	assert.NoError(t, err)
	return sch
}

func TestPlanSelectStarExpandsColumns(t *testing.T) {
	sch := buildSchema(t)
	p, err := Plan("SELECT * FROM apples", sch)
	assert.NoError(t, err)
	assert.False(t, p.IsCount)
	assert.Equal(t, "apples", p.Select.Table)
	assert.Equal(t, []string{"id", "name", "color"}, p.Select.Projection)
	assert.Nil(t, p.Select.Filter)
	assert.Nil(t, p.Select.UseIndex)
}

func TestPlanSelectColumnList(t *testing.T) {
	sch := buildSchema(t)
	p, err := Plan("SELECT name, color FROM apples", sch)
	assert.NoError(t, err)
	assert.Equal(t, []string{"name", "color"}, p.Select.Projection)
}

func TestPlanCountStar(t *testing.T) {
	sch := buildSchema(t)
	p, err := Plan("SELECT COUNT(*) FROM apples", sch)
	assert.NoError(t, err)
	assert.True(t, p.IsCount)
	assert.Equal(t, "apples", p.Table)
}

func TestPlanWhereEqualityFilter(t *testing.T) {
	sch := buildSchema(t)
	p, err := Plan(`SELECT name FROM apples WHERE color = 'Red'`, sch)
	assert.NoError(t, err)
	assert.NotNil(t, p.Select.Filter)
	assert.Equal(t, "color", p.Select.Filter.Column)
	assert.Equal(t, "Red", p.Select.Filter.Value)
	assert.Nil(t, p.Select.UseIndex)
}

func TestPlanChoosesIndexWhenFilterColumnMatchesFirstIndexedColumn(t *testing.T) {
	sch := buildSchema(t)
	p, err := Plan(`SELECT name FROM companies WHERE country = 'chile'`, sch)
	assert.NoError(t, err)
	assert.NotNil(t, p.Select.UseIndex)
	assert.Equal(t, "idx_companies_country", *p.Select.UseIndex)
}

func TestPlanRejectsUnsupportedWhere(t *testing.T) {
	sch := buildSchema(t)
	_, err := Plan(`SELECT name FROM apples WHERE color = 'Red' AND id = 1`, sch)
	assert.Error(t, err)
}

func TestPlanRejectsNonSelect(t *testing.T) {
	sch := buildSchema(t)
	_, err := Plan(`UPDATE apples SET color = 'Red'`, sch)
	assert.Error(t, err)
}
