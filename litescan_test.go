package litescan

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hgye/litescan/internal/page"
	"github.com/hgye/litescan/internal/testutil"
)

func schemaRow(typ, name, tblName, sql string, rootPage int64) []byte {
	return testutil.EncodeRecord(
		testutil.Text(typ), testutil.Text(name), testutil.Text(tblName),
		testutil.Int(rootPage), testutil.Text(sql),
	)
}

// writeFixtureDB builds a small two-table database (apples, sqlite_sequence)
// and writes it to a temp file, returning its path.
func writeFixtureDB(t *testing.T) string {
	t.Helper()
	schemaCells := [][]byte{
		testutil.EncodeTableLeafCell(1, schemaRow("table", "apples", "apples", "CREATE TABLE apples(id INTEGER, name TEXT, color TEXT)", 2)),
		testutil.EncodeTableLeafCell(2, schemaRow("table", "sqlite_sequence", "sqlite_sequence", "CREATE TABLE sqlite_sequence(name,seq)", 3)),
	}
	p1 := testutil.BuildPage(512, testutil.Page{Kind: byte(page.KindTableLeaf), HeaderOffset: 100, Cells: schemaCells})

	appleRow := func(name, color string) []byte {
		return testutil.EncodeRecord(testutil.Null(), testutil.Text(name), testutil.Text(color))
	}
	dataCells := [][]byte{
		testutil.EncodeTableLeafCell(1, appleRow("Granny Smith", "Green")),
		testutil.EncodeTableLeafCell(2, appleRow("Fuji", "Red")),
	}
	p2 := testutil.BuildPage(512, testutil.Page{Kind: byte(page.KindTableLeaf), Cells: dataCells})
	p3 := testutil.BuildPage(512, testutil.Page{Kind: byte(page.KindTableLeaf), Cells: nil})

	db := testutil.BuildDatabase(512, 0, map[uint32][]byte{1: p1, 2: p2, 3: p3})

	f, err := os.CreateTemp(t.TempDir(), "fixture-*.db")
	assert.NoError(t, err)
	_, err = f.Write(db)
	assert.NoError(t, err)
	assert.NoError(t, f.Close())
	return f.Name()
}

func TestOpenAndDBInfo(t *testing.T) {
	path := writeFixtureDB(t)
	db, err := Open(path)
	assert.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 512, db.PageSize())
	assert.Equal(t, 2, db.TableCount())
}

func TestTablesListsAllUserTables(t *testing.T) {
	path := writeFixtureDB(t)
	db, err := Open(path)
	assert.NoError(t, err)
	defer db.Close()

	assert.Equal(t, []string{"apples", "sqlite_sequence"}, db.Tables())
}

func TestExecuteSQLCount(t *testing.T) {
	path := writeFixtureDB(t)
	db, err := Open(path)
	assert.NoError(t, err)
	defer db.Close()

	res, err := db.ExecuteSQL("SELECT COUNT(*) FROM apples")
	assert.NoError(t, err)
	assert.NotNil(t, res.Count)
	assert.Equal(t, 2, *res.Count)
}

func TestExecuteSQLSelect(t *testing.T) {
	path := writeFixtureDB(t)
	db, err := Open(path)
	assert.NoError(t, err)
	defer db.Close()

	res, err := db.ExecuteSQL("SELECT name, color FROM apples WHERE color = 'Red'")
	assert.NoError(t, err)
	assert.Equal(t, [][]string{{"Fuji", "Red"}}, res.Rows)
	assert.Equal(t, "Fuji|Red\n", FormatRows(res.Rows))
}

func TestOpenRejectsMissingFile(t *testing.T) {
	_, err := Open("/nonexistent/path/does-not-exist.db")
	assert.Error(t, err)
}
