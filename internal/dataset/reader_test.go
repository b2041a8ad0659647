package dataset

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateFormat(t *testing.T) {
	reader := NewFileReader(testLogger())

	assert.NoError(t, reader.ValidateFormat("data.csv"))
	assert.NoError(t, reader.ValidateFormat("data.JSON"))
	assert.Error(t, reader.ValidateFormat("data.xlsx"))
	assert.Error(t, reader.ValidateFormat("data"))
}

func TestValidateSize(t *testing.T) {
	reader := NewFileReader(testLogger())
	path := writeTestFile(t, "small.csv", "a,b\n1,2\n")

	assert.NoError(t, reader.ValidateSize(path))
	assert.Error(t, reader.ValidateSize(filepath.Join(t.TempDir(), "missing.csv")))
}

func TestHash(t *testing.T) {
	reader := NewFileReader(testLogger())

	path := writeTestFile(t, "a.csv", "a,b\n1,2\n")
	hash, err := reader.Hash(path)
	require.NoError(t, err)
	assert.Len(t, hash, 16)

	// Same content hashes identically, different content differs
	same, err := reader.Hash(writeTestFile(t, "b.csv", "a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, hash, same)

	other, err := reader.Hash(writeTestFile(t, "c.csv", "a,b\n3,4\n"))
	require.NoError(t, err)
	assert.NotEqual(t, hash, other)
}

func TestReadCSVTypeInference(t *testing.T) {
	reader := NewFileReader(testLogger())
	path := writeTestFile(t, "typed.csv",
		"amount,name,active,created\n"+
			"1.5,alice,true,2025-01-01\n"+
			"2.5,bob,false,2025-01-02\n"+
			",carol,true,2025-01-03\n")

	ds, err := reader.Read(path)
	require.NoError(t, err)

	assert.Equal(t, 3, ds.NumRows())
	assert.Equal(t, map[string]string{
		"amount":  "numeric",
		"name":    "text",
		"active":  "boolean",
		"created": "datetime",
	}, ds.DTypes())

	amount, _ := ds.Column("amount")
	assert.Equal(t, 1.5, amount.Values[0])
	assert.Nil(t, amount.Values[2], "empty cell becomes null")

	active, _ := ds.Column("active")
	assert.Equal(t, true, active.Values[0])
	assert.Equal(t, false, active.Values[1])

	created, _ := ds.Column("created")
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), created.Values[0])
}

func TestReadCSVMixedColumnFallsBackToText(t *testing.T) {
	reader := NewFileReader(testLogger())
	path := writeTestFile(t, "mixed.csv", "v\n1.5\nhello\n")

	ds, err := reader.Read(path)
	require.NoError(t, err)

	col, _ := ds.Column("v")
	assert.Equal(t, DTypeText, col.Type)
	assert.Equal(t, "1.5", col.Values[0])
}

func TestReadCSVEmptyFile(t *testing.T) {
	reader := NewFileReader(testLogger())
	path := writeTestFile(t, "empty.csv", "")

	_, err := reader.Read(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header row")
}

func TestReadJSON(t *testing.T) {
	reader := NewFileReader(testLogger())
	path := writeTestFile(t, "data.json", `[
		{"id": 1, "name": "alice", "active": true},
		{"id": 2, "name": "bob", "active": false},
		{"id": 3, "name": null}
	]`)

	ds, err := reader.Read(path)
	require.NoError(t, err)

	assert.Equal(t, 3, ds.NumRows())
	// Columns come out sorted by name
	assert.Equal(t, []string{"active", "id", "name"}, ds.ColumnNames())

	id, _ := ds.Column("id")
	assert.Equal(t, DTypeNumeric, id.Type)
	assert.Equal(t, 1.0, id.Values[0])

	active, _ := ds.Column("active")
	assert.Equal(t, DTypeBoolean, active.Type)
	assert.Nil(t, active.Values[2], "absent key becomes null")

	name, _ := ds.Column("name")
	assert.Nil(t, name.Values[2])
}

func TestReadJSONMixedTypesCoerced(t *testing.T) {
	reader := NewFileReader(testLogger())
	path := writeTestFile(t, "mixed.json", `[
		{"v": 1},
		{"v": "oops"},
		{"v": 2}
	]`)

	ds, err := reader.Read(path)
	require.NoError(t, err)

	// First non-null value wins the type; mismatched values are nulled
	col, _ := ds.Column("v")
	assert.Equal(t, DTypeNumeric, col.Type)
	assert.Equal(t, 1.0, col.Values[0])
	assert.Nil(t, col.Values[1])
	assert.Equal(t, 2.0, col.Values[2])
}

func TestReadJSONNotAnArray(t *testing.T) {
	reader := NewFileReader(testLogger())
	path := writeTestFile(t, "bad.json", `{"not": "an array"}`)

	_, err := reader.Read(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array of objects")
}

func TestReadUnsupportedFormat(t *testing.T) {
	reader := NewFileReader(testLogger())
	path := writeTestFile(t, "data.txt", "whatever")

	_, err := reader.Read(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	reader := NewFileReader(testLogger())
	dir := t.TempDir()

	ds, err := New([]Column{
		{Name: "a", Type: DTypeNumeric, Values: []interface{}{1.0, nil, 3.0}},
		{Name: "b", Type: DTypeText, Values: []interface{}{"x", "y", "z"}},
	})
	require.NoError(t, err)

	path, err := reader.Save(ds, dir, "out.csv")
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "out_")

	loaded, err := reader.Read(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.NumRows())
	assert.Equal(t, []string{"a", "b"}, loaded.ColumnNames())

	col, _ := loaded.Column("a")
	assert.Equal(t, 1.0, col.Values[0])
	assert.Nil(t, col.Values[1])
}

func TestFindDuplicateFile(t *testing.T) {
	reader := NewFileReader(testLogger())
	dir := t.TempDir()

	first := filepath.Join(dir, "first.csv")
	require.NoError(t, os.WriteFile(first, []byte("a,b\n1,2\n"), 0o644))
	temp := filepath.Join(dir, "temp_abc.csv")
	require.NoError(t, os.WriteFile(temp, []byte("a,b\n1,2\n"), 0o644))

	hash, err := reader.Hash(first)
	require.NoError(t, err)

	// Temp files and the excluded path are skipped
	match, err := reader.FindDuplicateFile(dir, hash, first)
	require.NoError(t, err)
	assert.Empty(t, match)

	match, err = reader.FindDuplicateFile(dir, hash, "")
	require.NoError(t, err)
	assert.Equal(t, first, match)

	// Missing directory is not an error
	match, err = reader.FindDuplicateFile(filepath.Join(dir, "nope"), hash, "")
	require.NoError(t, err)
	assert.Empty(t, match)
}
