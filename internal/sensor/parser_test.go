package sensor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provstream/internal/ir"
)

func london(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	return loc
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseLine_Scenario(t *testing.T) {
	loc := london(t)
	r, ok := ParseLine("42,15/12/2015 02:16:14,37.0", loc)
	require.True(t, ok)
	assert.Equal(t, 42, r.ID)
	assert.Equal(t, 37.0, r.Value)
	assert.True(t, r.Timestamp.Equal(time.Date(2015, 12, 15, 2, 16, 14, 0, loc)))
	// December: London is on GMT.
	assert.Equal(t, int64(1450145774), r.Timestamp.Unix())
}

func TestParseLine_SummerTime(t *testing.T) {
	r, ok := ParseLine("7,01/07/2016 12:00:00,4.5", london(t))
	require.True(t, ok)
	assert.Equal(t, 11, r.Timestamp.UTC().Hour(), "BST is UTC+1")
}

func TestParseLine_Dropped(t *testing.T) {
	loc := london(t)
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"two fields", "42,15/12/2015 02:16:14"},
		{"four fields", "42,15/12/2015 02:16:14,37.0,1"},
		{"trailing empty fourth field", "42,15/12/2015 02:16:14,37.0,"},
		{"trailing comma", "42,15/12/2015 02:16:14,"},
		{"non-integer id", "4x2,15/12/2015 02:16:14,37.0"},
		{"decimal id", "4.2,15/12/2015 02:16:14,37.0"},
		{"month first date", "42,12/15/2015 02:16:14,37.0"},
		{"iso date", "42,2015-12-15T02:16:14,37.0"},
		{"missing seconds", "42,15/12/2015 02:16,37.0"},
		{"non-numeric value", "42,15/12/2015 02:16:14,hot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseLine(tt.line, loc)
			assert.False(t, ok)
		})
	}
}

func TestParser_ParseDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "MeatProbe Serial 1234\n42,15/12/2015 02:16:14,37.0\r\ngarbage\n43,15/12/2015 02:17:14,38.5\n")
	writeFile(t, dir, "sub/b.csv", "MeatProbe\n1,16/12/2015 10:00:00,-2\n1,32/12/2015 10:00:00,5\n")

	p, err := NewParser(dir)
	require.NoError(t, err)
	readings, err := p.Parse(context.Background())
	require.NoError(t, err)

	require.Len(t, readings, 3)
	assert.Equal(t, []int{42, 43, 1}, []int{readings[0].ID, readings[1].ID, readings[2].ID})
	assert.Equal(t, -2.0, readings[2].Value)
}

func TestParser_Pattern(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "probe/a.csv", "1,15/12/2015 02:16:14,1\n")
	writeFile(t, dir, "probe/notes.txt", "2,15/12/2015 02:16:14,2\n")
	writeFile(t, dir, "other/deep/c.csv", "3,15/12/2015 02:16:14,3\n")

	p, err := NewParser(dir, WithPattern("**/*.csv"))
	require.NoError(t, err)
	readings, err := p.Parse(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 3, readings[0].ID, "other/ sorts before probe/")
	assert.Equal(t, 1, readings[1].ID)

	_, err = NewParser(dir, WithPattern("[unclosed"))
	assert.True(t, ir.IsKind(err, ir.KindConfiguration), "got %v", err)
}

func TestParser_CustomMarkerAndLocation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "ID,Time,Temp\n5,15/12/2015 02:16:14,1\n")

	p, err := NewParser(dir, WithMarker("Temp"), WithLocation(time.UTC))
	require.NoError(t, err)
	readings, err := p.Parse(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, time.UTC, readings[0].Timestamp.Location())
}

func TestParser_OverlongLineIsDropped(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("x", 70*1024)
	writeFile(t, dir, "a.csv", "42,15/12/2015 02:16:14,37.0\n"+long+"\n43,15/12/2015 02:17:14,38.5")

	p, err := NewParser(dir)
	require.NoError(t, err)
	readings, err := p.Parse(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 42, readings[0].ID)
	assert.Equal(t, 43, readings[1].ID)
}

func TestParser_EmptyMarkerKeepsRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "MeatProbe\n42,15/12/2015 02:16:14,37.0\n")

	p, err := NewParser(dir, WithMarker(""))
	require.NoError(t, err)
	readings, err := p.Parse(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 1)
}

func TestParser_MissingDirectory(t *testing.T) {
	p, err := NewParser(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)

	_, err = p.Parse(context.Background())
	require.Error(t, err)
	assert.True(t, ir.IsKind(err, ir.KindFileIO), "got %v", err)
}

func TestParser_EachStopsOnCallbackError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "1,15/12/2015 02:16:14,1\n2,15/12/2015 02:16:14,2\n")

	p, err := NewParser(dir)
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0
	err = p.Each(context.Background(), func(ir.Reading) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
