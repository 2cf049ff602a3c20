package telemetrylog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_WriteAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(dir, "facility-1", 0)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(Entry{NodeID: "supervisor-1", Kind: "facility_status", Fields: map[string]interface{}{"mode": "SIMPLE"}}))
	require.NoError(t, s.Write(Entry{NodeID: "supervisor-1", Kind: "facility_status", Fields: map[string]interface{}{"mode": "BURN_RATE"}}))
	require.NoError(t, s.Close())

	f, err := os.Open(filepath.Join(dir, "facility-1.log"))
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var e Entry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &e))
	assert.Equal(t, "BURN_RATE", e.Fields["mode"])
}

func TestFileSink_RotatesPastMaxSize(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(dir, "facility-1", 10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Write(Entry{NodeID: "n", Kind: "k", Fields: map[string]interface{}{"i": i}}))
	}
	require.NoError(t, s.Close())

	_, err = os.Stat(filepath.Join(dir, "facility-1.log.1"))
	assert.NoError(t, err, "expected a rotated generation on disk")
}

func TestNopSink_DiscardsWithoutError(t *testing.T) {
	var s Sink = NopSink{}
	assert.NoError(t, s.Write(Entry{}))
	assert.NoError(t, s.Close())
}
