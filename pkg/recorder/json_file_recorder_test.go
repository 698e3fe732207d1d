package recorder

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Status string `json:"status"`
	N      int    `json:"n"`
}

func TestRecord_AppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "outcomes.jsonl")
	r := NewJSONFileRecorder(path)
	defer r.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, r.Record(entry{Status: "success", N: n}))
		}(i)
	}
	wg.Wait()
	require.NoError(t, r.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	seen := map[int]bool{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		assert.Equal(t, "success", e.Status)
		seen[e.N] = true
	}
	assert.Len(t, seen, 20)
}

func TestRecord_ReopensAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outcomes.jsonl")
	r := NewJSONFileRecorder(path)
	require.NoError(t, r.Record(entry{Status: "failed"}))
	require.NoError(t, r.Close())
	require.NoError(t, r.Record(entry{Status: "skipped"}))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, countLines(data))
}

func countLines(b []byte) int {
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}
