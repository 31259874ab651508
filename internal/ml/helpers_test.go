package ml

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func (m *MockMetrics) counts() (predictions, failures, invalid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions, m.failures, m.invalidInputs
}

func (m *MockMetrics) isReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

const testModelPath = "testdata/efficiency_model.json"

func ptr[T any](v T) *T {
	return &v
}

// readTestBundle parses the committed test artifact so tests can mutate it.
func readTestBundle(t *testing.T) *bundleDoc {
	t.Helper()
	data, err := os.ReadFile(testModelPath)
	require.NoError(t, err)
	var doc bundleDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	return &doc
}

// writeArtifact encodes doc into dir/name. The encoding follows the name:
// .msgpack uses msgpack, anything else JSON, and a trailing .gz compresses.
func writeArtifact(t *testing.T, dir, name string, doc any) string {
	t.Helper()

	var (
		data []byte
		err  error
	)
	if isMsgpack(name) {
		data, err = msgpack.Marshal(doc)
	} else {
		data, err = json.Marshal(doc)
	}
	require.NoError(t, err)

	if isCompressed(name) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err = zw.Write(data)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		data = buf.Bytes()
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func writeRaw(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// stripGains removes every gain annotation so importances fall back to
// split counts.
func stripGains(nodes []treeNode) {
	for i := range nodes {
		nodes[i].Gain = nil
		stripGains(nodes[i].Children)
	}
}
