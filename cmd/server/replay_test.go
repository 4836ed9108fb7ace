package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinigraph/internal/codec"
	"clinigraph/internal/config"
)

const testSnapshot = `{
  "sessionId": "sess-1",
  "nodes": {
    "symptoms": [{"id": "s1", "name": "Chest pain", "severity": 8}],
    "diagnoses": [{"id": "d1", "name": "Angina", "probability": 0.6}]
  },
  "links": [{"source": "s1", "target": "d1", "type": "supports"}]
}`

const testEvents = `{"type":"qom_initialized","qomId":"q1","nodes":[{"id":"gp","kind":"reasoning","name":"GP"},{"id":"consensus_merger","kind":"reasoning","name":"Consensus"}]}
{"type":"node_started","nodeId":"gp"}
{"type":"node_completed","nodeId":"gp","duration":120}
`

func testApp() *app {
	return &app{cfg: config.DefaultConfig(), logger: zap.NewNop()}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunReplayToStdout(t *testing.T) {
	dir := t.TempDir()
	opts := &replayOptions{
		snapshot: writeFile(t, dir, "session.json", testSnapshot),
		events:   writeFile(t, dir, "events.ndjson", testEvents),
	}

	var out bytes.Buffer
	require.NoError(t, runReplay(testApp(), opts, &out))

	session, err := codec.NewJSONCodec().Parse(&out)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", session.SessionID)
	require.Len(t, session.Nodes.Symptoms, 1)
	assert.Equal(t, "s1", session.Nodes.Symptoms[0].ID)
	require.Len(t, session.Nodes.Diagnoses, 1)
	assert.Len(t, session.Links, 1)
}

func TestRunReplayWritesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	opts := &replayOptions{
		snapshot: writeFile(t, dir, "session.json", testSnapshot),
		events:   writeFile(t, dir, "events.ndjson", testEvents),
		out:      filepath.Join(dir, "result.yaml"),
	}

	var out bytes.Buffer
	require.NoError(t, runReplay(testApp(), opts, &out))
	assert.Zero(t, out.Len())

	f, err := os.Open(opts.out)
	require.NoError(t, err)
	defer f.Close()

	session, err := codec.NewYAMLCodec().Parse(f)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", session.SessionID)
}

func TestRunReplayWithoutSnapshot(t *testing.T) {
	dir := t.TempDir()
	opts := &replayOptions{events: writeFile(t, dir, "events.ndjson", testEvents)}

	var out bytes.Buffer
	require.NoError(t, runReplay(testApp(), opts, &out))

	session, err := codec.NewJSONCodec().Parse(&out)
	require.NoError(t, err)
	assert.Empty(t, session.AllNodes())
}

func TestRunReplayErrors(t *testing.T) {
	dir := t.TempDir()

	err := runReplay(testApp(), &replayOptions{events: filepath.Join(dir, "missing.ndjson")}, &bytes.Buffer{})
	assert.Error(t, err)

	err = runReplay(testApp(), &replayOptions{
		events: writeFile(t, dir, "bad.ndjson", `{"type":"node_paused"}`),
	}, &bytes.Buffer{})
	assert.Error(t, err)

	err = runReplay(testApp(), &replayOptions{
		events: writeFile(t, dir, "events.ndjson", testEvents),
		format: "xml",
	}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestReplayOutputFormat(t *testing.T) {
	assert.Equal(t, "json", (&replayOptions{}).outputFormat())
	assert.Equal(t, ".yaml", (&replayOptions{out: "x.yaml"}).outputFormat())
	assert.Equal(t, "yaml", (&replayOptions{out: "x.json", format: "yaml"}).outputFormat())
}
