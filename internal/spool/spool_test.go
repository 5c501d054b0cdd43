package spool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jibmail/jib/internal/address"
	"github.com/jibmail/jib/internal/bounce"
)

func testNotice(t *testing.T) *bounce.Notice {
	t.Helper()
	sender, err := address.ParsePath("alice@ours.example")
	require.NoError(t, err)
	return &bounce.Notice{
		ReversePath: address.NullReversePath(),
		ForwardPath: sender,
		Data: []string{
			"Subject: Undeliverable mail",
			"",
			"The host rejected <bob@remote.example>",
		},
	}
}

func TestSpoolDeliverNotice(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.DeliverNotice(context.Background(), testNotice(t)))

	ids, err := s.List()
	require.NoError(t, err)
	require.Len(t, ids, 1)

	body, err := os.ReadFile(filepath.Join(dir, ids[0]))
	require.NoError(t, err)
	assert.Contains(t, string(body), "The host rejected <bob@remote.example>\r\n")

	meta, err := os.ReadFile(filepath.Join(dir, ids[0]+".json"))
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(meta, &info))
	assert.Equal(t, ids[0], info["id"])
	assert.Equal(t, "<>", info["from"])
	assert.Equal(t, "alice@ours.example", info["to"])
	assert.Equal(t, float64(3), info["lines"])
}

func TestSpoolListSkipsMetadata(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.DeliverNotice(context.Background(), testNotice(t)))
	require.NoError(t, s.DeliverNotice(context.Background(), testNotice(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	ids, err := s.List()
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	for _, id := range ids {
		assert.NotContains(t, id, ".json")
	}
}

func TestSpoolCancelledContext(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.DeliverNotice(ctx, testNotice(t)))

	ids, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSpoolEmptyDir(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
