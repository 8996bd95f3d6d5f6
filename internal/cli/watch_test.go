package cli

import (
	"bufio"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_InitialSnapshot(t *testing.T) {
	out, err := execute(t, "watch", "tasks", "--where", "status=todo", "--order", "priority", "--count", "1", "--schema", schema)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"[1] tasks: 2 row(s)",
		`{"board_id":"b1","id":"2","priority":2,"status":"todo","title":"Write Docs"}`,
		`{"board_id":"b2","id":"3","priority":3,"status":"todo","title":"Ship"}`,
	}, lines(out))
}

func TestWatch_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "watch", "board", "--count", "1", "--schema", schema)
	require.NoError(t, err)

	scanner := bufio.NewScanner(strings.NewReader(out))
	require.True(t, scanner.Scan())

	var resp struct {
		Status string     `json:"status"`
		Data   WatchEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(1), resp.Data.Seq)
	assert.Equal(t, "board", resp.Data.Collection)
	assert.Len(t, resp.Data.Rows, 2)
	assert.False(t, scanner.Scan(), "only one update expected")
}

func TestWatch_UnknownCollection(t *testing.T) {
	_, err := execute(t, "watch", "nope", "--count", "1", "--schema", schema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown collection")
}
