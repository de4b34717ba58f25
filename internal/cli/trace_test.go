package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/overfall/internal/ir"
)

func TestTrace_EngineHistory(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := execute(t, "trace", "--db", dbPath, "--engine", "movies-engine")
	require.NoError(t, err)
	assert.Contains(t, out, "Trace for Engine: movies-engine")
	assert.Contains(t, out, "[1] keys=[movies]")
	assert.Contains(t, out, "[2] keys=[books]")
}

func TestTrace_KeyFilter(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := execute(t, "trace", "--db", dbPath, "--engine", "movies-engine", "--key", "books", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Timeline, 1)
	assert.Equal(t, int64(2), resp.Data.Timeline[0].Seq)
	assert.Equal(t, []string{"books"}, resp.Data.Timeline[0].DeclaredKeys)
}

func TestTrace_Hash(t *testing.T) {
	dbPath := seedDatabase(t)

	hash := ir.MustStateHash(ir.IRObject{
		"movies": ir.IRArray{ir.IRString("Heat")},
		"books":  ir.IRArray{},
	})

	out, err := execute(t, "trace", "--db", dbPath, "--hash", hash, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Timeline, 1)
	assert.Equal(t, "movies-engine", resp.Data.Timeline[0].EngineID)
	assert.Equal(t, int64(1), resp.Data.Timeline[0].Seq)
}

func TestTrace_UnknownEngine(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := execute(t, "trace", "--db", dbPath, "--engine", "ghost")
	require.NoError(t, err)
	assert.Contains(t, out, "(no snapshots)")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "01234567...89abcdef", truncateID("0123456789abcdef0123456789abcdef"))
}
