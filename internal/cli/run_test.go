package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunScenario_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "movies.yaml", moviesScenario)

	out, err := execute(t, "run", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario: movies (engine movies-engine)")
	assert.Contains(t, out, `[step 1] seq=1 notify update_movies {"movies":["Heat"]}`)
	assert.Contains(t, out, "[step 1] seq=1 persist keys=[movies]")
	assert.Contains(t, out, "[step 2] seq=2 persist keys=[books]")
	assert.Contains(t, out, `Final state: {"books":["Dune"],"movies":["Heat"]}`)
	assert.Contains(t, out, "✓ Scenario passed")
}

func TestRunScenario_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "movies.yaml", moviesScenario)

	out, err := execute(t, "run", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Pass     bool   `json:"pass"`
			EngineID string `json:"engine_id"`
			Trace    []struct {
				Type  string `json:"type"`
				Event string `json:"event"`
				Seq   int64  `json:"seq"`
			} `json:"trace"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, "movies-engine", resp.Data.EngineID)
	require.Len(t, resp.Data.Trace, 3)
	assert.Equal(t, "notify", resp.Data.Trace[0].Type)
	assert.Equal(t, "update_movies", resp.Data.Trace[0].Event)
}

func TestRunScenario_Failure(t *testing.T) {
	path := writeFile(t, t.TempDir(), "failing.yaml", failingScenario)

	out, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Scenario failed")
	assert.Contains(t, out, "0 notifications")
}

func TestRunScenario_MissingFile(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestRunScenario_PersistsToDatabase(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := execute(t, "trace", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "movies-engine: 2 snapshot(s), seq 1..2")
}
