package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const moviesScenario = `
name: movies
description: "Patch movies, then books"
engine_id: movies-engine
initial_state:
  movies: []
  books: []
steps:
  - subscribe: { event: update_movies, when: [movies] }
  - patch: { movies: ["Heat"] }
  - patch: { books: ["Dune"] }
assertions:
  - type: fired
    event: update_movies
    count: 1
  - type: persisted
    count: 2
`

const failingScenario = `
name: failing
description: "Asserts a notification that never happens"
initial_state:
  movies: []
steps:
  - create_event: update_movies
assertions:
  - type: fired
    event: update_movies
    count: 1
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// seedDatabase runs moviesScenario against a database file and returns
// its path.
func seedDatabase(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	scenario := writeFile(t, dir, "movies.yaml", moviesScenario)
	dbPath := filepath.Join(dir, "overfall.db")

	_, err := execute(t, "run", scenario, "--db", dbPath)
	require.NoError(t, err)
	return dbPath
}

// syncBuffer is a bytes.Buffer safe for a writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestCommand(out, errOut io.Writer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd
}
