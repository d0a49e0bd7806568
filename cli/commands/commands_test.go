package commands_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaselworks/go-stoat"
	"github.com/weaselworks/go-stoat/adapters/sqlite"
	"github.com/weaselworks/go-stoat/cli/commands"
	"github.com/weaselworks/go-stoat/cli/config"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := commands.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// writeConfig points the CLI at a sqlite database in a temp dir.
func writeConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()

	dir := t.TempDir()
	configPath = filepath.Join(dir, "stoat.yaml")
	dbPath = filepath.Join(dir, "stoat.db")

	cfg := &config.Config{
		Version: "1",
		Storage: config.StorageConfig{Backend: config.BackendSQLite, DSN: dbPath},
	}
	require.NoError(t, cfg.Save(configPath))
	return configPath, dbPath
}

type taskAdded struct {
	Title string
}

type taskList struct {
	Titles []string
}

// seed appends events through a real store so the CLI sees proper state.
func seed(t *testing.T, dbPath string, streamIDs ...string) {
	t.Helper()

	adapter, err := sqlite.NewAdapter(dbPath)
	require.NoError(t, err)
	defer func() { _ = adapter.Close() }()
	require.NoError(t, adapter.Initialize(context.Background()))

	store := stoat.New(adapter)
	store.RegisterEvents(taskAdded{})
	store.RegisterDocuments(taskList{})

	proj := stoat.NewSingleStreamProjection("task-list", "taskList").
		Create("taskAdded", func(event any) (any, error) {
			return taskList{Titles: []string{event.(taskAdded).Title}}, nil
		}).
		Apply("taskAdded", func(doc any, event any) (any, error) {
			d := doc.(taskList)
			d.Titles = append(d.Titles, event.(taskAdded).Title)
			return d, nil
		})
	require.NoError(t, store.RegisterProjection(proj))

	for _, streamID := range streamIDs {
		require.NoError(t, store.AppendEvents(context.Background(), streamID, []any{taskAdded{Title: "do " + streamID}}))
	}
}

func TestInitWritesConfigAndSchema(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "stoat.yaml")
	dbPath := filepath.Join(dir, "stoat.db")

	out, err := runCLI(t, "--config", configPath, "init", "--backend", "sqlite", "--dsn", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+configPath)
	assert.Contains(t, out, "created storage schema")

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, config.BackendSQLite, cfg.Storage.Backend)

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}

func TestInitRefusesToOverwrite(t *testing.T) {
	configPath, _ := writeConfig(t)

	_, err := runCLI(t, "--config", configPath, "init")
	assert.ErrorContains(t, err, "already exists")
}

func TestStreamsListsSeededStreams(t *testing.T) {
	configPath, dbPath := writeConfig(t)
	seed(t, dbPath, "chores", "errands")

	out, err := runCLI(t, "--config", configPath, "streams")
	require.NoError(t, err)
	assert.Contains(t, out, "2 stream(s)")
	assert.Contains(t, out, "chores")
	assert.Contains(t, out, "errands")
}

func TestStreamsShowsSingleStream(t *testing.T) {
	configPath, dbPath := writeConfig(t)
	seed(t, dbPath, "chores")

	out, err := runCLI(t, "--config", configPath, "streams", "chores")
	require.NoError(t, err)
	assert.Contains(t, out, "chores")
	assert.Contains(t, out, "version:    1")
}

func TestDocumentsListsProjectedDocuments(t *testing.T) {
	configPath, dbPath := writeConfig(t)
	seed(t, dbPath, "chores")

	out, err := runCLI(t, "--config", configPath, "documents", "taskList", "--data")
	require.NoError(t, err)
	assert.Contains(t, out, "1 document(s) of type taskList")
	assert.Contains(t, out, "chores")
	assert.Contains(t, out, "do chores")
}

func TestDocumentsEmptyType(t *testing.T) {
	configPath, dbPath := writeConfig(t)
	seed(t, dbPath, "chores")

	out, err := runCLI(t, "--config", configPath, "documents", "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "no documents of type nothing")
}

func TestVersionPrintsLibraryVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, stoat.Version)
}
