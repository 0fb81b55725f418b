package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(Options{ProjectRoot: root, GlobalPath: "-"})
	require.NoError(t, err)

	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, "local", cfg.EmbeddingFunction)
	assert.Equal(t, -1, cfg.ChunkSize)
	assert.InDelta(t, 0.2, cfg.OverlapRatio, 1e-9)
	assert.Equal(t, 1, cfg.NResult)
	assert.Equal(t, -1, cfg.QueryMultiplier)
	assert.Equal(t, DefaultDBPath(), cfg.DBPath)
	assert.Equal(t, filepath.Join(DefaultDBPath(), DBFileName), cfg.DBFile())
	assert.Empty(t, cfg.Exclude)
	assert.NotNil(t, cfg.EmbeddingParams)
}

func TestLoad_Layering(t *testing.T) {
	root := t.TempDir()
	global := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, global, `{"chunk_size": 1000, "overlap_ratio": 0.1, "embedding_function": "openai", "n_result": 5}`)
	writeJSON(t, filepath.Join(root, ProjectDirName, FileName), `{"chunk_size": 500, "exclude": ["*.lock"]}`)
	t.Setenv("VECINDEX_N_RESULT", "7")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Float64(KeyOverlapRatio, 0.2, "")
	flags.Bool(KeyPipe, false, "")
	require.NoError(t, flags.Parse([]string{"--pipe"}))

	cfg, err := Load(Options{ProjectRoot: root, GlobalPath: global, Flags: flags})
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.ChunkSize, "project beats global")
	assert.InDelta(t, 0.1, cfg.OverlapRatio, 1e-9, "unset flag does not override files")
	assert.Equal(t, "openai", cfg.EmbeddingFunction)
	assert.Equal(t, []string{"*.lock"}, cfg.Exclude)
	assert.Equal(t, 7, cfg.NResult, "env beats files")
	assert.True(t, cfg.Pipe, "set flag applies")
}

func TestLoad_FlagBeatsEverything(t *testing.T) {
	root := t.TempDir()
	writeJSON(t, filepath.Join(root, ProjectDirName, FileName), `{"chunk_size": 500}`)
	t.Setenv("VECINDEX_CHUNK_SIZE", "600")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int(KeyChunkSize, -1, "")
	require.NoError(t, flags.Parse([]string{"--chunk_size", "700"}))

	cfg, err := Load(Options{ProjectRoot: root, GlobalPath: "-", Flags: flags})
	require.NoError(t, err)
	assert.Equal(t, 700, cfg.ChunkSize)
}

func TestLoad_ExpandsEnv(t *testing.T) {
	root := t.TempDir()
	dbDir := t.TempDir()
	t.Setenv("TEST_DB_DIR", dbDir)
	t.Setenv("TEST_API_KEY", "sk-123")
	writeJSON(t, filepath.Join(root, ProjectDirName, FileName),
		`{"db_path": "$TEST_DB_DIR", "embedding_params": {"api_key": "$TEST_API_KEY", "nested": {"k": "${TEST_API_KEY}"}, "rate_limit": 2}}`)

	cfg, err := Load(Options{ProjectRoot: root, GlobalPath: "-"})
	require.NoError(t, err)
	assert.Equal(t, dbDir, cfg.DBPath)
	assert.Equal(t, "sk-123", cfg.EmbeddingParams["api_key"])
	assert.Equal(t, map[string]any{"k": "sk-123"}, cfg.EmbeddingParams["nested"])
	assert.EqualValues(t, 2, cfg.EmbeddingParams["rate_limit"])
}

func TestLoad_Invalid(t *testing.T) {
	root := t.TempDir()
	writeJSON(t, filepath.Join(root, ProjectDirName, FileName), `{"overlap_ratio": 1.5}`)
	_, err := Load(Options{ProjectRoot: root, GlobalPath: "-"})
	assert.Error(t, err)

	root = t.TempDir()
	notDir := filepath.Join(root, "file")
	writeJSON(t, notDir, "x")
	writeJSON(t, filepath.Join(root, ProjectDirName, FileName), `{"db_path": "`+notDir+`"}`)
	_, err = Load(Options{ProjectRoot: root, GlobalPath: "-"})
	assert.ErrorContains(t, err, "not a directory")

	root = t.TempDir()
	writeJSON(t, filepath.Join(root, ProjectDirName, FileName), `{broken`)
	_, err = Load(Options{ProjectRoot: root, GlobalPath: "-"})
	assert.ErrorContains(t, err, "invalid config")
}

func TestFindProjectRoot(t *testing.T) {
	base := t.TempDir()
	deep := filepath.Join(base, "repo", "a", "b")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, deep, FindProjectRoot(deep))

	require.NoError(t, os.MkdirAll(filepath.Join(base, "repo", ".git"), 0o755))
	assert.Equal(t, filepath.Join(base, "repo"), FindProjectRoot(deep))

	require.NoError(t, os.MkdirAll(filepath.Join(base, "repo", "a", ProjectDirName), 0o755))
	assert.Equal(t, filepath.Join(base, "repo", "a"), FindProjectRoot(deep))
}

func TestInit(t *testing.T) {
	root := t.TempDir()
	global := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, global, `{"chunk_size": 256}`)

	path, err := Init(root, global, false)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"chunk_size": 256}`, string(data))

	_, err = Init(root, global, false)
	assert.ErrorContains(t, err, "already exists")

	writeJSON(t, global, `{"chunk_size": 128}`)
	_, err = Init(root, global, true)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"chunk_size": 128}`, string(data))
}

func TestInit_NoGlobal(t *testing.T) {
	root := t.TempDir()
	path, err := Init(root, filepath.Join(t.TempDir(), "missing.json"), false)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}
