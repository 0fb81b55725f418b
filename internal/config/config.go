package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dshills/vecindex/internal/chunker"
)

const (
	// ProjectDirName is the per-project settings directory.
	ProjectDirName = ".vecindex"

	// FileName is the config file inside a settings directory.
	FileName = "config.json"

	// EnvPrefix prefixes environment overrides, e.g. VECINDEX_CHUNK_SIZE.
	EnvPrefix = "VECINDEX"

	// DBFileName is the database file created inside db_path.
	DBFileName = "vecindex.db"
)

// Config keys.
const (
	KeyProjectRoot       = "project_root"
	KeyEmbeddingFunction = "embedding_function"
	KeyEmbeddingParams   = "embedding_params"
	KeyDBPath            = "db_path"
	KeyChunkSize         = "chunk_size"
	KeyOverlapRatio      = "overlap_ratio"
	KeyExclude           = "exclude"
	KeyQueryMultiplier   = "query_multiplier"
	KeyNResult           = "n_result"
	KeyLogFile           = "log_file"
	KeyPipe              = "pipe"
	KeyNoStderr          = "no_stderr"
	KeyVerbose           = "verbose"
	KeyForce             = "force"
	KeyRecursive         = "recursive"
)

// Config is the merged configuration for one project.
type Config struct {
	ProjectRoot       string         `mapstructure:"project_root"`
	EmbeddingFunction string         `mapstructure:"embedding_function"`
	EmbeddingParams   map[string]any `mapstructure:"embedding_params"`
	DBPath            string         `mapstructure:"db_path"`
	ChunkSize         int            `mapstructure:"chunk_size"`
	OverlapRatio      float64        `mapstructure:"overlap_ratio"`
	Exclude           []string       `mapstructure:"exclude"`
	QueryMultiplier   int            `mapstructure:"query_multiplier"`
	NResult           int            `mapstructure:"n_result"`
	LogFile           string         `mapstructure:"log_file"`
	Pipe              bool           `mapstructure:"pipe"`
	NoStderr          bool           `mapstructure:"no_stderr"`
	Verbose           bool           `mapstructure:"verbose"`
	Force             bool           `mapstructure:"force"`
	Recursive         bool           `mapstructure:"recursive"`
}

// DBFile is the SQLite database path.
func (c *Config) DBFile() string {
	return filepath.Join(c.DBPath, DBFileName)
}

// DefaultGlobalPath is ~/.config/vecindex/config.json.
func DefaultGlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "vecindex", FileName)
}

// DefaultDBPath is ~/.local/share/vecindex.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "vecindex")
	}
	return filepath.Join(home, ".local", "share", "vecindex")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyEmbeddingFunction, "local")
	v.SetDefault(KeyEmbeddingParams, map[string]any{})
	v.SetDefault(KeyDBPath, DefaultDBPath())
	v.SetDefault(KeyChunkSize, chunker.DefaultChunkSize)
	v.SetDefault(KeyOverlapRatio, chunker.DefaultOverlapRatio)
	v.SetDefault(KeyExclude, []string{})
	v.SetDefault(KeyQueryMultiplier, -1)
	v.SetDefault(KeyNResult, 1)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyPipe, false)
	v.SetDefault(KeyNoStderr, false)
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyForce, false)
	v.SetDefault(KeyRecursive, false)
}

// Options selects where Load reads from.
type Options struct {
	// ProjectRoot is searched for .vecindex/config.json. Empty means
	// discover from the working directory.
	ProjectRoot string
	// GlobalPath overrides DefaultGlobalPath. "-" disables the global file.
	GlobalPath string
	// Flags whose names match config keys override every other layer
	// when set on the command line.
	Flags *pflag.FlagSet
}

// Load merges defaults, the global file, the project file, VECINDEX_*
// environment variables and flags, in increasing precedence.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for _, key := range []string{
			KeyProjectRoot, KeyEmbeddingFunction, KeyDBPath, KeyChunkSize, KeyOverlapRatio,
			KeyExclude, KeyQueryMultiplier, KeyNResult, KeyLogFile, KeyPipe, KeyNoStderr,
			KeyVerbose, KeyForce, KeyRecursive,
		} {
			if f := opts.Flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", key, err)
				}
			}
		}
	}

	globalPath := opts.GlobalPath
	if globalPath == "" {
		globalPath = DefaultGlobalPath()
	}
	if globalPath != "-" {
		if err := mergeFile(v, globalPath); err != nil {
			return nil, err
		}
	}

	root := opts.ProjectRoot
	if root == "" {
		root = v.GetString(KeyProjectRoot)
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = FindProjectRoot(wd)
	}
	root, err := filepath.Abs(expand(root))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	if err := mergeFile(v, filepath.Join(root, ProjectDirName, FileName)); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ProjectRoot = root
	cfg.DBPath = expand(cfg.DBPath)
	cfg.LogFile = expand(cfg.LogFile)
	cfg.EmbeddingParams = expandParams(cfg.EmbeddingParams)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeFile layers a JSON config file over v. A missing file is skipped.
func mergeFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := v.MergeConfigMap(m); err != nil {
		return fmt.Errorf("failed to merge config %s: %w", path, err)
	}
	return nil
}

// Validate rejects values the sync engine cannot work with.
func (c *Config) Validate() error {
	if err := chunker.Validate(c.ChunkSize, c.OverlapRatio); err != nil {
		return fmt.Errorf("invalid %s: %w", KeyOverlapRatio, err)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%s cannot be empty", KeyDBPath)
	}
	if info, err := os.Stat(c.DBPath); err == nil && !info.IsDir() {
		return fmt.Errorf("%s %s is not a directory", KeyDBPath, c.DBPath)
	}
	if c.NResult < 0 {
		return fmt.Errorf("%s must not be negative", KeyNResult)
	}
	return nil
}

// FindProjectRoot returns the nearest ancestor of start containing
// .vecindex, else the nearest containing .git, else start itself.
func FindProjectRoot(start string) string {
	for _, anchor := range []string{ProjectDirName, ".git"} {
		dir := start
		for {
			if info, err := os.Stat(filepath.Join(dir, anchor)); err == nil && info.IsDir() {
				return dir
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return start
}

// Init creates <root>/.vecindex and seeds its config.json from the global
// file (or an empty object). An existing project config is kept unless
// force is set.
func Init(root, globalPath string, force bool) (string, error) {
	dir := filepath.Join(root, ProjectDirName)
	target := filepath.Join(dir, FileName)

	if _, err := os.Stat(target); err == nil && !force {
		return "", fmt.Errorf("%s already exists, use --force to overwrite", target)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	if globalPath == "" {
		globalPath = DefaultGlobalPath()
	}
	data, err := os.ReadFile(globalPath)
	if err != nil {
		data = []byte("{}\n")
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	return target, nil
}

func expand(s string) string {
	if s == "" {
		return s
	}
	s = os.ExpandEnv(s)
	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, strings.TrimPrefix(s, "~"))
		}
	}
	return s
}

// expandParams expands environment variables in string values, recursing
// into nested maps and lists.
func expandParams(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(params))
	for k, val := range params {
		out[k] = expandValue(val)
	}
	return out
}

func expandValue(val any) any {
	switch x := val.(type) {
	case string:
		return os.ExpandEnv(x)
	case map[string]any:
		return expandParams(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = expandValue(item)
		}
		return out
	default:
		return val
	}
}
