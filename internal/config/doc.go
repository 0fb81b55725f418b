// Package config loads vecindex settings with viper.
//
// Layers, lowest precedence first:
//
//  1. built-in defaults
//  2. ~/.config/vecindex/config.json
//  3. <project>/.vecindex/config.json
//  4. VECINDEX_* environment variables (VECINDEX_CHUNK_SIZE=512)
//  5. command-line flags named after the keys
//
// String values in embedding_params may reference environment variables,
// e.g. {"api_key": "$OPENAI_API_KEY"}.
package config
