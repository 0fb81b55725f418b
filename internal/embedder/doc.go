// Package embedder generates vector embeddings for text chunks.
//
// Providers are looked up by name in a Registry, which is how the
// embedding_function config key is resolved:
//
//	reg := embedder.NewRegistry(logger)
//	emb, err := reg.New(cfg.EmbeddingFunction, cfg.EmbeddingParams)
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
// Built-in providers:
//   - local: offline token-hashing embedder (default)
//   - openai: OpenAI embeddings API (OPENAI_API_KEY or params.api_key)
//   - jina: Jina AI embeddings API (JINA_API_KEY or params.api_key)
//
// Remote providers honour params.rate_limit (requests per second), retry
// 429 and 5xx responses with exponential backoff, and accept params.base_url
// for compatible self-hosted endpoints.
//
// # Batching
//
// GenerateBatch accepts up to MaxBatchSize texts. EmbedAll splits larger
// inputs:
//
//	vectors, err := embedder.EmbedAll(ctx, emb, texts)
//
// # Caching
//
// Each embedder keeps an LRU cache keyed by provider, model and SHA-256 of
// the text, so unchanged chunks are not re-embedded within a process.
package embedder
