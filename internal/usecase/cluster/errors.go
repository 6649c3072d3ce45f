package cluster

import "errors"

// ErrEmbeddingUnavailable signals that the embedding vendor could not be
// reached for an article; Engine falls back to the stricter lexical-only
// rule per spec.md §4.5's failure model rather than failing the assignment.
var ErrEmbeddingUnavailable = errors.New("cluster: embedding service unavailable")
