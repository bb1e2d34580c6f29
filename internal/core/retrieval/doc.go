// Package retrieval ranks corpus chunks for a natural-language question.
//
// Two algorithms are provided:
//   - LexicalRetriever scores chunks with BM25+ (k1=1.5, b=0.75, delta=1.0)
//   - SemanticRetriever scores chunks by cosine similarity of embeddings
//
// Each algorithm builds an immutable index; Retrieve calls against a built
// index may run concurrently. HybridCoordinator builds every enabled algorithm,
// swaps the new indexes in as one snapshot, fans queries out to all of them and
// merges the per-algorithm lists with Merger. An algorithm that fails to index
// or retrieve is marked degraded and left out of later merges.
package retrieval
