// Package knowledge implements the retrieval engine behind the helpdesk
// AI agents: chunking of heterogeneous content, embedding-backed storage,
// and hybrid nearest-neighbor search with tenant and tag scoping.
//
// Write path:
//
//	Chunkable (article | webpage | document | snippet)
//	    → projection (searchable document)
//	    → Chunker (bounded, hash-addressed segments)
//	    → Embedder (external, text → vector)
//	    → Store (chunks + vectors + tag/agent joins)
//
// Read path:
//
//	query vector → scope filter (tenant, transitive tags)
//	    → Backend (pgvector | brute-force scan)
//	    → assembler (dedup by parent, score join)
//	    → ranked []Result
//
// Two Backend implementations exist and are selected at construction time:
// PgvectorBackend issues a single SQL query over the pgvector cosine index;
// ScanBackend loads candidate chunks in batches and computes cosine
// similarity in process, for deployments without the vector extension.
// Their output contract is identical.
//
// Storage access goes through the consumer-defined Querier and
// SearchQuerier interfaces (implemented by internal/postgres in
// production and by internal/testutil's fake in tests), so the engine
// depends on abstractions rather than on a concrete database.
package knowledge
