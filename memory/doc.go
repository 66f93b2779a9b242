// Package memory implements the namespace-scoped memory manager: similarity
// retrieval over the vector store, prompt construction per store type, and
// consolidation of conversation turns into durable memory items.
//
// A Manager is bound at construction to exactly one namespace and one store
// type. Retrieval and writes never cross the namespace boundary. Hotpath
// consolidation runs inline inside the turn; background consolidation is
// handed to a Scheduler and runs on a detached context after a delay, so a
// finished turn is never blocked or failed by extraction.
package memory
