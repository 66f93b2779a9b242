// Package chromem implements the vector store contract on top of
// chromem-go, a pure Go embedded vector database. All namespaces share a
// single collection; the namespace key is stamped into document metadata
// and applied as a where filter on every query, so cross-namespace reads
// are impossible by construction.
package chromem
