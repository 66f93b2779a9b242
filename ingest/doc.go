// Package ingest feeds external documents into the vector store. The
// contracts are narrow function shapes: a Loader turns URLs into documents,
// a Splitter turns a document into chunks, and a Pipeline runs both and
// writes the chunks into a namespace with duplicate suppression applied at
// the store.
package ingest
