// Package core contains the shared contracts and value types of the
// MemoryMesh runtime: the memory namespace, the three memory item variants,
// conversation messages and checkpoints, the response envelope, and the
// store / embedder interfaces implemented by the backend packages.
//
// Keeping the contracts centralized lets pluggable backends (vector
// databases, checkpoint stores, embedding providers) be added without
// introducing dependency cycles. Implementations live in their own packages
// (vectorstore/chromem, checkpoint, embedding) and are selected at wiring
// time.
package core
