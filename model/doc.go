// Package model defines the chat-model capability boundary. The runtime
// depends only on the Model interface; adapters for concrete providers live
// in the subpackages (openai, anthropic) and translate the normalized
// Request/Response structures into the vendor SDK shapes.
//
// The runtime streams at graph-event granularity rather than per token, so
// Generate is a single blocking round trip.
package model
