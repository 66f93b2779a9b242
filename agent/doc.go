// Package agent implements the invocation engine: the per-request state
// machine composing the chat model, the memory manager, the tool set and
// the checkpoint store into the two invocation protocols.
//
// Invoke runs a single round trip and always returns exactly one envelope;
// every failure is folded into an error envelope, never an error return.
// Stream yields one envelope per graph event in arrival order and, unlike
// Invoke, surfaces an abnormal termination on a separate error channel
// after emitting a final diagnostic envelope.
//
// A checkpoint handle is acquired at call start and released on every exit
// path; it is never held across two invocations.
package agent
