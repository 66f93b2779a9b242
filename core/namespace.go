package core

import "strings"

// NamespaceRealm is the fixed first component of every memory namespace.
const NamespaceRealm = "memories"

// Wildcard is used for namespace components that are not scoped to a
// concrete user or session.
const Wildcard = "*"

// Namespace is the ordered tuple partitioning all memory reads and writes.
// Two agents configured with an identical namespace observe each other's
// memories; changing any component yields an isolated memory space.
//
// A Namespace is an immutable value type created once at manager
// construction.
type Namespace struct {
	Realm     string `json:"realm"`
	ThreadID  string `json:"thread_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// NewNamespace builds a namespace rooted at the fixed realm. Empty user or
// session identifiers collapse to the wildcard component.
func NewNamespace(threadID, userID, sessionID string) Namespace {
	if userID == "" {
		userID = Wildcard
	}
	if sessionID == "" {
		sessionID = Wildcard
	}
	return Namespace{
		Realm:     NamespaceRealm,
		ThreadID:  threadID,
		UserID:    userID,
		SessionID: sessionID,
	}
}

// Key returns the canonical string form used as a partition key by storage
// backends.
func (n Namespace) Key() string {
	return strings.Join([]string{n.Realm, n.ThreadID, n.UserID, n.SessionID}, "/")
}

// Equal reports component-wise equality.
func (n Namespace) Equal(other Namespace) bool { return n == other }

// String implements fmt.Stringer.
func (n Namespace) String() string { return n.Key() }
