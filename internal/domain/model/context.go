package model

import "time"

// TransactionContext is the immutable value attached to a transaction at
// creation and handed to every operation's Execute/Rollback/Validate call.
// The metadata map is deep-copied on the way in and on the way out so no
// caller can mutate a context after the fact.
type TransactionContext struct {
	transactionID TransactionID
	userID        string
	sessionID     string
	timestamp     time.Time
	metadata      map[string]interface{}
}

// NewTransactionContext creates an immutable TransactionContext
func NewTransactionContext(txnID TransactionID, userID, sessionID string, metadata map[string]interface{}) *TransactionContext {
	return &TransactionContext{
		transactionID: txnID,
		userID:        userID,
		sessionID:     sessionID,
		timestamp:     time.Now(),
		metadata:      copyMetadata(metadata),
	}
}

// ReconstructTransactionContext rebuilds a context from stored values
func ReconstructTransactionContext(txnID TransactionID, userID, sessionID string, timestamp time.Time, metadata map[string]interface{}) *TransactionContext {
	return &TransactionContext{
		transactionID: txnID,
		userID:        userID,
		sessionID:     sessionID,
		timestamp:     timestamp,
		metadata:      copyMetadata(metadata),
	}
}

// TransactionID returns the owning transaction's id
func (c *TransactionContext) TransactionID() TransactionID {
	return c.transactionID
}

// UserID returns the acting user id supplied by the caller
func (c *TransactionContext) UserID() string {
	return c.userID
}

// SessionID returns the session id supplied by the caller
func (c *TransactionContext) SessionID() string {
	return c.sessionID
}

// Timestamp returns the context creation time
func (c *TransactionContext) Timestamp() time.Time {
	return c.timestamp
}

// Metadata returns a copy of the free-form metadata map
func (c *TransactionContext) Metadata() map[string]interface{} {
	return copyMetadata(c.metadata)
}

// MetadataValue returns a single metadata entry
func (c *TransactionContext) MetadataValue(key string) (interface{}, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

func copyMetadata(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
