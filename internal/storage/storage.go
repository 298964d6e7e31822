// Package storage defines the key-value persistence contract ragcore
// consumes. No concrete backend is shipped here: persistence is treated as
// an external collaborator per the module's scope, consumed only through
// this interface by components that opt into it (e.g. the document store's
// document_<id>/collection_<id> keys).
package storage

import "context"

// Message is a single entry in a session-scoped message history.
type Message struct {
	Role      string
	Content   string
	Timestamp int64
}

// Storage is the key-value persistence contract.
type Storage interface {
	Initialize(ctx context.Context) error

	SaveString(ctx context.Context, key, value string) error
	LoadString(ctx context.Context, key string) (string, error)

	SaveObject(ctx context.Context, key string, value any) error
	LoadObject(ctx context.Context, key string, out any) error

	SaveData(ctx context.Context, key string, data []byte) error
	LoadData(ctx context.Context, key string) ([]byte, error)

	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	Clear(ctx context.Context) error

	StoreMessage(ctx context.Context, sessionID string, msg Message) error
	RetrieveHistory(ctx context.Context, sessionID string) ([]Message, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
