package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeSignature subscribes to the confirmation of one transaction.
	// The channel receives a single notification and is then closed.
	SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureNotification, error)

	// UnsubscribeSignature drops a subscription whose notification is no
	// longer needed and closes its channel. Unknown signatures are ignored.
	UnsubscribeSignature(ctx context.Context, signature string) error

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification represents a signatureSubscribe message.
type SignatureNotification struct {
	Signature string
	Slot      int64
	Err       interface{}
}
