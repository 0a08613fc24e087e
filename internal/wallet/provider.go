package wallet

import (
	"context"
	"encoding/json"
)

// EventHandler receives provider push events such as account changes.
type EventHandler func(payload json.RawMessage)

// Provider is a transport-agnostic wallet RPC surface. Implementations
// carry the xcp_* method namespace: xcp_accounts, xcp_requestAccounts,
// xcp_signTransaction, xcp_broadcastTransaction, xcp_disconnect.
type Provider interface {
	// Request sends a single RPC call and returns the raw result.
	Request(ctx context.Context, method string, params any) (json.RawMessage, error)

	// Subscribe registers a handler for a push event. Registering a second
	// handler for the same event replaces the first.
	Subscribe(event string, h EventHandler)

	// Unsubscribe removes the handler for event, if any.
	Unsubscribe(event string)
}

// LegacyEnabler is the pre-request authorization surface older providers
// expose. The bridge falls back to Enable when the provider rejects
// xcp_requestAccounts as an unknown method.
type LegacyEnabler interface {
	Enable(ctx context.Context) ([]string, error)
}

// Provider event names.
const (
	EventAccountsChanged = "accountsChanged"
	EventDisconnect      = "disconnect"
)

// Provider RPC methods.
const (
	methodAccounts        = "xcp_accounts"
	methodRequestAccounts = "xcp_requestAccounts"
	methodSignTransaction = "xcp_signTransaction"
	methodBroadcastTx     = "xcp_broadcastTransaction"
	methodDisconnect      = "xcp_disconnect"
)
