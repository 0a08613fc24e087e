package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/XCP/xcpfolio.com/pkg/model"
)

// inflightConnect carries the outcome of an in-flight connect so concurrent
// callers can share a single provider prompt. done is closed once the
// result fields are set.
type inflightConnect struct {
	done    chan struct{}
	address string
	err     error
}

// Bridge owns the wallet session: connection state, the active address and
// provider event subscriptions. All methods are safe for concurrent use.
type Bridge struct {
	logger *zap.Logger

	connectTimeout   time.Duration
	signTimeout      time.Duration
	broadcastTimeout time.Duration

	mu        sync.Mutex
	provider  Provider
	address   string
	connected bool
	inflight  *inflightConnect
}

// NewBridge creates a Bridge over provider. connectTimeout bounds the
// xcp_requestAccounts prompt; signTimeout and broadcastTimeout bound their
// respective calls, with zero meaning wait indefinitely.
func NewBridge(logger *zap.Logger, provider Provider, connectTimeout, signTimeout, broadcastTimeout time.Duration) *Bridge {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	b := &Bridge{
		logger:           logger,
		connectTimeout:   connectTimeout,
		signTimeout:      signTimeout,
		broadcastTimeout: broadcastTimeout,
	}
	b.SetProvider(provider)
	return b
}

// SetProvider swaps the underlying provider, moving event subscriptions off
// the old one so handlers never fire twice. A nil provider detaches the
// bridge entirely.
func (b *Bridge) SetProvider(provider Provider) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.provider != nil {
		b.provider.Unsubscribe(EventAccountsChanged)
		b.provider.Unsubscribe(EventDisconnect)
	}

	b.provider = provider
	b.address = ""
	b.connected = false

	if provider == nil {
		return
	}
	provider.Subscribe(EventAccountsChanged, b.onAccountsChanged)
	provider.Subscribe(EventDisconnect, b.onProviderDisconnect)
}

// Connected reports whether a wallet session is active.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Address returns the active address, or empty when disconnected.
func (b *Bridge) Address() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.address
}

// Connection returns the current session snapshot.
func (b *Bridge) Connection() model.WalletConnection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.WalletConnection{Address: b.address, Connected: b.connected}
}

// GetAccounts probes the wallet for already-authorized accounts without
// prompting. It never fails: any provider error reads as "no accounts".
// A non-empty result resumes the prior session, so a restart does not
// force the user back through a connect prompt.
func (b *Bridge) GetAccounts(ctx context.Context) []string {
	b.mu.Lock()
	provider := b.provider
	b.mu.Unlock()
	if provider == nil {
		return nil
	}

	raw, err := provider.Request(ctx, methodAccounts, nil)
	if err != nil {
		b.logger.Debug("wallet.accounts_probe_failed", zap.Error(err))
		return nil
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil
	}

	if len(accounts) > 0 && accounts[0] != "" {
		b.mu.Lock()
		b.address = accounts[0]
		b.connected = true
		b.mu.Unlock()
		b.logger.Info("wallet.session_resumed", zap.String("address", accounts[0]))
	}
	return accounts
}

// Connect requests wallet authorization and records the granted address.
// Concurrent calls share a single provider prompt; all callers see the same
// outcome. Returns RequestTimeoutError when the prompt outlives the
// configured timeout.
func (b *Bridge) Connect(ctx context.Context) (string, error) {
	b.mu.Lock()
	if b.provider == nil {
		b.mu.Unlock()
		return "", &WalletNotFoundError{}
	}
	if b.connected {
		addr := b.address
		b.mu.Unlock()
		return addr, nil
	}
	if b.inflight != nil {
		// A prompt is already open; wait for its result instead of
		// stacking a second one.
		inf := b.inflight
		b.mu.Unlock()
		select {
		case <-inf.done:
			return inf.address, inf.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	inf := &inflightConnect{done: make(chan struct{})}
	b.inflight = inf
	provider := b.provider
	b.mu.Unlock()

	address, err := b.requestAccounts(ctx, provider)

	b.mu.Lock()
	b.inflight = nil
	if err == nil {
		b.address = address
		b.connected = true
	}
	b.mu.Unlock()

	inf.address = address
	inf.err = err
	close(inf.done)

	if err == nil {
		b.logger.Info("wallet.connected", zap.String("address", address))
	} else {
		b.logger.Warn("wallet.connect_failed", zap.Error(err))
	}
	return address, err
}

func (b *Bridge) requestAccounts(ctx context.Context, provider Provider) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.connectTimeout)
	defer cancel()

	raw, err := provider.Request(ctx, methodRequestAccounts, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &RequestTimeoutError{Op: methodRequestAccounts}
		}
		if legacy, ok := provider.(LegacyEnabler); ok && isUnsupportedMethod(err) {
			b.logger.Debug("wallet.legacy_enable_fallback", zap.Error(err))
			return b.legacyEnable(ctx, legacy)
		}
		return "", classifyProviderError(methodRequestAccounts, err)
	}

	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return "", &NoActiveAddressError{}
	}
	if len(accounts) == 0 || accounts[0] == "" {
		return "", &NoActiveAddressError{}
	}
	return accounts[0], nil
}

func (b *Bridge) legacyEnable(ctx context.Context, legacy LegacyEnabler) (string, error) {
	accounts, err := legacy.Enable(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &RequestTimeoutError{Op: methodRequestAccounts}
		}
		return "", classifyProviderError(methodRequestAccounts, err)
	}
	if len(accounts) == 0 || accounts[0] == "" {
		return "", &NoActiveAddressError{}
	}
	return accounts[0], nil
}

// Disconnect ends the session. Local state is always cleared, even when the
// upstream xcp_disconnect call fails.
func (b *Bridge) Disconnect(ctx context.Context) {
	b.mu.Lock()
	provider := b.provider
	b.address = ""
	b.connected = false
	b.mu.Unlock()

	if provider == nil {
		return
	}
	if _, err := provider.Request(ctx, methodDisconnect, nil); err != nil {
		b.logger.Debug("wallet.disconnect_upstream_failed", zap.Error(err))
	}
	b.logger.Info("wallet.disconnected")
}

// SignTransaction asks the wallet to sign rawHex and returns the signed
// transaction. A declined prompt maps to UserCancelledError; any other
// failure, including a response without a hex field, maps to
// SignatureFailedError.
func (b *Bridge) SignTransaction(ctx context.Context, rawHex string) (*model.SignedTransaction, error) {
	provider, err := b.activeProvider()
	if err != nil {
		return nil, err
	}

	if b.signTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.signTimeout)
		defer cancel()
	}

	raw, err := provider.Request(ctx, methodSignTransaction, []any{map[string]string{"hex": rawHex}})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &RequestTimeoutError{Op: methodSignTransaction}
		}
		classified := classifyProviderError(methodSignTransaction, err)
		var rejected *UserRejectedError
		if errors.As(classified, &rejected) {
			return nil, &UserCancelledError{}
		}
		return nil, &SignatureFailedError{Message: classified.Error()}
	}

	var out struct {
		Hex string `json:"hex"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.Hex == "" {
		return nil, &SignatureFailedError{Message: "signer response missing hex"}
	}
	return &model.SignedTransaction{SignedHex: out.Hex}, nil
}

// BroadcastTransaction submits a signed transaction and returns its txid.
func (b *Bridge) BroadcastTransaction(ctx context.Context, signedHex string) (*model.BroadcastResult, error) {
	provider, err := b.activeProvider()
	if err != nil {
		return nil, err
	}

	if b.broadcastTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.broadcastTimeout)
		defer cancel()
	}

	raw, err := provider.Request(ctx, methodBroadcastTx, []any{signedHex})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &RequestTimeoutError{Op: methodBroadcastTx}
		}
		return nil, &BroadcastError{Message: err.Error()}
	}

	var out struct {
		Txid string `json:"txid"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.Txid == "" {
		return nil, &BroadcastError{Message: "broadcast response missing txid"}
	}

	b.logger.Info("wallet.transaction_broadcast", zap.String("txid", out.Txid))
	return &model.BroadcastResult{TransactionID: out.Txid}, nil
}

func (b *Bridge) activeProvider() (Provider, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.provider == nil {
		return nil, &WalletNotFoundError{}
	}
	if !b.connected {
		return nil, &NotConnectedError{}
	}
	return b.provider, nil
}

func (b *Bridge) onAccountsChanged(payload json.RawMessage) {
	var accounts []string
	_ = json.Unmarshal(payload, &accounts)

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(accounts) == 0 || accounts[0] == "" {
		b.address = ""
		b.connected = false
		b.logger.Info("wallet.accounts_cleared")
		return
	}
	if accounts[0] != b.address {
		b.logger.Info("wallet.account_switched",
			zap.String("from", b.address),
			zap.String("to", accounts[0]))
		b.address = accounts[0]
		b.connected = true
	}
}

func (b *Bridge) onProviderDisconnect(json.RawMessage) {
	b.mu.Lock()
	b.address = ""
	b.connected = false
	b.mu.Unlock()
	b.logger.Info("wallet.provider_disconnected")
}
