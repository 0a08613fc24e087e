package purchase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/XCP/xcpfolio.com/internal/counterparty"
	"github.com/XCP/xcpfolio.com/internal/wallet"
	"github.com/XCP/xcpfolio.com/pkg/model"
)

type fakeComposer struct {
	calls    int
	lastReq  model.SwapOrderRequest
	composed *model.ComposedTransaction
	err      error
}

func (f *fakeComposer) ComposeOrder(_ context.Context, source string, req model.SwapOrderRequest) (*model.ComposedTransaction, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.composed, nil
}

type fakeSigner struct {
	connected bool
	address   string

	signCalls      int
	signErr        error
	broadcastCalls int
	broadcastErr   error
	lastSignedHex  string
}

func (f *fakeSigner) Connected() bool { return f.connected }
func (f *fakeSigner) Address() string { return f.address }

func (f *fakeSigner) SignTransaction(_ context.Context, rawHex string) (*model.SignedTransaction, error) {
	f.signCalls++
	if f.signErr != nil {
		return nil, f.signErr
	}
	return &model.SignedTransaction{SignedHex: "signed:" + rawHex}, nil
}

func (f *fakeSigner) BroadcastTransaction(_ context.Context, signedHex string) (*model.BroadcastResult, error) {
	f.broadcastCalls++
	f.lastSignedHex = signedHex
	if f.broadcastErr != nil {
		return nil, f.broadcastErr
	}
	return &model.BroadcastResult{TransactionID: "txid123"}, nil
}

type fixedFees struct{ rate float64 }

func (f fixedFees) GetOrderFeeRate(context.Context) float64 { return f.rate }

type recordingPublisher struct {
	events []model.PurchaseCompleted
	err    error
}

func (p *recordingPublisher) PublishPurchaseCompleted(_ context.Context, evt model.PurchaseCompleted) error {
	p.events = append(p.events, evt)
	return p.err
}

func testRequest() model.SwapOrderRequest {
	return model.SwapOrderRequest{
		GiveAsset:    "XCP",
		GiveQuantity: 500000000,
		GetAsset:     "XCPFOLIO.BACH",
		GetQuantity:  1,
	}
}

func testComposed() *model.ComposedTransaction {
	return &model.ComposedTransaction{RawTransactionHex: "abcd", EstimatedFeeSats: 2000}
}

func TestService_Purchase(t *testing.T) {
	composer := &fakeComposer{composed: testComposed()}
	signer := &fakeSigner{connected: true, address: "1ExampleAddress"}
	pub := &recordingPublisher{}
	svc := NewService(zap.NewNop(), composer, signer, fixedFees{rate: 3}, pub)

	receipt, err := svc.Purchase(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, "txid123", receipt.TransactionID)
	assert.Equal(t, "1ExampleAddress", receipt.Address)
	assert.Equal(t, "signed:abcd", signer.lastSignedHex)

	// The unset fee rate comes from the advisor.
	assert.Equal(t, float64(3), composer.lastReq.FeeRateSatPerVByte)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "txid123", pub.events[0].TransactionID)
	assert.Equal(t, "1ExampleAddress", pub.events[0].Source)
}

func TestService_Purchase_ExplicitFeeRateKept(t *testing.T) {
	composer := &fakeComposer{composed: testComposed()}
	signer := &fakeSigner{connected: true, address: "1ExampleAddress"}
	svc := NewService(zap.NewNop(), composer, signer, fixedFees{rate: 3}, nil)

	req := testRequest()
	req.FeeRateSatPerVByte = 25

	_, err := svc.Purchase(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, float64(25), composer.lastReq.FeeRateSatPerVByte)
}

func TestService_Purchase_NotConnected(t *testing.T) {
	composer := &fakeComposer{composed: testComposed()}
	signer := &fakeSigner{connected: false}
	svc := NewService(zap.NewNop(), composer, signer, nil, nil)

	_, err := svc.Purchase(context.Background(), testRequest())

	var notConnected *wallet.NotConnectedError
	require.ErrorAs(t, err, &notConnected)
	assert.Zero(t, composer.calls, "disconnected purchase must not compose")
	assert.Zero(t, signer.signCalls)
}

func TestService_Purchase_ComposeError(t *testing.T) {
	composer := &fakeComposer{err: &counterparty.ComposeError{Message: "insufficient funds"}}
	signer := &fakeSigner{connected: true, address: "1ExampleAddress"}
	svc := NewService(zap.NewNop(), composer, signer, nil, nil)

	_, err := svc.Purchase(context.Background(), testRequest())

	var composeErr *counterparty.ComposeError
	require.ErrorAs(t, err, &composeErr)
	assert.Zero(t, signer.signCalls, "failed compose must not reach the wallet")
}

func TestService_Purchase_UserCancelled(t *testing.T) {
	composer := &fakeComposer{composed: testComposed()}
	signer := &fakeSigner{connected: true, address: "1ExampleAddress", signErr: &wallet.UserCancelledError{}}
	svc := NewService(zap.NewNop(), composer, signer, nil, nil)

	_, err := svc.Purchase(context.Background(), testRequest())

	var cancelled *wallet.UserCancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.Zero(t, signer.broadcastCalls)
}

func TestService_Purchase_BroadcastErrorNoRetry(t *testing.T) {
	composer := &fakeComposer{composed: testComposed()}
	signer := &fakeSigner{
		connected:    true,
		address:      "1ExampleAddress",
		broadcastErr: &wallet.BroadcastError{Message: "tx-rejected"},
	}
	svc := NewService(zap.NewNop(), composer, signer, nil, nil)

	_, err := svc.Purchase(context.Background(), testRequest())

	var broadcastErr *wallet.BroadcastError
	require.ErrorAs(t, err, &broadcastErr)
	assert.Equal(t, 1, signer.broadcastCalls, "no automatic broadcast retry")

	// A caller-initiated retry runs the whole flow again, recomposing
	// against current UTXOs.
	signer.broadcastErr = nil
	_, err = svc.Purchase(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, composer.calls)
}

func TestService_Purchase_PublishFailureNotFatal(t *testing.T) {
	composer := &fakeComposer{composed: testComposed()}
	signer := &fakeSigner{connected: true, address: "1ExampleAddress"}
	pub := &recordingPublisher{err: assert.AnError}
	svc := NewService(zap.NewNop(), composer, signer, nil, pub)

	receipt, err := svc.Purchase(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, "txid123", receipt.TransactionID)
}
