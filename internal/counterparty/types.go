package counterparty

// result envelope used by every v2 endpoint.
type envelope[T any] struct {
	Result T      `json:"result"`
	Error  string `json:"error,omitempty"`
}

// composeOrderResult is the verbose compose/order response body.
type composeOrderResult struct {
	RawTransaction string        `json:"rawtransaction"`
	PSBT           string        `json:"psbt"`
	BTCIn          int64         `json:"btc_in"`
	BTCOut         int64         `json:"btc_out"`
	BTCChange      int64         `json:"btc_change"`
	BTCFee         int64         `json:"btc_fee"`
	Data           string        `json:"data"`
	Params         composeParams `json:"params"`
}

type composeParams struct {
	Source       string `json:"source"`
	GiveAsset    string `json:"give_asset"`
	GiveQuantity int64  `json:"give_quantity"`
	GetAsset     string `json:"get_asset"`
	GetQuantity  int64  `json:"get_quantity"`
	Expiration   int    `json:"expiration"`
	FeeRequired  int64  `json:"fee_required"`
}

// Subasset is a child asset under the XCPFOLIO namespace.
type Subasset struct {
	Asset         string `json:"asset"`
	AssetLongname string `json:"asset_longname"`
	Owner         string `json:"owner"`
	Description   string `json:"description,omitempty"`
	Divisible     bool   `json:"divisible"`
	Locked        bool   `json:"locked"`
	Supply        int64  `json:"supply"`
	Confirmed     bool   `json:"confirmed,omitempty"`
}

// Asset is detailed asset information.
type Asset struct {
	Asset              string `json:"asset"`
	AssetID            string `json:"asset_id"`
	AssetLongname      string `json:"asset_longname,omitempty"`
	Issuer             string `json:"issuer"`
	Owner              string `json:"owner"`
	Divisible          bool   `json:"divisible"`
	Locked             bool   `json:"locked"`
	Supply             int64  `json:"supply"`
	Description        string `json:"description"`
	FirstIssuanceBlock int64  `json:"first_issuance_block_index"`
	LastIssuanceBlock  int64  `json:"last_issuance_block_index"`
	FirstIssuanceTime  int64  `json:"first_issuance_block_time"`
	LastIssuanceTime   int64  `json:"last_issuance_block_time"`
	Confirmed          bool   `json:"confirmed"`
	SupplyNormalized   string `json:"supply_normalized"`
}

// DexOrder is an open or historical order on the Counterparty DEX.
type DexOrder struct {
	TxHash        string  `json:"tx_hash"`
	Source        string  `json:"source"`
	GiveAsset     string  `json:"give_asset"`
	GiveQuantity  int64   `json:"give_quantity"`
	GiveRemaining int64   `json:"give_remaining"`
	GetAsset      string  `json:"get_asset"`
	GetQuantity   int64   `json:"get_quantity"`
	GetRemaining  int64   `json:"get_remaining"`
	Status        string  `json:"status"`
	GivePrice     float64 `json:"give_price"`
	ExpireIndex   int64   `json:"expire_index,omitempty"`
}

// OrderMatch records a filled DEX order pair.
type OrderMatch struct {
	Tx0Hash          string `json:"tx0_hash"`
	Tx1Hash          string `json:"tx1_hash"`
	Tx0Address       string `json:"tx0_address"`
	Tx1Address       string `json:"tx1_address"`
	ForwardAsset     string `json:"forward_asset"`
	ForwardQuantity  int64  `json:"forward_quantity"`
	BackwardAsset    string `json:"backward_asset"`
	BackwardQuantity int64  `json:"backward_quantity"`
	Status           string `json:"status"`
	BlockIndex       int64  `json:"block_index,omitempty"`
	Confirmed        bool   `json:"confirmed,omitempty"`
}

// Issuance is one issuance event in an asset's history.
type Issuance struct {
	TxIndex     int64  `json:"tx_index"`
	TxHash      string `json:"tx_hash"`
	BlockIndex  int64  `json:"block_index"`
	Asset       string `json:"asset"`
	Quantity    int64  `json:"quantity"`
	Divisible   bool   `json:"divisible"`
	Source      string `json:"source"`
	Issuer      string `json:"issuer"`
	Transfer    bool   `json:"transfer"`
	Description string `json:"description"`
	FeePaid     int64  `json:"fee_paid"`
	Status      string `json:"status"`
	Locked      bool   `json:"locked"`
	Confirmed   bool   `json:"confirmed"`
	BlockTime   int64  `json:"block_time"`
}
