package wallet

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// esploraRateLimit caps outbound requests to a shared public indexer
// (Blockstream/mempool.space instances throttle hard past a few requests
// per second), the same rate.NewLimiter pattern the retrieval pack uses to
// bound calls into a shared backend.
const esploraRateLimit = 4

// UTXOInfo is a single unspent output an IndexerClient reports for a
// watched address.
type UTXOInfo struct {
	TxID     string
	Vout     uint32
	Value    int64
	PkScript []byte
	Height   int32 // 0 for unconfirmed
}

// IndexerClient is the chain-data backend a Wallet syncs against: given a
// set of addresses, report their UTXOs; given a raw transaction, broadcast
// it. No indexer client library appears anywhere in the retrieval pack
// (electrum/esplora/blockstream clients are absent), so this is a small
// interface a caller can satisfy with whatever block explorer or full-node
// RPC they have, with a stdlib-http Esplora/Blockstream-style default
// below for the common case.
type IndexerClient interface {
	FetchUTXOs(ctx context.Context, addresses []string) ([]UTXOInfo, error)
	BroadcastTx(ctx context.Context, rawTx []byte) (string, error)
	FetchHeight(ctx context.Context) (int32, error)
}

// EsploraClient is an IndexerClient backed by an Esplora/Blockstream-style
// REST API (the de facto standard served by esplora, mempool.space, and
// Blockstream's own explorer).
type EsploraClient struct {
	BaseURL string
	HTTP    *http.Client

	limiter *rate.Limiter
}

// NewEsploraClient returns an EsploraClient pointed at baseURL (e.g.
// "https://blockstream.info/api"), rate-limited to esploraRateLimit
// requests/second so a sync against a shared public indexer doesn't trip
// its throttling.
func NewEsploraClient(baseURL string) *EsploraClient {
	return &EsploraClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(esploraRateLimit), esploraRateLimit),
	}
}

// wait blocks until the rate limiter admits one more request, or ctx is
// done.
func (c *EsploraClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

type esploraUTXO struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Value  int64  `json:"value"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int32 `json:"block_height"`
	} `json:"status"`
}

// FetchUTXOs queries GET /address/{addr}/utxo for each address in turn.
// PkScript is left nil: Esplora's utxo endpoint doesn't return it, so
// callers must re-derive it from the descriptor index that produced the
// address, which Wallet.Sync does.
func (c *EsploraClient) FetchUTXOs(ctx context.Context, addresses []string) ([]UTXOInfo, error) {
	var out []UTXOInfo
	for _, addr := range addresses {
		if err := c.wait(ctx); err != nil {
			return nil, wrap(err)
		}

		url := fmt.Sprintf("%s/address/%s/utxo", c.BaseURL, addr)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, wrap(err)
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return nil, wrap(err)
		}

		var utxos []esploraUTXO
		err = json.NewDecoder(resp.Body).Decode(&utxos)
		resp.Body.Close()
		if err != nil {
			return nil, wrap(err)
		}

		for _, u := range utxos {
			height := int32(0)
			if u.Status.Confirmed {
				height = u.Status.BlockHeight
			}
			out = append(out, UTXOInfo{
				TxID:   u.TxID,
				Vout:   u.Vout,
				Value:  u.Value,
				Height: height,
			})
		}
	}
	return out, nil
}

// BroadcastTx posts the raw transaction hex to POST /tx and returns the
// resulting txid.
func (c *EsploraClient) BroadcastTx(ctx context.Context, rawTx []byte) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", wrap(err)
	}

	url := fmt.Sprintf("%s/tx", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(hex.EncodeToString(rawTx)))
	if err != nil {
		return "", wrap(err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", wrap(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrap(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("indexer: broadcast failed (%d): %s", resp.StatusCode, body)
	}
	return string(body), nil
}

// FetchHeight queries GET /blocks/tip/height.
func (c *EsploraClient) FetchHeight(ctx context.Context) (int32, error) {
	if err := c.wait(ctx); err != nil {
		return 0, wrap(err)
	}

	url := fmt.Sprintf("%s/blocks/tip/height", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, wrap(err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, wrap(err)
	}
	defer resp.Body.Close()

	var height int32
	if _, err := fmt.Fscanf(resp.Body, "%d", &height); err != nil {
		return 0, wrap(err)
	}
	return height, nil
}
