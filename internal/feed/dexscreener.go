package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bsc-token-sniper/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.dexscreener.com"
	DefaultTimeout = 15 * time.Second
)

// DexScreenerClient implements MarketFeed against the DexScreener HTTP API.
type DexScreenerClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option configures DexScreenerClient.
type Option func(*DexScreenerClient)

// WithBaseURL overrides the API base URL (tests point this at httptest).
func WithBaseURL(u string) Option {
	return func(c *DexScreenerClient) {
		c.baseURL = u
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *DexScreenerClient) {
		c.client.Timeout = d
	}
}

// WithAPIKey sets an API key sent as X-API-KEY on every request.
func WithAPIKey(key string) Option {
	return func(c *DexScreenerClient) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *DexScreenerClient) {
		c.client = client
	}
}

// NewDexScreenerClient creates a new DexScreener feed client.
func NewDexScreenerClient(opts ...Option) *DexScreenerClient {
	c := &DexScreenerClient{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ MarketFeed = (*DexScreenerClient)(nil)

// Wire types. Prices arrive string-typed; volume and liquidity are nested
// objects keyed by window.
type pairsResponse struct {
	Pairs []wirePair `json:"pairs"`
}

type wirePair struct {
	ChainID       string       `json:"chainId"`
	DexID         string       `json:"dexId"`
	PairAddress   string       `json:"pairAddress"`
	BaseToken     wireToken    `json:"baseToken"`
	QuoteToken    wireToken    `json:"quoteToken"`
	PriceNative   string       `json:"priceNative"`
	PriceUsd      string       `json:"priceUsd"`
	Volume        wireWindows  `json:"volume"`
	Liquidity     wireLiq      `json:"liquidity"`
	Fdv           float64      `json:"fdv"`
	PairCreatedAt int64        `json:"pairCreatedAt"`
}

type wireToken struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

type wireWindows struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

type wireLiq struct {
	Usd float64 `json:"usd"`
}

type wireProfile struct {
	ChainID      string `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
}

// Search returns pair snapshots matching a free-text query.
func (c *DexScreenerClient) Search(ctx context.Context, query string) ([]*domain.PairSnapshot, error) {
	u := fmt.Sprintf("%s/latest/dex/search?q=%s", c.baseURL, url.QueryEscape(query))

	var resp pairsResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	out := make([]*domain.PairSnapshot, 0, len(resp.Pairs))
	for i := range resp.Pairs {
		out = append(out, toSnapshot(&resp.Pairs[i]))
	}
	return out, nil
}

// GetPair returns the current snapshot for one pair, or nil when unknown.
func (c *DexScreenerClient) GetPair(ctx context.Context, chainID, pairAddress string) (*domain.PairSnapshot, error) {
	u := fmt.Sprintf("%s/latest/dex/pairs/%s/%s", c.baseURL, url.PathEscape(chainID), url.PathEscape(pairAddress))

	var resp pairsResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if len(resp.Pairs) == 0 {
		return nil, nil
	}
	return toSnapshot(&resp.Pairs[0]), nil
}

// TokenProfiles returns the latest token profile listings.
func (c *DexScreenerClient) TokenProfiles(ctx context.Context) ([]*domain.TokenProfile, error) {
	u := c.baseURL + "/token-profiles/latest/v1"

	var resp []wireProfile
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	out := make([]*domain.TokenProfile, 0, len(resp))
	for _, p := range resp {
		out = append(out, &domain.TokenProfile{
			TokenAddress: p.TokenAddress,
			ChainID:      p.ChainID,
		})
	}
	return out, nil
}

// getJSON performs a GET and decodes the JSON body into result.
func (c *DexScreenerClient) getJSON(ctx context.Context, u string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// toSnapshot converts a wire pair into the domain snapshot, parsing
// string-typed prices. Unparseable prices become 0 and are left to the
// filter to reject.
func toSnapshot(p *wirePair) *domain.PairSnapshot {
	return &domain.PairSnapshot{
		PairAddress: p.PairAddress,
		ChainID:     p.ChainID,
		DexID:       p.DexID,
		BaseToken: domain.TokenRef{
			Address: p.BaseToken.Address,
			Symbol:  p.BaseToken.Symbol,
		},
		QuoteToken: domain.TokenRef{
			Address: p.QuoteToken.Address,
			Symbol:  p.QuoteToken.Symbol,
		},
		PriceUsd:      parseFloat(p.PriceUsd),
		PriceNative:   parseFloat(p.PriceNative),
		MarketCapUsd:  p.Fdv,
		Volume24hUsd:  p.Volume.H24,
		LiquidityUsd:  p.Liquidity.Usd,
		PairCreatedAt: p.PairCreatedAt,
	}
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
