package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// ErrNotFound is returned when the requested block does not exist.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the registry.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	// Reason classifies rejected submissions: malformed, expired,
	// signature, verifier or internal.
	Reason string `json:"reason"`
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("registry error %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("registry error %d: %s", e.StatusCode, e.Message)
}

// Star is the star data recorded in a block.
type Star struct {
	Dec   string `json:"dec"`
	RA    string `json:"ra"`
	Mag   string `json:"mag,omitempty"`
	Cen   string `json:"cen,omitempty"`
	Story string `json:"story"`
}

// OwnedStar is a star together with the wallet that claimed it.
type OwnedStar struct {
	Star  Star   `json:"star"`
	Owner string `json:"owner"`
}

// Block is a ledger block as returned by the registry. Star is set when the
// block carries a star claim.
type Block struct {
	Hash              string     `json:"hash"`
	Height            int        `json:"height"`
	Body              string     `json:"body"`
	Time              int64      `json:"time"`
	PreviousBlockHash string     `json:"previousBlockHash"`
	Star              *OwnedStar `json:"star,omitempty"`
}

// ValidationMessage is the message a wallet signs to claim a star.
type ValidationMessage struct {
	Address        string `json:"address"`
	Message        string `json:"message"`
	ValidityWindow int    `json:"validity_window"`
}

// SubmitStarRequest is the payload for SubmitStar.
type SubmitStarRequest struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Star      Star   `json:"star"`
}

// ValidationReport is the result of a chain integrity check.
type ValidationReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Overview summarises the ledger.
type Overview struct {
	ChainID string `json:"chain_id"`
	Height  int    `json:"height"`
	TipHash string `json:"tip_hash"`
}

// Client is the star registry SDK entry point.
type Client struct {
	registryBase string
	httpClient   *http.Client
	cache        *blockCache
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithCacheTTL enables in-memory caching of blocks fetched by hash.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		if ttl <= 0 {
			return fmt.Errorf("cache TTL must be positive, got %s", ttl)
		}
		c.cache = newBlockCache(ttl)
		return nil
	}
}

// New creates a new Client connected to registryBase.
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithCacheTTL(60*time.Second),
//	)
func New(registryBase string, opts ...Option) (*Client, error) {
	if _, err := url.Parse(registryBase); err != nil {
		return nil, fmt.Errorf("parse registry URL: %w", err)
	}
	c := &Client{
		registryBase: registryBase,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(registryBase string, opts ...Option) *Client {
	c, err := New(registryBase, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// RequestValidation asks the registry for an ownership message for address.
func (c *Client) RequestValidation(ctx context.Context, address string) (*ValidationMessage, error) {
	var out ValidationMessage
	if err := c.call(ctx, http.MethodPost, "/api/v1/requestValidation", map[string]string{"address": address}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitStar submits a signed star claim and returns the new block.
func (c *Client) SubmitStar(ctx context.Context, req SubmitStarRequest) (*Block, error) {
	var out Block
	if err := c.call(ctx, http.MethodPost, "/api/v1/submitstar", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BlockByHash fetches the block with the given hash. Sealed blocks never
// change, so results are served from the cache when one is configured.
func (c *Client) BlockByHash(ctx context.Context, hash string) (*Block, error) {
	if c.cache != nil {
		if b, ok := c.cache.get(hash); ok {
			return b, nil
		}
	}

	var out Block
	if err := c.call(ctx, http.MethodGet, "/api/v1/block/hash/"+url.PathEscape(hash), nil, &out); err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.set(hash, &out)
	}
	return &out, nil
}

// BlockByHeight fetches the block at height h.
func (c *Client) BlockByHeight(ctx context.Context, h int) (*Block, error) {
	var out Block
	if err := c.call(ctx, http.MethodGet, "/api/v1/block/height/"+strconv.Itoa(h), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StarsByOwner lists the stars claimed by address.
func (c *Client) StarsByOwner(ctx context.Context, address string) ([]OwnedStar, error) {
	var out []OwnedStar
	if err := c.call(ctx, http.MethodGet, "/api/v1/blocks/"+url.PathEscape(address), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate asks the registry to check the integrity of the whole chain.
func (c *Client) Validate(ctx context.Context) (*ValidationReport, error) {
	var out ValidationReport
	if err := c.call(ctx, http.MethodGet, "/api/v1/validate", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Overview returns the chain ID, height and tip hash.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	if err := c.call(ctx, http.MethodGet, "/api/v1/chain", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call sends reqBody as JSON and decodes the response into respBody.
func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.registryBase+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	data, err := c.do(req)
	if err != nil {
		return err
	}
	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(data, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(body)
		}
		return nil, apiErr
	}
	return body, nil
}

// --- simple in-memory block cache ---

type cacheEntry struct {
	block     *Block
	expiresAt time.Time
}

type blockCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

func newBlockCache(ttl time.Duration) *blockCache {
	return &blockCache{entries: make(map[string]*cacheEntry), ttl: ttl}
}

func (bc *blockCache) get(key string) (*Block, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	e, ok := bc.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.block, true
}

func (bc *blockCache) set(key string, b *Block) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.entries[key] = &cacheEntry{block: b, expiresAt: time.Now().Add(bc.ttl)}
}
