package etherscan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultBaseURL is the Etherscan multichain API endpoint.
const DefaultBaseURL = "https://api.etherscan.io/v2/api"

var (
	// ErrNotFound is returned when the service has no verified interface for an address.
	ErrNotFound = errors.New("contract interface not found")
	// ErrRateLimited is returned when the API key is over its request budget.
	ErrRateLimited = errors.New("rate limited")
)

// Config configures the lookup client.
type Config struct {
	BaseURL string
	APIKey  string
	ChainID uint64
	Timeout time.Duration
}

// Client resolves contract interfaces through the Etherscan getabi action.
type Client struct {
	baseURL string
	apiKey  string
	chainID uint64
	http    *http.Client
}

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// NewClient builds a lookup client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("etherscan api key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		chainID: chainID,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// FetchInterface returns the raw ABI JSON published for address.
func (c *Client) FetchInterface(ctx context.Context, address common.Address) ([]byte, error) {
	query := url.Values{}
	query.Set("chainid", strconv.FormatUint(c.chainID, 10))
	query.Set("module", "contract")
	query.Set("action", "getabi")
	query.Set("address", address.Hex())
	query.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request getabi: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	var result string
	if err := json.Unmarshal(decoded.Result, &result); err != nil {
		return nil, fmt.Errorf("parse result: %w", err)
	}

	if decoded.Status != "1" {
		return nil, classify(result, decoded.Message)
	}
	if strings.TrimSpace(result) == "" {
		return nil, ErrNotFound
	}
	return []byte(result), nil
}

func classify(result, message string) error {
	lower := strings.ToLower(result)
	switch {
	case strings.Contains(lower, "not verified"):
		return ErrNotFound
	case strings.Contains(lower, "rate limit"):
		return ErrRateLimited
	default:
		return fmt.Errorf("etherscan %s: %s", message, result)
	}
}

// Retryable reports whether a FetchInterface error may succeed on another attempt.
func Retryable(err error) bool {
	return !errors.Is(err, ErrNotFound)
}
