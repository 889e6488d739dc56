// Package rpcclient implements the TransactionEngine's RPCClient contract
// against a Solana-compatible JSON-RPC endpoint. Submitted transactions
// and RPC responses are treated as opaque bytes — no stability guarantee
// beyond "accepted by the configured endpoint" — so this client decodes
// only the envelope fields it needs and passes through everything else
// untouched.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultQueryTimeout = 10 * time.Second

// Client is a minimal JSON-RPC client for a Solana-compatible endpoint,
// satisfying internal/txengine.RPCClient.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// Config configures a Client.
type Config struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

// New constructs a Client. An empty Endpoint is a configuration error the
// caller must surface at startup as a fatal configuration error.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("rpcclient: endpoint is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultQueryTimeout}
	}
	return &Client{endpoint: cfg.Endpoint, apiKey: cfg.APIKey, httpClient: httpClient}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	reqBody, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create rpc request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do rpc request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read rpc response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc call %s failed with status %d: %s", method, resp.StatusCode, string(body))
	}

	var envelope rpcResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("unmarshal rpc envelope: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc call %s failed: %s", method, envelope.Error.Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

// Submit submits a pre-signed transaction blob and returns its signature.
func (c *Client) Submit(ctx context.Context, signedTx []byte) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(signedTx)
	var signature string
	err := c.call(ctx, "sendTransaction", []any{encoded, map[string]any{"encoding": "base64"}}, &signature)
	if err != nil {
		return "", err
	}
	return signature, nil
}

type signatureStatus struct {
	ConfirmationStatus string `json:"confirmationStatus"`
	Err                any    `json:"err"`
}

type signatureStatusesResult struct {
	Value []*signatureStatus `json:"value"`
}

// Confirm queries the endpoint once for a signature's status and reports
// an error if the signature is unknown or failed on-chain. It does not
// decode transaction metadata, so it always reports a zero fee and no
// actual output.
func (c *Client) Confirm(ctx context.Context, signature string) (fee float64, actualOutput *float64, err error) {
	var result signatureStatusesResult
	if callErr := c.call(ctx, "getSignatureStatuses", []any{[]string{signature}}, &result); callErr != nil {
		return 0, nil, callErr
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return 0, nil, fmt.Errorf("signature %s not found", signature)
	}
	if result.Value[0].Err != nil {
		return 0, nil, fmt.Errorf("transaction %s failed on-chain", signature)
	}
	// Fee/output reconciliation happens on a later balance read; the
	// immediate confirmation only establishes finality.
	return 0, nil, nil
}

// Balance fetches the lamport balance for address, converted to whole
// SOL.
func (c *Client) Balance(ctx context.Context, address string) (float64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{address}, &result); err != nil {
		return 0, err
	}
	const lamportsPerSOL = 1_000_000_000
	return float64(result.Value) / lamportsPerSOL, nil
}

// Ping performs a lightweight startup reachability probe.
func (c *Client) Ping(ctx context.Context) error {
	var out string
	return c.call(ctx, "getHealth", nil, &out)
}
