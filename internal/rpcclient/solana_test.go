package rpcclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler func(method string) (any, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, rpcErr := handler(req.Method)
		resp := struct {
			JSONRPC string    `json:"jsonrpc"`
			ID      int       `json:"id"`
			Result  any       `json:"result,omitempty"`
			Error   *rpcError `json:"error,omitempty"`
		}{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rpcErr}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestSubmitReturnsSignature(t *testing.T) {
	srv := newTestServer(t, func(method string) (any, *rpcError) {
		require.Equal(t, "sendTransaction", method)
		return "5sigabc", nil
	})
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL})
	require.NoError(t, err)
	sig, err := client.Submit(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "5sigabc", sig)
}

func TestConfirmFailsWhenTransactionErroredOnChain(t *testing.T) {
	srv := newTestServer(t, func(method string) (any, *rpcError) {
		return map[string]any{
			"value": []map[string]any{
				{"confirmationStatus": "finalized", "err": map[string]any{"InstructionError": []any{0, "Custom"}}},
			},
		}, nil
	})
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL})
	require.NoError(t, err)
	_, _, err = client.Confirm(context.Background(), "5sigabc")
	assert.Error(t, err)
}

func TestConfirmSucceedsWhenSignatureFound(t *testing.T) {
	srv := newTestServer(t, func(method string) (any, *rpcError) {
		return map[string]any{
			"value": []map[string]any{
				{"confirmationStatus": "finalized", "err": nil},
			},
		}, nil
	})
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL})
	require.NoError(t, err)
	_, _, err = client.Confirm(context.Background(), "5sigabc")
	assert.NoError(t, err)
}

func TestBalanceConvertsLamportsToSOL(t *testing.T) {
	srv := newTestServer(t, func(method string) (any, *rpcError) {
		return map[string]any{"value": 2_500_000_000}, nil
	})
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL})
	require.NoError(t, err)
	balance, err := client.Balance(context.Background(), "addr")
	require.NoError(t, err)
	assert.Equal(t, 2.5, balance)
}

func TestCallSurfacesRPCErrorMessage(t *testing.T) {
	srv := newTestServer(t, func(method string) (any, *rpcError) {
		return nil, &rpcError{Code: -32602, Message: "invalid params"}
	})
	defer srv.Close()

	client, err := New(Config{Endpoint: srv.URL})
	require.NoError(t, err)
	_, err = client.Submit(context.Background(), []byte{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
}

func TestNewRejectsEmptyEndpoint(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
