package near

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	siwn "github.com/near-everything/go-siwn"
)

// Default public RPC endpoints per network.
const (
	MainnetRPCURL = "https://rpc.mainnet.near.org"
	TestnetRPCURL = "https://rpc.testnet.near.org"
)

// RPCClient is a minimal NEAR JSON-RPC 2.0 client covering the query
// surface the auth flow needs: access key views and read-only contract
// calls. Requests share the caller's context deadline; there are no
// internal retries.
type RPCClient struct {
	client    *http.Client
	endpoints map[siwn.Network]string
	logger    siwn.Logger
}

// RPCOption configures the client.
type RPCOption func(*RPCClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) RPCOption {
	return func(c *RPCClient) {
		if client != nil {
			c.client = client
		}
	}
}

// WithEndpoint overrides the RPC URL for a network.
func WithEndpoint(network siwn.Network, url string) RPCOption {
	return func(c *RPCClient) {
		if url != "" {
			c.endpoints[network] = url
		}
	}
}

// WithRPCLogger sets the logger.
func WithRPCLogger(l siwn.Logger) RPCOption {
	return func(c *RPCClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewRPCClient creates a client pointed at the public endpoints.
func NewRPCClient(opts ...RPCOption) *RPCClient {
	c := &RPCClient{
		client: &http.Client{Timeout: 10 * time.Second},
		endpoints: map[siwn.Network]string{
			siwn.NetworkMainnet: MainnetRPCURL,
			siwn.NetworkTestnet: TestnetRPCURL,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *RPCClient) call(ctx context.Context, network siwn.Network, method string, params, out any) error {
	endpoint, ok := c.endpoints[network]
	if !ok {
		return errors.New(fmt.Sprintf("no RPC endpoint for network %q", network), errors.CategoryBadInput)
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "siwn",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode rpc request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "rpc request failed")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return errors.New(fmt.Sprintf("rpc returned status %d", res.StatusCode), errors.CategoryOperation)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to decode rpc response")
	}

	if envelope.Error != nil {
		return errors.Wrap(envelope.Error, errors.CategoryOperation, "rpc call failed")
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "failed to decode rpc result")
		}
	}

	return nil
}

// AccessKey describes an access key registered on an account.
type AccessKey struct {
	PublicKey  string
	FullAccess bool
}

type viewAccessKeyResult struct {
	Nonce      uint64          `json:"nonce"`
	Permission json.RawMessage `json:"permission"`
	Error      string          `json:"error"`
}

// ViewAccessKey looks up a public key on an account. Fails when the key is
// not registered on the account.
func (c *RPCClient) ViewAccessKey(ctx context.Context, network siwn.Network, accountID, publicKey string) (*AccessKey, error) {
	var result viewAccessKeyResult
	err := c.call(ctx, network, "query", map[string]any{
		"request_type": "view_access_key",
		"finality":     "final",
		"account_id":   accountID,
		"public_key":   publicKey,
	}, &result)
	if err != nil {
		return nil, err
	}

	if result.Error != "" {
		return nil, errors.New(result.Error, errors.CategoryNotFound)
	}

	// The permission field is the string "FullAccess" for full-access keys
	// and an object describing the contract restriction otherwise.
	return &AccessKey{
		PublicKey:  publicKey,
		FullAccess: bytes.Equal(bytes.TrimSpace(result.Permission), []byte(`"FullAccess"`)),
	}, nil
}

type callFunctionResult struct {
	Result []byte   `json:"result"`
	Logs   []string `json:"logs"`
	Error  string   `json:"error"`
}

// UnmarshalJSON handles the RPC encoding of the result payload, which is a
// JSON array of byte values rather than a base64 string.
func (r *callFunctionResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Result []int    `json:"result"`
		Logs   []string `json:"logs"`
		Error  string   `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Logs = raw.Logs
	r.Error = raw.Error
	r.Result = make([]byte, len(raw.Result))
	for i, b := range raw.Result {
		r.Result[i] = byte(b)
	}
	return nil
}

// CallFunction invokes a read-only contract method and returns the raw
// response bytes.
func (c *RPCClient) CallFunction(ctx context.Context, network siwn.Network, contractID, method string, args any) ([]byte, error) {
	encodedArgs, err := json.Marshal(args)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode contract args")
	}

	var result callFunctionResult
	err = c.call(ctx, network, "query", map[string]any{
		"request_type": "call_function",
		"finality":     "final",
		"account_id":   contractID,
		"method_name":  method,
		"args_base64":  base64.StdEncoding.EncodeToString(encodedArgs),
	}, &result)
	if err != nil {
		return nil, err
	}

	if result.Error != "" {
		return nil, errors.New(result.Error, errors.CategoryOperation)
	}

	return result.Result, nil
}
