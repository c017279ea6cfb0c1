package eth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// Compile-time interface check.
var _ RPCClient = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Ethereum JSON-RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// BlockNumber returns the latest block number.
func (c *HTTPClient) BlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.call(ctx, "eth_blockNumber", nil, &result); err != nil {
		return 0, err
	}
	return hexUint64(result)
}

// BlockTimestamp returns the Unix timestamp of a block.
func (c *HTTPClient) BlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error) {
	params := []interface{}{hexutil.EncodeUint64(blockNumber), false}

	var result *getBlockResult
	if err := c.call(ctx, "eth_getBlockByNumber", params, &result); err != nil {
		return 0, err
	}
	if result == nil {
		return 0, fmt.Errorf("block %d not found", blockNumber)
	}

	ts, err := hexUint64(result.Timestamp)
	if err != nil {
		return 0, err
	}
	return int64(ts), nil
}

// getBlockResult is the subset of eth_getBlockByNumber the client reads.
type getBlockResult struct {
	Number    string `json:"number"`
	Timestamp string `json:"timestamp"`
}

// GetLogs returns the logs matching the filter, in node order.
func (c *HTTPClient) GetLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	filterObj := map[string]interface{}{
		"fromBlock": hexutil.EncodeUint64(filter.FromBlock),
		"toBlock":   hexutil.EncodeUint64(filter.ToBlock),
	}
	if len(filter.Addresses) > 0 {
		addrs := make([]string, len(filter.Addresses))
		for i, a := range filter.Addresses {
			addrs[i] = a.Hex()
		}
		filterObj["address"] = addrs
	}
	if len(filter.Topics) > 0 {
		alternatives := make([]string, len(filter.Topics))
		for i, t := range filter.Topics {
			alternatives[i] = t.Hex()
		}
		filterObj["topics"] = []interface{}{alternatives}
	}

	var result []getLogsResult
	if err := c.call(ctx, "eth_getLogs", []interface{}{filterObj}, &result); err != nil {
		return nil, err
	}

	logs := make([]Log, 0, len(result))
	for _, r := range result {
		l, err := r.toLog()
		if err != nil {
			return nil, fmt.Errorf("decode log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// getLogsResult is the raw RPC response item for eth_getLogs.
type getLogsResult struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
	LogIndex    string   `json:"logIndex"`
	Removed     bool     `json:"removed"`
}

func (r *getLogsResult) toLog() (Log, error) {
	blockNumber, err := hexUint64(r.BlockNumber)
	if err != nil {
		return Log{}, err
	}
	logIndex, err := hexUint64(r.LogIndex)
	if err != nil {
		return Log{}, err
	}
	data, err := hexBytes(r.Data)
	if err != nil {
		return Log{}, err
	}

	topics := make([]common.Hash, len(r.Topics))
	for i, t := range r.Topics {
		topics[i] = common.HexToHash(t)
	}

	return Log{
		Address:     common.HexToAddress(r.Address),
		Topics:      topics,
		Data:        data,
		BlockNumber: blockNumber,
		TxHash:      common.HexToHash(r.TxHash),
		LogIndex:    int(logIndex),
		Removed:     r.Removed,
	}, nil
}

// TransactionReceipt returns the receipt of a mined transaction.
// Returns nil if the transaction is not found.
func (c *HTTPClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	var result *getReceiptResult
	if err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{txHash.Hex()}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	gasUsed, err := hexBig(result.GasUsed)
	if err != nil {
		return nil, err
	}
	gasPrice, err := hexBig(result.EffectiveGasPrice)
	if err != nil {
		return nil, err
	}
	status, err := hexUint64(result.Status)
	if err != nil {
		return nil, err
	}

	return &Receipt{
		TxHash:            txHash,
		GasUsed:           gasUsed,
		EffectiveGasPrice: gasPrice,
		Status:            status,
	}, nil
}

// getReceiptResult is the raw RPC response for eth_getTransactionReceipt.
type getReceiptResult struct {
	GasUsed           string `json:"gasUsed"`
	EffectiveGasPrice string `json:"effectiveGasPrice"`
	Status            string `json:"status"`
}
