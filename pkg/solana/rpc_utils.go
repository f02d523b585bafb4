package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

var (
	rpcCheckClient *http.Client
	clientOnce     sync.Once
)

func getRPCClient() *http.Client {
	clientOnce.Do(func() {
		rpcCheckClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	})
	return rpcCheckClient
}

type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result interface{}      `json:"result"`
	Error  *json.RawMessage `json:"error"`
}

// RPCCheckResult is the getHealth outcome of one endpoint
type RPCCheckResult struct {
	URL     string        `json:"url"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

func checkRPC(ctx context.Context, url string, timeout time.Duration) RPCCheckResult {
	start := time.Now()
	fail := func(err error) RPCCheckResult {
		return RPCCheckResult{URL: url, Latency: time.Since(start), Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, _ := json.Marshal(rpcRequest{Jsonrpc: "2.0", ID: 1, Method: "getHealth", Params: []interface{}{}})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := getRPCClient().Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("status code: %d", resp.StatusCode))
	}

	var result rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fail(err)
	}
	if result.Error != nil {
		return fail(fmt.Errorf("rpc error: %s", string(*result.Error)))
	}
	return RPCCheckResult{URL: url, OK: true, Latency: time.Since(start)}
}

// CheckRPCList calls getHealth on every endpoint concurrently. Results keep
// the order of urls.
func CheckRPCList(ctx context.Context, urls []string, timeout time.Duration) []RPCCheckResult {
	results := make([]RPCCheckResult, len(urls))
	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			results[i] = checkRPC(ctx, url, timeout)
		}(i, url)
	}
	wg.Wait()
	return results
}

// AllHealthy reports whether every result is OK.
func AllHealthy(results []RPCCheckResult) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}
