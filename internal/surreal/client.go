// Package surreal is a minimal SurrealDB client speaking the server's HTTP
// JSON-RPC endpoint. The rest of the toolkit treats it as an opaque
// collaborator: connect, sign in, switch namespace/database, execute a query
// with bindings, and decode the structured result.
package surreal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Querier is the execution surface the schema-lifecycle and test subsystems
// depend on. *Client implements it; tests substitute fakes.
type Querier interface {
	Query(ctx context.Context, sql string, vars map[string]any) (Response, error)
}

// Client is a single authenticated SurrealDB session. Each actor in a test
// run holds its own Client so tokens and namespace selection never bleed
// between identities.
type Client struct {
	rpcURL string
	http   *http.Client

	mu        sync.Mutex
	token     string
	namespace string
	database  string

	nextID atomic.Int64
}

const defaultRequestTimeout = 30 * time.Second

// Connect builds a client for the given endpoint. ws:// and wss:// endpoints
// are accepted and rewritten to their HTTP equivalents; a trailing /rpc
// suffix is tolerated.
func Connect(ctx context.Context, endpoint string) (*Client, error) {
	base := NormalizeEndpoint(endpoint)
	if base == "" {
		return nil, fmt.Errorf("empty database endpoint")
	}

	c := &Client{
		rpcURL: strings.TrimSuffix(base, "/") + "/rpc",
		http:   &http.Client{Timeout: defaultRequestTimeout},
	}
	return c, ctx.Err()
}

// NormalizeEndpoint maps websocket schemes onto HTTP and strips an /rpc path.
func NormalizeEndpoint(endpoint string) string {
	e := strings.TrimSpace(endpoint)
	if rest, ok := strings.CutPrefix(e, "ws://"); ok {
		e = "http://" + rest
	} else if rest, ok := strings.CutPrefix(e, "wss://"); ok {
		e = "https://" + rest
	}
	return strings.TrimSuffix(strings.TrimSuffix(e, "/rpc"), "/")
}

type rpcRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type rpcFault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcFault       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		ID:     c.nextID.Add(1),
		Method: method,
		Params: params,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.namespace != "" {
		req.Header.Set("Surreal-NS", c.namespace)
	}
	if c.database != "" {
		req.Header.Set("Surreal-DB", c.database)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s against %s: %w", method, c.rpcURL, err)
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding %s response (http %d): %w", method, resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return nil, &Error{Code: decoded.Error.Code, Message: decoded.Error.Message}
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{Code: resp.StatusCode, Message: fmt.Sprintf("http status %d", resp.StatusCode)}
	}
	return decoded.Result, nil
}

func (c *Client) signin(ctx context.Context, label string, creds map[string]any) (string, error) {
	raw, err := c.call(ctx, "signin", []any{creds})
	if err != nil {
		return "", fmt.Errorf("%s signin: %w", label, err)
	}

	var token string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &token); err != nil {
			// Older servers return {"token": "..."}.
			var wrapped struct {
				Token string `json:"token"`
			}
			if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
				return "", fmt.Errorf("%s signin: decoding token: %w", label, err)
			}
			token = wrapped.Token
		}
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return token, nil
}

// SignInRoot authenticates with root-level credentials and returns the
// bearer token issued by the server.
func (c *Client) SignInRoot(ctx context.Context, user, pass string) (string, error) {
	return c.signin(ctx, "root", map[string]any{"user": user, "pass": pass})
}

// SignInNamespace authenticates a namespace-scoped user.
func (c *Client) SignInNamespace(ctx context.Context, namespace, user, pass string) (string, error) {
	return c.signin(ctx, "namespace", map[string]any{
		"ns":   namespace,
		"user": user,
		"pass": pass,
	})
}

// SignInDatabase authenticates a database-scoped user.
func (c *Client) SignInDatabase(ctx context.Context, namespace, database, user, pass string) (string, error) {
	return c.signin(ctx, "database", map[string]any{
		"ns":   namespace,
		"db":   database,
		"user": user,
		"pass": pass,
	})
}

// SignInRecord authenticates through a record access method. params carries
// the access method's signin variables and may be empty.
func (c *Client) SignInRecord(ctx context.Context, namespace, database, access string, params map[string]any) (string, error) {
	creds := map[string]any{
		"ns": namespace,
		"db": database,
		"ac": access,
	}
	for k, v := range params {
		creds[k] = v
	}
	return c.signin(ctx, "record", creds)
}

// Authenticate adopts an externally supplied bearer token.
func (c *Client) Authenticate(ctx context.Context, token string) error {
	if _, err := c.call(ctx, "authenticate", []any{token}); err != nil {
		return fmt.Errorf("token authentication: %w", err)
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return nil
}

// Use switches the session to the given namespace and database.
func (c *Client) Use(ctx context.Context, namespace, database string) error {
	if _, err := c.call(ctx, "use", []any{namespace, database}); err != nil {
		return fmt.Errorf("use %s/%s: %w", namespace, database, err)
	}
	c.mu.Lock()
	c.namespace = namespace
	c.database = database
	c.mu.Unlock()
	return nil
}

// Token returns the bearer token from the most recent successful signin or
// Authenticate call, empty when the session is unauthenticated.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Query executes one or more statements and returns the per-statement
// results. Statement-level failures are carried in the Response, not the
// error; call Response.Check to surface them.
func (c *Client) Query(ctx context.Context, sql string, vars map[string]any) (Response, error) {
	params := []any{sql}
	if len(vars) > 0 {
		params = append(params, vars)
	}

	raw, err := c.call(ctx, "query", params)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding query result: %w", err)
	}
	return resp, nil
}
