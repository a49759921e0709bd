package surreal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers the JSON-RPC methods the client issues and records the
// last request for inspection.
func fakeServer(t *testing.T, handler func(method string, params []json.RawMessage) (any, *rpcFault)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rpc", r.URL.Path)

		var req struct {
			ID     int64             `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, fault := handler(req.Method, req.Params)
		resp := map[string]any{"id": req.ID}
		if fault != nil {
			resp["error"] = fault
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "http://localhost:8000", NormalizeEndpoint("ws://localhost:8000/rpc"))
	assert.Equal(t, "https://db.example.com", NormalizeEndpoint("wss://db.example.com"))
	assert.Equal(t, "http://localhost:8000", NormalizeEndpoint("http://localhost:8000/"))
}

func TestSignInRootStoresToken(t *testing.T) {
	srv := fakeServer(t, func(method string, params []json.RawMessage) (any, *rpcFault) {
		require.Equal(t, "signin", method)
		return "tok-123", nil
	})
	defer srv.Close()

	c, err := Connect(context.Background(), srv.URL)
	require.NoError(t, err)

	token, err := c.SignInRoot(context.Background(), "root", "root")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.Equal(t, "tok-123", c.Token())
}

func TestQueryDecodesStatements(t *testing.T) {
	srv := fakeServer(t, func(method string, params []json.RawMessage) (any, *rpcFault) {
		require.Equal(t, "query", method)
		return []map[string]any{
			{"status": "OK", "time": "12µs", "result": []any{map[string]any{"id": "person:1"}}},
		}, nil
	})
	defer srv.Close()

	c, err := Connect(context.Background(), srv.URL)
	require.NoError(t, err)

	resp, err := c.Query(context.Background(), "SELECT * FROM person;", nil)
	require.NoError(t, err)
	require.NoError(t, resp.Check())

	value, err := resp.First()
	require.NoError(t, err)
	rows, ok := value.([]any)
	require.True(t, ok)
	assert.Len(t, rows, 1)
}

func TestResponseCheckSurfacesStatementError(t *testing.T) {
	resp := Response{
		{Status: "OK", Result: json.RawMessage(`[]`)},
		{Status: "ERR", Result: json.RawMessage(`"there was a problem with the database: permission denied"`)},
	}
	err := resp.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestRPCFaultBecomesError(t *testing.T) {
	srv := fakeServer(t, func(method string, params []json.RawMessage) (any, *rpcFault) {
		return nil, &rpcFault{Code: -32000, Message: "there was a problem with authentication"}
	})
	defer srv.Close()

	c, err := Connect(context.Background(), srv.URL)
	require.NoError(t, err)

	_, err = c.SignInRoot(context.Background(), "root", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication")
}

type scriptedQuerier struct {
	err  error
	resp Response
}

func (s scriptedQuerier) Query(ctx context.Context, sql string, vars map[string]any) (Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func TestSupportsRemoveAPI(t *testing.T) {
	supported, err := SupportsRemoveAPI(context.Background(), scriptedQuerier{
		resp: Response{{Status: "ERR", Result: json.RawMessage(`"Parse error: unexpected token"`)}},
	})
	require.NoError(t, err)
	assert.False(t, supported)

	supported, err = SupportsRemoveAPI(context.Background(), scriptedQuerier{
		resp: Response{{Status: "ERR", Result: json.RawMessage(`"The API 'x' does not exist"`)}},
	})
	require.NoError(t, err)
	assert.True(t, supported)

	supported, err = SupportsRemoveAPI(context.Background(), scriptedQuerier{
		resp: Response{{Status: "OK"}},
	})
	require.NoError(t, err)
	assert.True(t, supported)
}
