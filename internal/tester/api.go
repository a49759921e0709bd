package tester

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type apiResult struct {
	Status     int
	Assertions []AssertionReport
}

// executeAPICase sends the request with the actor's headers overlaid by the
// case's own, then evaluates status, header and body assertions. Body
// assertions against a non-JSON response are a case error.
func executeAPICase(ctx context.Context, baseURL string, spec *APIRequestCase, actorHeaders map[string]string, defaultTimeoutMS int) (apiResult, error) {
	path := strings.TrimSpace(spec.Path)
	if path == "" {
		return apiResult{}, fmt.Errorf("api_request case path cannot be empty")
	}
	url := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(path, "/") {
		url += "/"
	}
	url += path

	var body *bytes.Reader
	if spec.Body != nil {
		raw, err := json.Marshal(spec.Body)
		if err != nil {
			return apiResult{}, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(spec.Method), url, body)
	if err != nil {
		return apiResult{}, fmt.Errorf("building request for %s: %w", url, err)
	}
	for k, v := range actorHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}
	if spec.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	timeoutMS := spec.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = defaultTimeoutMS
	}
	client := &http.Client{Timeout: time.Duration(timeoutMS) * time.Millisecond}

	resp, err := client.Do(req)
	if err != nil {
		return apiResult{}, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	bodyText, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResult{}, fmt.Errorf("reading response body: %w", err)
	}

	assertions := []AssertionReport{{
		Name:    "status",
		Passed:  resp.StatusCode == spec.ExpectedStatus,
		Message: fmt.Sprintf("expected status %d, got %d", spec.ExpectedStatus, resp.StatusCode),
	}}

	for i, a := range spec.HeaderAssertions {
		report, err := assertHeaderValue(resp.Header, a, i)
		if err != nil {
			return apiResult{}, err
		}
		assertions = append(assertions, report)
	}

	if len(spec.BodyAssertions) > 0 {
		var parsed any
		if err := json.Unmarshal(bodyText, &parsed); err != nil {
			return apiResult{}, fmt.Errorf("body assertions requested but response body is not valid JSON")
		}
		for i, a := range spec.BodyAssertions {
			report, err := assertJSONValue(parsed, a, i)
			if err != nil {
				return apiResult{}, err
			}
			assertions = append(assertions, report)
		}
	}

	return apiResult{Status: resp.StatusCode, Assertions: assertions}, nil
}
