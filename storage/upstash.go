package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// UpstashKV talks to an Upstash Redis database over its REST API, for
// deployments that cannot open a raw TCP connection.
type UpstashKV struct {
	baseURL string
	token   string
	http    *http.Client
}

func newUpstashKV() (*UpstashKV, error) {
	base := strings.TrimSpace(os.Getenv("UPSTASH_REDIS_REST_URL"))
	tok := strings.TrimSpace(os.Getenv("UPSTASH_REDIS_REST_TOKEN"))
	if base == "" || tok == "" {
		return nil, errors.New("missing UPSTASH_REDIS_REST_URL or TOKEN")
	}
	return NewUpstashKV(base, tok), nil
}

// NewUpstashKV builds a REST client for the given endpoint.
func NewUpstashKV(baseURL, token string) *UpstashKV {
	return &UpstashKV{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type upstashResp struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func (u *UpstashKV) do(ctx context.Context, method, path string, body []byte, contentType string) (upstashResp, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return upstashResp{}, err
	}
	req.Header.Set("Authorization", "Bearer "+u.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := u.http.Do(req)
	if err != nil {
		return upstashResp{}, err
	}
	defer res.Body.Close()

	b, _ := io.ReadAll(res.Body)
	var out upstashResp
	_ = json.Unmarshal(b, &out)

	if out.Error != "" {
		return out, fmt.Errorf("upstash error: %s", out.Error)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return out, fmt.Errorf("upstash http %d", res.StatusCode)
	}
	return out, nil
}

func (u *UpstashKV) GetString(ctx context.Context, key string) (string, bool, error) {
	out, err := u.do(ctx, http.MethodGet, "/get/"+escapeKey(key), nil, "")
	if err != nil {
		return "", false, err
	}
	if string(out.Result) == "null" || len(out.Result) == 0 {
		return "", false, nil
	}
	// GET responses wrap the value in a JSON string.
	var s string
	if err := json.Unmarshal(out.Result, &s); err != nil {
		return string(out.Result), true, nil
	}
	return s, true, nil
}

func (u *UpstashKV) SetBody(ctx context.Context, key string, value []byte) error {
	_, err := u.do(ctx, http.MethodPost, "/set/"+escapeKey(key), value, "text/plain; charset=utf-8")
	return err
}

func (u *UpstashKV) Ping(ctx context.Context) error {
	_, err := u.do(ctx, http.MethodGet, "/ping", nil, "")
	return err
}

func escapeKey(k string) string {
	repl := strings.NewReplacer(
		"%", "%25",
		" ", "%20",
		":", "%3A",
		"/", "%2F",
		"?", "%3F",
		"#", "%23",
	)
	return repl.Replace(k)
}
