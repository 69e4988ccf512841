package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"school-planner/domain"
)

// SyncError reports a failed remote load or save. It is never fatal: the
// session keeps serving its in-memory document and the offline cache remains
// the durability fallback.
type SyncError struct {
	Op  string // "load" or "save"
	Err error
}

func (e *SyncError) Error() string { return "sync " + e.Op + ": " + e.Err.Error() }

func (e *SyncError) Unwrap() error { return e.Err }

// Remote is the persistence collaborator behind the session: one GET and one
// PUT of the full document, last write wins.
type Remote interface {
	Fetch(ctx context.Context) (domain.Document, error)
	Store(ctx context.Context, doc domain.Document) error
}

const maxStateBytes = 2 << 20

// HTTPRemote talks to the planner state API. The API key, when set, is sent
// as the X-API-Key shared secret; an unauthorized response is just another
// sync failure.
type HTTPRemote struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPRemote(baseURL, apiKey string) *HTTPRemote {
	return &HTTPRemote{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPRemote) Fetch(ctx context.Context) (domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/state", nil)
	if err != nil {
		return domain.Document{}, &SyncError{Op: "load", Err: err}
	}
	r.setHeaders(req)
	res, err := r.client.Do(req)
	if err != nil {
		return domain.Document{}, &SyncError{Op: "load", Err: err}
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, maxStateBytes))
	if err != nil {
		return domain.Document{}, &SyncError{Op: "load", Err: err}
	}
	if res.StatusCode != http.StatusOK {
		return domain.Document{}, &SyncError{Op: "load", Err: fmt.Errorf("http %d", res.StatusCode)}
	}
	doc, err := domain.ParseDocument(body)
	if err != nil {
		return domain.Document{}, &SyncError{Op: "load", Err: err}
	}
	return doc, nil
}

type storeResponse struct {
	OK        bool   `json:"ok"`
	UpdatedAt string `json:"updated_at"`
	Error     string `json:"error"`
}

func (r *HTTPRemote) Store(ctx context.Context, doc domain.Document) error {
	payload, err := sonic.Marshal(domain.Normalize(doc))
	if err != nil {
		return &SyncError{Op: "save", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.baseURL+"/api/state", bytes.NewReader(payload))
	if err != nil {
		return &SyncError{Op: "save", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	r.setHeaders(req)
	res, err := r.client.Do(req)
	if err != nil {
		return &SyncError{Op: "save", Err: err}
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxStateBytes))
	if res.StatusCode != http.StatusOK {
		return &SyncError{Op: "save", Err: fmt.Errorf("http %d", res.StatusCode)}
	}
	var out storeResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		return &SyncError{Op: "save", Err: err}
	}
	if !out.OK {
		msg := out.Error
		if msg == "" {
			msg = "server rejected the write"
		}
		return &SyncError{Op: "save", Err: fmt.Errorf("%s", msg)}
	}
	return nil
}

func (r *HTTPRemote) setHeaders(req *http.Request) {
	if r.apiKey != "" {
		req.Header.Set("X-API-Key", r.apiKey)
	}
}
