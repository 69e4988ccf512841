package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/bytedance/sonic"

	"school-planner/domain"
)

type stubKV struct {
	getStringFn func(ctx context.Context, key string) (string, bool, error)
	setBodyFn   func(ctx context.Context, key string, value []byte) error
	pingFn      func(ctx context.Context) error
}

func (s *stubKV) GetString(ctx context.Context, key string) (string, bool, error) {
	if s.getStringFn == nil {
		return "", false, errors.New("unexpected GetString call")
	}
	return s.getStringFn(ctx, key)
}

func (s *stubKV) SetBody(ctx context.Context, key string, value []byte) error {
	if s.setBodyFn == nil {
		return errors.New("unexpected SetBody call")
	}
	return s.setBodyFn(ctx, key, value)
}

func (s *stubKV) Ping(ctx context.Context) error {
	if s.pingFn == nil {
		return errors.New("unexpected Ping call")
	}
	return s.pingFn(ctx)
}

func TestLoadRawMissingKeyServesDefaultDocument(t *testing.T) {
	store := NewStateStore(&stubKV{
		getStringFn: func(ctx context.Context, key string) (string, bool, error) {
			if key != "planner:state" {
				t.Fatalf("unexpected key %q", key)
			}
			return "", false, nil
		},
	}, "")

	raw, err := store.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	doc, err := domain.ParseDocument(raw)
	if err != nil {
		t.Fatalf("parse default: %v", err)
	}
	if doc.Version != domain.SchemaVersion || doc.Settings.SemesterName != "Semester" {
		t.Fatalf("unexpected default document: %#v", doc)
	}
}

func TestLoadRawServesStoredBlobAsIs(t *testing.T) {
	blob := `{"version":2,"tasks":[{"id":"t1","title":"stored"}]}`
	store := NewStateStore(&stubKV{
		getStringFn: func(ctx context.Context, key string) (string, bool, error) {
			return blob, true, nil
		},
	}, "")

	raw, err := store.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(raw) != blob {
		t.Fatalf("blob rewritten: %s", raw)
	}
}

func TestSaveDocumentNormalizesBeforeWrite(t *testing.T) {
	var written []byte
	store := NewStateStore(&stubKV{
		setBodyFn: func(ctx context.Context, key string, value []byte) error {
			written = value
			return nil
		},
	}, "custom:key")

	doc := domain.Document{Tasks: []domain.Task{{ID: "t1", Title: "x", Priority: "bogus"}}}
	updatedAt, err := store.SaveDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if updatedAt.IsZero() {
		t.Fatal("expected a write timestamp")
	}

	var stored domain.Document
	if err := sonic.Unmarshal(written, &stored); err != nil {
		t.Fatalf("decode written blob: %v", err)
	}
	if stored.Version != domain.SchemaVersion {
		t.Fatalf("version = %d, want %d", stored.Version, domain.SchemaVersion)
	}
	if stored.Tasks[0].Priority != domain.PriorityMedium {
		t.Fatalf("priority not normalized: %q", stored.Tasks[0].Priority)
	}
}

func TestSaveDocumentPropagatesBackendError(t *testing.T) {
	backendErr := errors.New("table throttled")
	store := NewStateStore(&stubKV{
		setBodyFn: func(ctx context.Context, key string, value []byte) error {
			return backendErr
		},
	}, "")

	if _, err := store.SaveDocument(context.Background(), domain.DefaultDocument()); !errors.Is(err, backendErr) {
		t.Fatalf("expected backend error, got %v", err)
	}
}
