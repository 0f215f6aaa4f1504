package models

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/planguard/internal/domain/model"
)

type mockLister struct {
	calls atomic.Int32
	list  openai.ModelsList
	err   error
}

func (m *mockLister) ListModels(_ context.Context) (openai.ModelsList, error) {
	m.calls.Add(1)
	return m.list, m.err
}

func TestRefresh_MergesRemoteAndStatic(t *testing.T) {
	c, _ := New(nil)
	lister := &mockLister{list: openai.ModelsList{Models: []openai.Model{
		{ID: "gpt-4o", OwnedBy: "openai"},
		{ID: "llama-3-8b", OwnedBy: "meta"},
		{ID: "claude-3-opus", OwnedBy: "someone-else"},
		{ID: ""},
	}}}
	static := []model.Model{model.New("claude-3-opus", "Claude 3 Opus", "anthropic", model.TierPaid)}

	s := NewSyncerWithClient(c, lister, SyncConfig{FreeModels: []string{"llama-3-8b"}, Static: static}, zap.NewNop())
	n, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 models, got %d", n)
	}

	if m, _ := c.Lookup("llama-3-8b"); !m.IsFree() {
		t.Error("llama-3-8b is listed as free")
	}
	if m, _ := c.Lookup("gpt-4o"); m.IsFree() || m.Provider() != "openai" {
		t.Errorf("unexpected gpt-4o entry: %+v", m)
	}
	if m, _ := c.Lookup("claude-3-opus"); m.Provider() != "anthropic" {
		t.Errorf("static entry must win, got provider %q", m.Provider())
	}
}

func TestRefresh_KeepsDefaultModelsWithoutStaticList(t *testing.T) {
	c, _ := New(DefaultModels())
	lister := &mockLister{list: openai.ModelsList{Models: []openai.Model{
		{ID: "gpt-4o-mini", OwnedBy: "openai"},
	}}}

	s := NewSyncerWithClient(c, lister, SyncConfig{}, zap.NewNop())
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, m := range DefaultModels() {
		if _, ok := c.Lookup(m.ID()); !ok {
			t.Errorf("default model %s dropped by sync", m.ID())
		}
	}
	if _, ok := c.Lookup("gpt-4o-mini"); !ok {
		t.Error("remote model gpt-4o-mini missing")
	}
}

func TestRefresh_FailureKeepsSnapshot(t *testing.T) {
	c, _ := New(DefaultModels())
	before := c.Len()
	lister := &mockLister{err: errors.New("502")}

	s := NewSyncerWithClient(c, lister, SyncConfig{}, zap.NewNop())
	if _, err := s.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if c.Len() != before {
		t.Errorf("snapshot changed on failure: %d -> %d", before, c.Len())
	}
}

func TestSyncer_OpenAICompatibleEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[` +
			`{"id":"gpt-4o-mini","object":"model","owned_by":"openai"},` +
			`{"id":"mistral-7b","object":"model","owned_by":"mistral"}]}`))
	}))
	defer srv.Close()

	c, _ := New(nil)
	s := NewSyncer(c, SyncConfig{APIKey: "k", BaseURL: srv.URL + "/v1", FreeModels: []string{"mistral-7b"}}, zap.NewNop())

	if err := s.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check: %v", err)
	}
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if m, ok := c.Lookup("mistral-7b"); !ok || !m.IsFree() {
		t.Errorf("mistral-7b must be synced as free, got %+v ok=%v", m, ok)
	}
}
