package models

import (
	"errors"
	"sync"
	"testing"

	"github.com/kailas-cloud/planguard/internal/domain"
	"github.com/kailas-cloud/planguard/internal/domain/model"
)

func TestNew_Defaults(t *testing.T) {
	c, err := New(DefaultModels())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := c.Lookup("llama-3-8b")
	if !ok || !m.IsFree() {
		t.Errorf("llama-3-8b must be a free model, got %+v ok=%v", m, ok)
	}
	if c.Len() != len(DefaultModels()) {
		t.Errorf("expected %d models, got %d", len(DefaultModels()), c.Len())
	}
}

func TestReplace_Rejects(t *testing.T) {
	c, _ := New(nil)

	if err := c.Replace([]model.Model{model.New("", "", "x", model.TierFree)}); err == nil {
		t.Error("expected error for empty id")
	}
	dup := model.New("a", "", "x", model.TierFree)
	if err := c.Replace([]model.Model{dup, dup}); err == nil {
		t.Error("expected error for duplicate id")
	}
	if c.Len() != 0 {
		t.Error("failed replace must keep the previous snapshot")
	}
}

func TestGet_Unknown(t *testing.T) {
	c, _ := New(DefaultModels())

	if _, err := c.Get("nope"); !errors.Is(err, domain.ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestAll_Sorted(t *testing.T) {
	c, _ := New(DefaultModels())
	all := c.All()
	for i := 1; i < len(all); i++ {
		if all[i-1].ID() >= all[i].ID() {
			t.Fatalf("not sorted at %d: %s >= %s", i, all[i-1].ID(), all[i].ID())
		}
	}
}

func TestReplace_ConcurrentReaders(t *testing.T) {
	c, _ := New(DefaultModels())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				c.Lookup("gpt-4")
				_ = c.All()
			}
		}()
	}
	for range 100 {
		if err := c.Replace(DefaultModels()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	wg.Wait()
}
