package prompts

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/lehigh-university-libraries/retoucher/internal/storage"
)

func TestAdd(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		adds []string
		want []string
	}{
		{"most recent first", []string{"a", "b", "c"}, []string{"c", "b", "a"}},
		{"blank ignored", []string{"a", "   ", ""}, []string{"a"}},
		{"trimmed", []string{"  warmer  "}, []string{"warmer"}},
		{"dedupe keeps new spelling", []string{"Warmer", "cooler", "WARMER"}, []string{"WARMER", "cooler"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBook(storage.NewMemoryStore())
			for _, p := range tt.adds {
				if _, err := b.Add(ctx, Adjust, p); err != nil {
					t.Fatalf("Add(%q): %v", p, err)
				}
			}
			got, err := b.List(ctx, Adjust)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("List = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCap(t *testing.T) {
	ctx := context.Background()
	b := NewBook(storage.NewMemoryStore())
	for i := 0; i < 25; i++ {
		if _, err := b.Add(ctx, Edit, fmt.Sprintf("prompt %d", i)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	got, _ := b.List(ctx, Edit)
	if len(got) != MaxEntries {
		t.Fatalf("len = %d, want %d", len(got), MaxEntries)
	}
	if got[0] != "prompt 24" || got[MaxEntries-1] != "prompt 5" {
		t.Errorf("first=%q last=%q", got[0], got[MaxEntries-1])
	}
}

func TestCategoriesIndependent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	b := NewBook(store)
	_, _ = b.Add(ctx, Edit, "remove dust")
	_, _ = b.Add(ctx, Filter, "sepia")

	if got, _ := b.List(ctx, Adjust); len(got) != 0 {
		t.Errorf("adjust = %v, want empty", got)
	}
	if err := b.Clear(ctx, Edit); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got, _ := b.List(ctx, Edit); len(got) != 0 {
		t.Errorf("edit after clear = %v", got)
	}
	if got, _ := b.List(ctx, Filter); !reflect.DeepEqual(got, []string{"sepia"}) {
		t.Errorf("filter = %v", got)
	}

	// persisted under its own key
	raw, err := store.Get(ctx, "prompts:filter")
	if err != nil || string(raw) != `["sepia"]` {
		t.Errorf("stored = %s, %v", raw, err)
	}
}

func TestUnknownCategory(t *testing.T) {
	b := NewBook(storage.NewMemoryStore())
	if _, err := b.Add(context.Background(), "crop", "x"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("err = %v", err)
	}
}
