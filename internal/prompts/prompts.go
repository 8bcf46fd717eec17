// Package prompts keeps the most recently used prompts per editing category.
package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lehigh-university-libraries/retoucher/internal/storage"
)

// MaxEntries is the length cap of each history list.
const MaxEntries = 20

// Category names one independent prompt history.
type Category string

const (
	Edit   Category = "edit"
	Adjust Category = "adjust"
	Filter Category = "filter"
)

var ErrUnknownCategory = errors.New("unknown prompt category")

func (c Category) valid() bool {
	return c == Edit || c == Adjust || c == Filter
}

func (c Category) key() string {
	return "prompts:" + string(c)
}

// Book reads and writes prompt histories through a store.
type Book struct {
	store storage.Store
	mu    sync.Mutex
}

func NewBook(store storage.Store) *Book {
	return &Book{store: store}
}

// Add records prompt as the most recent entry of category. Blank prompts are
// ignored. An existing entry that matches case-insensitively is replaced by
// the new spelling.
func (b *Book) Add(ctx context.Context, category Category, prompt string) ([]string, error) {
	if !category.valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	prompt = strings.TrimSpace(prompt)

	b.mu.Lock()
	defer b.mu.Unlock()

	list, err := b.load(ctx, category)
	if err != nil {
		return nil, err
	}
	if prompt == "" {
		return list, nil
	}

	next := make([]string, 0, min(len(list)+1, MaxEntries))
	next = append(next, prompt)
	for _, p := range list {
		if len(next) == MaxEntries {
			break
		}
		if !strings.EqualFold(p, prompt) {
			next = append(next, p)
		}
	}

	data, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prompt history: %w", err)
	}
	if err := b.store.Put(ctx, category.key(), data); err != nil {
		return nil, err
	}
	return next, nil
}

// List returns the history of category, most recent first.
func (b *Book) List(ctx context.Context, category Category) ([]string, error) {
	if !category.valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(ctx, category)
}

// Clear erases the history of category.
func (b *Book) Clear(ctx context.Context, category Category) error {
	if !category.valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Delete(ctx, category.key())
}

func (b *Book) load(ctx context.Context, category Category) ([]string, error) {
	data, err := b.store.Get(ctx, category.key())
	if errors.Is(err, storage.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode prompt history %s: %w", category, err)
	}
	return list, nil
}
