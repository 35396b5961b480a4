package main

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"ddbstream/domain/changelog"
)

type recordingWriter struct {
	items []changelog.Item
	err   error
}

func (w *recordingWriter) PutItem(_ context.Context, item changelog.Item) error {
	if w.err != nil {
		return w.err
	}
	w.items = append(w.items, item)
	return nil
}

func TestPutWritesFreshIDs(t *testing.T) {
	w := &recordingWriter{}
	var reported int
	if err := put(context.Background(), w, 3, 7, func(changelog.Item) { reported++ }); err != nil {
		t.Fatalf("put: %v", err)
	}
	if len(w.items) != 3 || reported != 3 {
		t.Fatalf("wrote %d, reported %d", len(w.items), reported)
	}

	seen := map[string]bool{}
	for _, it := range w.items {
		if _, err := uuid.Parse(it.ID); err != nil {
			t.Fatalf("id %q is not a uuid: %v", it.ID, err)
		}
		if seen[it.ID] {
			t.Fatalf("duplicate id %q", it.ID)
		}
		seen[it.ID] = true
		if it.Value == nil || *it.Value != 7 {
			t.Fatalf("value = %v", it.Value)
		}
	}
}

func TestPutRandomValuesStayInRange(t *testing.T) {
	w := &recordingWriter{}
	if err := put(context.Background(), w, 50, -1, func(changelog.Item) {}); err != nil {
		t.Fatalf("put: %v", err)
	}
	for _, it := range w.items {
		if *it.Value < 0 || *it.Value >= 100 {
			t.Fatalf("value %v out of range", *it.Value)
		}
	}
}

func TestPutStopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	w := &recordingWriter{err: boom}
	if err := put(context.Background(), w, 3, 1, func(changelog.Item) {}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
