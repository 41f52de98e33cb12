package memorybackend

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/AntonStoeckl/unitofwork-go/unitofwork"
)

// Backend stores field values per identity in memory. It is safe for concurrent use.
type Backend struct {
	mu      sync.RWMutex
	records map[unitofwork.Identity]unitofwork.FieldValues
}

// NewBackend creates a new, empty Backend.
func NewBackend() *Backend {
	return &Backend{
		records: make(map[unitofwork.Identity]unitofwork.FieldValues),
	}
}

// Seed stores values for an identity, replacing any existing record.
func (b *Backend) Seed(id unitofwork.Identity, values unitofwork.FieldValues) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.records[id] = cloneValues(values)
}

// Create implements unitofwork.Creator.
func (b *Backend) Create(_ context.Context, id unitofwork.Identity, values unitofwork.FieldValues) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.records[id]; ok {
		return fmt.Errorf("record %s already exists", id)
	}

	b.records[id] = cloneValues(values)

	return nil
}

// Persist implements unitofwork.Backend. Only the supplied fields are overwritten.
func (b *Backend) Persist(_ context.Context, id unitofwork.Identity, values unitofwork.FieldValues) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	record, ok := b.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", unitofwork.ErrNotFound, id)
	}

	for name, value := range values {
		record[name] = cloneValue(value)
	}

	return nil
}

// Delete implements unitofwork.Deleter.
func (b *Backend) Delete(_ context.Context, id unitofwork.Identity) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.records[id]; !ok {
		return fmt.Errorf("%w: %s", unitofwork.ErrNotFound, id)
	}

	delete(b.records, id)

	return nil
}

// Load implements unitofwork.Backend.
func (b *Backend) Load(_ context.Context, id unitofwork.Identity) (unitofwork.FieldValues, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	record, ok := b.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", unitofwork.ErrNotFound, id)
	}

	return cloneValues(record), nil
}

// Len returns the number of stored records.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.records)
}

func cloneValues(values unitofwork.FieldValues) unitofwork.FieldValues {
	clone := make(unitofwork.FieldValues, len(values))
	for name, value := range values {
		clone[name] = cloneValue(value)
	}

	return clone
}

// cloneValue copies slices and maps one level deep, which covers the flat collections entities hold.
func cloneValue(value any) any {
	rv := reflect.ValueOf(value)

	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return value
		}

		clone := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(clone, rv)

		return clone.Interface()

	case reflect.Map:
		if rv.IsNil() {
			return value
		}

		clone := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), iter.Value())
		}

		return clone.Interface()

	default:
		return value
	}
}
