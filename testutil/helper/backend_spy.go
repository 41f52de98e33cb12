package helper

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/unitofwork-go/unitofwork"
	"github.com/AntonStoeckl/unitofwork-go/unitofwork/memorybackend"
)

// PersistCall is one recorded Persist, Create or Delete call.
type PersistCall struct {
	Identity unitofwork.Identity
	Values   unitofwork.FieldValues
	Create   bool
	Delete   bool
}

// BackendSpy wraps a memorybackend.Backend, records every persist call and can be told to fail for identities.
type BackendSpy struct {
	*memorybackend.Backend

	mu       sync.Mutex
	calls    []PersistCall
	failures map[unitofwork.Identity]error
}

// NewBackendSpy creates a new BackendSpy over an empty memory backend.
func NewBackendSpy() *BackendSpy {
	return &BackendSpy{
		Backend:  memorybackend.NewBackend(),
		failures: make(map[unitofwork.Identity]error),
	}
}

// FailFor makes Persist, Create and Delete fail with err for the identity.
func (s *BackendSpy) FailFor(id unitofwork.Identity, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[id] = err
}

// Persist implements unitofwork.Backend.
func (s *BackendSpy) Persist(ctx context.Context, id unitofwork.Identity, values unitofwork.FieldValues) error {
	if err := s.record(PersistCall{Identity: id, Values: values}); err != nil {
		return err
	}

	return s.Backend.Persist(ctx, id, values)
}

// Create implements unitofwork.Creator.
func (s *BackendSpy) Create(ctx context.Context, id unitofwork.Identity, values unitofwork.FieldValues) error {
	if err := s.record(PersistCall{Identity: id, Values: values, Create: true}); err != nil {
		return err
	}

	return s.Backend.Create(ctx, id, values)
}

// Delete implements unitofwork.Deleter.
func (s *BackendSpy) Delete(ctx context.Context, id unitofwork.Identity) error {
	if err := s.record(PersistCall{Identity: id, Delete: true}); err != nil {
		return err
	}

	return s.Backend.Delete(ctx, id)
}

func (s *BackendSpy) record(call PersistCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// copy the values as they are at call time
	var recorded unitofwork.FieldValues
	if call.Values != nil {
		recorded = make(unitofwork.FieldValues, len(call.Values))
	}

	for name, value := range call.Values {
		if floats, ok := value.([]float64); ok {
			value = append([]float64(nil), floats...)
		}

		if strs, ok := value.([]string); ok {
			value = append([]string(nil), strs...)
		}

		recorded[name] = value
	}

	call.Values = recorded
	s.calls = append(s.calls, call)

	return s.failures[call.Identity]
}

// Calls returns a copy of all recorded calls.
func (s *BackendSpy) Calls() []PersistCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	calls := make([]PersistCall, len(s.calls))
	copy(calls, s.calls)

	return calls
}

// CallCount returns the number of recorded calls.
func (s *BackendSpy) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.calls)
}

// Reset clears all recorded calls.
func (s *BackendSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = s.calls[:0]
}

// PersistOnlyBackend hides the Create and Delete methods of a backend.
type PersistOnlyBackend struct {
	unitofwork.Backend
}
