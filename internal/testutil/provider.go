package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/openequity/Settlement-Backend/internal/provider"
)

// FakeProvider is an in-memory provider.Client. Tests script transfer states
// with SetState and force creation failures with FailCreates.
type FakeProvider struct {
	mu sync.Mutex

	states      map[string]string
	nextID      int
	failCreates bool

	CreateCalls int
	GetCalls    int
}

// NewFakeProvider creates an empty fake provider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{states: make(map[string]string)}
}

// FailCreates makes every CreateTransfer call return an error.
func (f *FakeProvider) FailCreates(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCreates = fail
}

// SetState scripts the state GetTransfer reports for a transfer.
func (f *FakeProvider) SetState(transferID, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[transferID] = state
}

// CreateTransfer records a transfer in the processing state.
func (f *FakeProvider) CreateTransfer(_ context.Context, req provider.CreateTransferRequest) (provider.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CreateCalls++
	if f.failCreates {
		return provider.Transfer{}, errors.New("fake provider: create rejected")
	}

	f.nextID++
	id := fmt.Sprintf("transfer-%d-%s", f.nextID, req.Reference)
	f.states[id] = provider.StateProcessing
	return provider.Transfer{
		ID:           id,
		CurrentState: provider.StateProcessing,
	}, nil
}

// GetTransfer reports the scripted state for a transfer.
func (f *FakeProvider) GetTransfer(_ context.Context, transferID string) (provider.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.GetCalls++
	state, ok := f.states[transferID]
	if !ok {
		return provider.Transfer{}, errors.New("fake provider: unknown transfer " + transferID)
	}
	return provider.Transfer{ID: transferID, CurrentState: state}, nil
}
