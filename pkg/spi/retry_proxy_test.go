package spi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/username/archflow/pkg/util"
)

// MockFailingSource is a mock FileSource that fails n times before succeeding
type MockFailingSource struct {
	FailCount    int
	CurrentFails int
	Missing      bool
}

func (m *MockFailingSource) Peek(ctx context.Context, height uint64) (bool, error) {
	if m.CurrentFails < m.FailCount {
		m.CurrentFails++
		return false, errors.New("simulated error")
	}
	return !m.Missing, nil
}

func (m *MockFailingSource) Read(ctx context.Context, height uint64) ([]byte, error) {
	if m.CurrentFails < m.FailCount {
		m.CurrentFails++
		return nil, errors.New("simulated error")
	}
	if m.Missing {
		return nil, ErrNotAvailable
	}
	return []byte("data"), nil
}

func TestRetryingFileSource_Read(t *testing.T) {
	mock := &MockFailingSource{FailCount: 2}
	// fast backoff for test
	backoff := util.NewBackoff(3, 1*time.Millisecond)

	proxy := NewRetryingFileSource(mock, backoff)

	raw, err := proxy.Read(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if string(raw) != "data" {
		t.Errorf("unexpected payload: %s", raw)
	}
	if mock.CurrentFails != 2 {
		t.Errorf("expected 2 failures, got %d", mock.CurrentFails)
	}
}

func TestRetryingFileSource_FailEventually(t *testing.T) {
	mock := &MockFailingSource{FailCount: 5}
	// backoff only retries 3 times
	backoff := util.NewBackoff(3, 1*time.Millisecond)

	proxy := NewRetryingFileSource(mock, backoff)

	_, err := proxy.Read(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error, got success")
	}
}

func TestRetryingFileSource_NotAvailablePassthrough(t *testing.T) {
	// A missing file is not an error condition: it must come back
	// immediately without burning retries.
	mock := &MockFailingSource{Missing: true}
	backoff := util.NewBackoff(3, time.Second)

	proxy := NewRetryingFileSource(mock, backoff)

	start := time.Now()
	_, err := proxy.Read(context.Background(), 1)
	if !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("expected ErrNotAvailable, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("ErrNotAvailable went through the retry loop")
	}
}
