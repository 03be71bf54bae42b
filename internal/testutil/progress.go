package testutil

import "sync"

// MockProgressTracker records progress callbacks. Sliced downloads report
// from several goroutines, so every method locks.
type MockProgressTracker struct {
	mu sync.Mutex

	UpdateCalled     bool
	CompleteCalled   bool
	ErrorCalled      bool
	Completions      int
	Failures         int
	BytesTransferred int64
	TotalBytes       int64
	LastError        error
	// Transferred holds the byte count of every Update in call order.
	Transferred []int64
}

func (m *MockProgressTracker) Update(bytesTransferred, totalBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalled = true
	m.BytesTransferred = bytesTransferred
	m.TotalBytes = totalBytes
	m.Transferred = append(m.Transferred, bytesTransferred)
}

func (m *MockProgressTracker) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCalled = true
	m.Completions++
}

func (m *MockProgressTracker) Error(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorCalled = true
	m.Failures++
	m.LastError = err
}

// Monotonic reports whether the transferred byte count never went down.
func (m *MockProgressTracker) Monotonic() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 1; i < len(m.Transferred); i++ {
		if m.Transferred[i] < m.Transferred[i-1] {
			return false
		}
	}
	return true
}
