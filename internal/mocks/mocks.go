// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/rebootctl/api/schemas"
)

// -- Session Driver Mock --

// MockSessionDriver mocks the schemas.SessionDriver interface.
type MockSessionDriver struct {
	mock.Mock

	mu         sync.Mutex
	closeCalls int
}

var _ schemas.SessionDriver = (*MockSessionDriver)(nil)

func (m *MockSessionDriver) Open(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockSessionDriver) FillLogin(ctx context.Context, password string) error {
	args := m.Called(ctx, password)
	return args.Error(0)
}

func (m *MockSessionDriver) NavigateToReboot(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSessionDriver) TriggerReboot(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSessionDriver) AwaitRestart(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSessionDriver) CaptureDiagnostics(ctx context.Context) (*schemas.DiagnosticBundle, error) {
	args := m.Called(ctx)
	var bundle *schemas.DiagnosticBundle
	if b := args.Get(0); b != nil {
		bundle = b.(*schemas.DiagnosticBundle)
	}
	return bundle, args.Error(1)
}

// Close records the call count independently of expectations so tests can
// assert on it even when Close is set up with Maybe().
func (m *MockSessionDriver) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closeCalls++
	m.mu.Unlock()
	args := m.Called(ctx)
	return args.Error(0)
}

// CloseCalls returns how many times Close was invoked.
func (m *MockSessionDriver) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// -- Connector Mock --

// MockConnector mocks the schemas.Connector interface.
type MockConnector struct {
	mock.Mock
}

var _ schemas.Connector = (*MockConnector)(nil)

func (m *MockConnector) Connect(ctx context.Context) (schemas.SessionDriver, error) {
	args := m.Called(ctx)
	var d schemas.SessionDriver
	if v := args.Get(0); v != nil {
		d = v.(schemas.SessionDriver)
	}
	return d, args.Error(1)
}

// -- Artifact Writer Mock --

// MockArtifactWriter mocks the schemas.ArtifactWriter interface.
type MockArtifactWriter struct {
	mock.Mock
}

var _ schemas.ArtifactWriter = (*MockArtifactWriter)(nil)

func (m *MockArtifactWriter) Write(bundle *schemas.DiagnosticBundle) (*schemas.ArtifactPaths, error) {
	args := m.Called(bundle)
	var paths *schemas.ArtifactPaths
	if p := args.Get(0); p != nil {
		paths = p.(*schemas.ArtifactPaths)
	}
	return paths, args.Error(1)
}
