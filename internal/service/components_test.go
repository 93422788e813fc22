package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/remixer/internal/domain"
)

// MockBackend only expects Release; any other call fails the test.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Name() string { return "mock" }

func (m *MockBackend) Acquire(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBackend) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBackend) CheckSession(ctx context.Context) (bool, string) {
	args := m.Called(ctx)
	return args.Bool(0), args.String(1)
}

func (m *MockBackend) NavigateToApp(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBackend) NewConversation(ctx context.Context) { m.Called(ctx) }

func (m *MockBackend) Analyze(ctx context.Context, imagePath, instruction string, report domain.PhaseFunc) (string, error) {
	args := m.Called(ctx, imagePath, instruction, report)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) Generate(ctx context.Context, prompt string, report domain.PhaseFunc) (domain.ImageArtifact, error) {
	args := m.Called(ctx, prompt, report)
	return args.Get(0).(domain.ImageArtifact), args.Error(1)
}

func TestComponents_Shutdown(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Release", mock.Anything).Return(nil).Once()

	c := &Components{Backend: backend, logger: zaptest.NewLogger(t)}
	c.Shutdown()
	c.Shutdown()

	backend.AssertExpectations(t)
	backend.AssertNumberOfCalls(t, "Release", 1)
}

func TestComponents_ShutdownReleaseError(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Release", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})).Return(errors.New("chrome hung")).Once()

	c := &Components{Backend: backend, logger: zaptest.NewLogger(t)}
	assert.NotPanics(t, c.Shutdown)
	backend.AssertExpectations(t)
}

func TestComponents_ShutdownEmpty(t *testing.T) {
	assert.NotPanics(t, (&Components{}).Shutdown)
}
