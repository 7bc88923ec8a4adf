package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hookflow/hookflow/pkg/queue"
)

// MockJobQueue is a mock implementation of the queue.JobQueue interface.
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	args := m.Called(ctx, job)

	return args.Error(0)
}

func (m *MockJobQueue) Handle(handler queue.JobHandler) error {
	args := m.Called(handler)

	return args.Error(0)
}

func (m *MockJobQueue) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockJobQueue) Info(ctx context.Context) (queue.QueueInfo, error) {
	args := m.Called(ctx)

	return args.Get(0).(queue.QueueInfo), args.Error(1)
}

func (m *MockJobQueue) Close() error {
	args := m.Called()

	return args.Error(0)
}

func (m *MockJobQueue) GenerateID() string {
	args := m.Called()

	return args.String(0)
}
