package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/persistence"
)

// MockWorkflowRepository is a mock implementation of the
// persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) Update(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) GetByWebhookPath(ctx context.Context, path string) (*models.Workflow, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Workflow, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockExecutionRepository is a mock implementation of the
// persistence.ExecutionRepository interface.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) Create(ctx context.Context, record *models.ExecutionRecord) error {
	args := m.Called(ctx, record)

	return args.Error(0)
}

func (m *MockExecutionRepository) GetByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionRecord), args.Error(1)
}

func (m *MockExecutionRepository) Finalize(ctx context.Context, id string, status models.ExecutionStatus, result map[string]any, errorMessage string, completedAt time.Time) error {
	args := m.Called(ctx, id, status, result, errorMessage, completedAt)

	return args.Error(0)
}

func (m *MockExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string, opts persistence.ListOptions) ([]*models.ExecutionRecord, error) {
	args := m.Called(ctx, workflowID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionRecord), args.Error(1)
}

func (m *MockExecutionRepository) CountByWorkflow(ctx context.Context, workflowID string, status models.ExecutionStatus) (int64, error) {
	args := m.Called(ctx, workflowID, status)

	return args.Get(0).(int64), args.Error(1)
}

func (m *MockExecutionRepository) DeleteOlderThan(ctx context.Context, before time.Time, status models.ExecutionStatus) (int64, error) {
	args := m.Called(ctx, before, status)

	return args.Get(0).(int64), args.Error(1)
}

func (m *MockExecutionRepository) CountOlderThan(ctx context.Context, before time.Time, status models.ExecutionStatus) (int64, error) {
	args := m.Called(ctx, before, status)

	return args.Get(0).(int64), args.Error(1)
}

// MockPersistence is a mock implementation of the persistence.Persistence
// interface.
type MockPersistence struct {
	mock.Mock

	workflowRepo  *MockWorkflowRepository
	executionRepo *MockExecutionRepository
}

// NewMockPersistence creates a MockPersistence with both mock repositories
// attached.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		workflowRepo:  &MockWorkflowRepository{},
		executionRepo: &MockExecutionRepository{},
	}
}

// GetMockWorkflowRepository returns the underlying mock workflow repository
// for setting up expectations.
func (m *MockPersistence) GetMockWorkflowRepository() *MockWorkflowRepository {
	return m.workflowRepo
}

// GetMockExecutionRepository returns the underlying mock execution
// repository for setting up expectations.
func (m *MockPersistence) GetMockExecutionRepository() *MockExecutionRepository {
	return m.executionRepo
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.workflowRepo
}

func (m *MockPersistence) ExecutionRepository() persistence.ExecutionRepository {
	return m.executionRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
