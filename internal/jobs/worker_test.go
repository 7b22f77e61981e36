package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/lumenkb/lumen/internal/domain"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockSyncer is a mock implementation of Syncer
type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Sync(ctx context.Context) (*domain.IndexReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IndexReport), args.Error(1)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(120 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_KeepsPollingAfterError tests the loop survives a failing pass
func TestWorker_KeepsPollingAfterError(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	calls := 0
	var mu sync.Mutex
	mockProcessor.On("ProcessJobs", mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		calls++
		mu.Unlock()
	}).Return(errors.New("sync failed"))

	worker := NewWorker(mockProcessor, 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)
	worker.Stop()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, calls, 2)
}

func TestSyncProcessor_ProcessJobs_Success(t *testing.T) {
	mockSyncer := new(MockSyncer)
	report := &domain.IndexReport{RunID: "run-1", Added: 2}
	mockSyncer.On("Sync", mock.Anything).Return(report, nil)

	processor := NewSyncProcessor(mockSyncer)
	err := processor.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockSyncer.AssertExpectations(t)
}

func TestSyncProcessor_ProcessJobs_DocumentFailuresDoNotFailPass(t *testing.T) {
	mockSyncer := new(MockSyncer)
	report := &domain.IndexReport{
		RunID: "run-1",
		Failed: []domain.DocumentFailure{
			{DocumentID: "bad-1", Name: "bad.txt", Reason: "fetch failed"},
		},
	}
	mockSyncer.On("Sync", mock.Anything).Return(report, nil)

	processor := NewSyncProcessor(mockSyncer)
	err := processor.ProcessJobs(context.Background())

	assert.NoError(t, err)
}

func TestSyncProcessor_ProcessJobs_SyncErrorPropagates(t *testing.T) {
	mockSyncer := new(MockSyncer)
	mockSyncer.On("Sync", mock.Anything).Return(nil, errors.New("source unreachable"))

	processor := NewSyncProcessor(mockSyncer)
	err := processor.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "source unreachable")
}
