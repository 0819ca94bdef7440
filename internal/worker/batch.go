package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// Task is one unit of analysis work producing a value
type Task[T any] func(ctx context.Context) (T, error)

// TaskJob runs a Task and remembers its position in the batch
type TaskJob[T any] struct {
	Index int
	Task  Task[T]
}

// Execute executes the task
func (j *TaskJob[T]) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &TaskResult[T]{Index: j.Index, Error: err}
	}
	value, err := j.Task(ctx)
	return &TaskResult[T]{Index: j.Index, Value: value, Error: err}
}

// TaskResult represents the result of a task
type TaskResult[T any] struct {
	Index int
	Value T
	Error error
}

// GetError returns the error from the task result
func (r *TaskResult[T]) GetError() error {
	return r.Error
}

// BatchProcessor runs tasks concurrently on a worker pool
type BatchProcessor[T any] struct {
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor[T any](concurrency int) *BatchProcessor[T] {
	return &BatchProcessor[T]{
		concurrency: concurrency,
	}
}

// Process runs every task and returns the results in task order. Tasks not
// started before ctx is cancelled report ctx.Err().
func (b *BatchProcessor[T]) Process(ctx context.Context, tasks []Task[T]) []*TaskResult[T] {
	if len(tasks) == 0 {
		return []*TaskResult[T]{}
	}

	// Create worker pool
	pool := NewPoolWithContext(ctx, b.concurrency)
	pool.Start()

	// Submit jobs
	for i, task := range tasks {
		pool.Submit(&TaskJob[T]{Index: i, Task: task})
	}

	// Wait for all jobs to complete
	results := pool.Wait()

	// Restore task order; jobs dropped by cancellation keep the ctx error
	ordered := make([]*TaskResult[T], len(tasks))
	for _, result := range results {
		r := result.(*TaskResult[T])
		ordered[r.Index] = r
	}
	for i := range ordered {
		if ordered[i] == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			ordered[i] = &TaskResult[T]{Index: i, Error: err}
		}
	}

	return ordered
}

// ReadListFile reads entries from a file (one per line), skipping blank
// lines and # comments and dropping duplicates
func ReadListFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var entries []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			entries = append(entries, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return entries, nil
}
