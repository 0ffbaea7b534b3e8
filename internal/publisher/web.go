package publisher

import (
	"context"
	"sync"

	"github.com/ryosukesatoh/researchtldr/internal/pipeline"
)

// WebPublisher keeps the latest report in memory for the HTTP API.
type WebPublisher struct {
	mu     sync.RWMutex
	latest *pipeline.BatchReport
}

func NewWebPublisher() *WebPublisher {
	return &WebPublisher{}
}

func (wp *WebPublisher) Publish(_ context.Context, report *pipeline.BatchReport) error {
	wp.mu.Lock()
	wp.latest = report
	wp.mu.Unlock()
	return nil
}

// Latest returns the most recently published report, or nil.
func (wp *WebPublisher) Latest() *pipeline.BatchReport {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.latest
}
