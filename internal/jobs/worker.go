package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor runs one unit of background work per tick.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker drives a JobProcessor on a fixed interval. A failing pass is logged
// and the loop keeps ticking; the worker stops on Stop or context
// cancellation.
type Worker struct {
	processor JobProcessor
	interval  time.Duration
	stop      chan struct{}
	done      chan struct{}
}

func NewWorker(processor JobProcessor, interval time.Duration) *Worker {
	return &Worker{
		processor: processor,
		interval:  interval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start blocks, running the processor every interval until stopped. Callers
// run it in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.done)

	log.Printf("background worker: polling every %v", w.interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("background worker: stopping: %v", ctx.Err())
			return
		case <-w.stop:
			log.Println("background worker: stopping")
			return
		case <-ticker.C:
			if err := w.processor.ProcessJobs(ctx); err != nil {
				log.Printf("background worker: pass failed: %v", err)
			}
		}
	}
}

// Stop signals the loop to exit and waits for the in-flight pass to finish.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}
