package systems

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/dataverse/engine/core"
)

// JobTask is one unit of pipeline work. The context carries the
// activation's cancellation; OnStart must watch it.
type JobTask struct {
	Name       string
	Ctx        context.Context
	OnStart    func(ctx context.Context) error
	OnComplete func()
	OnFailure  func(err error)
}

// JobSystem is a fixed worker pool. The worker count is the upper bound
// on concurrently running mesh pipelines; per-asset serialization is the
// view slot state machine's job, not the pool's.
type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = fmt.Errorf("job system is shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	jq := make(chan JobTask, channelSize)
	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   jq,
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				err := job.OnStart(job.Ctx)
				if err != nil {
					if job.Ctx.Err() == nil {
						core.LogError("job %q: %s", job.Name, err.Error())
					}
					if job.OnFailure != nil {
						job.OnFailure(err)
					}
					continue
				}
				if job.OnComplete != nil {
					job.OnComplete()
				}
			}
		}()
	}
}

/**
 * @brief Shuts the job system down, draining queued work first.
 * Safe to call more than once.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mu.Unlock()

	js.wg.Wait()
	return nil
}

// AddWorkNonBlocking enqueues without blocking the caller even when the
// queue is full.
func (js *JobSystem) AddWorkNonBlocking(jt JobTask) {
	go js.Submit(jt)
}

/**
 * @brief Submits the provided job to be queued for execution. Jobs
 * arriving after Shutdown are rejected through their OnFailure callback
 * with ErrJobSystemClosed.
 */
func (js *JobSystem) Submit(jt JobTask) {
	js.mu.Lock()
	defer js.mu.Unlock()
	if js.closed {
		if jt.OnFailure != nil {
			jt.OnFailure(ErrJobSystemClosed)
		}
		return
	}
	js.jobQueue <- jt
}
