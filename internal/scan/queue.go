package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by Enqueue when no slot is free
var ErrQueueFull = errors.New("scan queue full")

type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// Job is a snapshot of a queued walk
type Job struct {
	ID         string    `json:"id"`
	Request    Request   `json:"request"`
	State      JobState  `json:"state"`
	Report     *Report   `json:"report,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Runner executes one walk
type Runner interface {
	Run(ctx context.Context, req Request, onFile func(FileResult)) (Report, error)
}

type QueueConfig struct {
	QueueSize int
	Workers   int
	// Retention is how long a finished job stays visible to Get
	Retention time.Duration
	// MaxFinished caps how many finished jobs are kept regardless of age
	MaxFinished int
}

// Queue runs walks on a fixed pool of workers
type Queue struct {
	runner Runner
	jobs   chan string

	retention   time.Duration
	maxFinished int
	now         func() time.Time

	mu    sync.Mutex
	state map[string]*Job

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue starts cfg.Workers workers
func NewQueue(runner Runner, cfg QueueConfig) *Queue {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	if cfg.MaxFinished <= 0 {
		cfg.MaxFinished = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		runner:      runner,
		jobs:        make(chan string, cfg.QueueSize),
		retention:   cfg.Retention,
		maxFinished: cfg.MaxFinished,
		now:         time.Now,
		state:       make(map[string]*Job),
		cancel:      cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}

	return q
}

// Enqueue registers a walk and returns its queued snapshot
func (q *Queue) Enqueue(ctx context.Context, req Request) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}

	job := &Job{
		ID:        uuid.NewString(),
		Request:   req,
		State:     JobQueued,
		CreatedAt: q.now().UTC(),
	}

	q.mu.Lock()
	q.prune()
	q.state[job.ID] = job
	snapshot := *job
	q.mu.Unlock()

	select {
	case q.jobs <- job.ID:
		return snapshot, nil
	default:
		q.mu.Lock()
		delete(q.state, job.ID)
		q.mu.Unlock()
		return Job{}, ErrQueueFull
	}
}

// Get returns a snapshot of job id
func (q *Queue) Get(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.state[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Stop cancels running walks and waits for the workers
func (q *Queue) Stop(ctx context.Context) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		q.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("stop scan workers: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-q.jobs:
			q.process(ctx, id)
		}
	}
}

func (q *Queue) process(ctx context.Context, id string) {
	q.mu.Lock()
	job, ok := q.state[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.State = JobRunning
	req := job.Request
	q.mu.Unlock()

	report, err := q.runner.Run(ctx, req, nil)

	q.mu.Lock()
	defer q.mu.Unlock()
	job.Report = &report
	job.FinishedAt = q.now().UTC()
	if err != nil {
		log.Printf("Scan job %s failed: %v", id, err)
		job.State = JobFailed
		job.Error = err.Error()
	} else {
		job.State = JobDone
	}
	q.prune()
}

// prune drops finished jobs past the retention window, then the oldest
// finished jobs beyond maxFinished. Callers hold q.mu.
func (q *Queue) prune() {
	cutoff := q.now().UTC().Add(-q.retention)
	var finished []*Job
	for id, job := range q.state {
		if job.FinishedAt.IsZero() {
			continue
		}
		if job.FinishedAt.Before(cutoff) {
			delete(q.state, id)
			continue
		}
		finished = append(finished, job)
	}
	if len(finished) <= q.maxFinished {
		return
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].FinishedAt.Before(finished[j].FinishedAt) })
	for _, job := range finished[:len(finished)-q.maxFinished] {
		delete(q.state, job.ID)
	}
}
