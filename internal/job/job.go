// Package job holds in-memory batch state for one process lifetime.
// Nothing here survives a restart: a batch lives only as long as its job.
package job

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/festal-inc/haishin/internal/domain"
)

// Status is the lifecycle state of a batch job.
type Status string

const (
	// StatusPending means contacts are loaded but dispatch has not started.
	StatusPending Status = "pending"

	// StatusSending means the dispatch loop is running.
	StatusSending Status = "sending"

	// StatusDone means every ledger entry has been recorded.
	StatusDone Status = "done"
)

// Job is one batch: the contacts from one upload plus, once dispatch
// starts, the template, rendered messages and the result ledger. The
// ledger is append-only and owned by the dispatch loop; readers get
// copy snapshots.
type Job struct {
	ID          uuid.UUID
	SenderEmail string
	Contacts    []domain.Contact
	CreatedAt   time.Time

	mu        sync.Mutex
	status    Status
	template  domain.Template
	total     int
	results   []domain.DispatchResult
	startedAt time.Time
	doneAt    time.Time
}

// New creates a pending job for one upload's contacts.
func New(senderEmail string, contacts []domain.Contact) *Job {
	return &Job{
		ID:          uuid.New(),
		SenderEmail: senderEmail,
		Contacts:    contacts,
		CreatedAt:   time.Now(),
		status:      StatusPending,
	}
}

// Begin transitions the job to sending. Returns false when the job is
// not pending (a batch runs at most once).
func (j *Job) Begin(tmpl domain.Template, total int) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status != StatusPending {
		return false
	}
	j.status = StatusSending
	j.template = tmpl
	j.total = total
	j.results = make([]domain.DispatchResult, 0, total)
	j.startedAt = time.Now()
	return true
}

// Append records one dispatch result.
func (j *Job) Append(r domain.DispatchResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = append(j.results, r)
}

// Finish marks the job done and returns the batch duration.
func (j *Job) Finish() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusDone
	j.doneAt = time.Now()
	return j.doneAt.Sub(j.startedAt)
}

// Progress is a read-only snapshot of a job's dispatch state. Results is
// a copy; its length equals Total only once the batch has finished.
type Progress struct {
	Status    Status                  `json:"status"`
	Total     int                     `json:"total"`
	Sent      int                     `json:"sent"`
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
	Results   []domain.DispatchResult `json:"results"`
}

// Snapshot returns the current progress.
func (j *Job) Snapshot() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()

	results := make([]domain.DispatchResult, len(j.results))
	copy(results, j.results)

	p := Progress{
		Status:  j.status,
		Total:   j.total,
		Sent:    len(results),
		Results: results,
	}
	for _, r := range results {
		if r.Success {
			p.Succeeded++
		} else {
			p.Failed++
		}
	}
	return p
}

// Store is an in-memory job registry keyed by job ID.
type Store struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[uuid.UUID]*Job)}
}

// Put registers a job.
func (s *Store) Put(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

// Get returns a job by ID, or nil when unknown.
func (s *Store) Get(id uuid.UUID) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}
