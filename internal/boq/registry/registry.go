package registry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/boq-ai/internal/boq/domain"
	"github.com/google/uuid"
)

// Observer is notified after every committed change, in commit order.
// Observers must not mutate the registry.
type Observer interface {
	JobChanged(prev, next domain.Job)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(prev, next domain.Job)

func (f ObserverFunc) JobChanged(prev, next domain.Job) { f(prev, next) }

// Registry is the append-only store of job records for one session.
// Every update replaces a whole record; readers always get copies.
type Registry struct {
	logger *slog.Logger
	now    func() time.Time

	// notifyMu orders observer callbacks with commits.
	notifyMu sync.Mutex
	mu       sync.RWMutex

	jobs        []domain.Job
	byClientKey map[string]int
	byServerID  map[string]int
	observers   []Observer
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:      logger,
		now:         time.Now,
		byClientKey: make(map[string]int),
		byServerID:  make(map[string]int),
	}
}

// Observe registers o for all future changes.
func (r *Registry) Observe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// Create registers a new job in uploading state and returns its client key.
func (r *Registry) Create(fileName string) string {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	key := uuid.New().String()
	for _, taken := r.byClientKey[key]; taken; _, taken = r.byClientKey[key] {
		key = uuid.New().String()
	}
	now := r.now()
	job := domain.Job{
		ClientKey:      key,
		FileName:       fileName,
		Status:         domain.StatusUploading,
		UploadProgress: 0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.byClientKey[key] = len(r.jobs)
	r.jobs = append(r.jobs, job)
	observers := r.observers
	r.mu.Unlock()

	r.logger.Debug("Job registered",
		slog.String("client_key", key),
		slog.String("file_name", fileName),
	)

	for _, o := range observers {
		o.JobChanged(domain.Job{}, job.Clone())
	}
	return key
}

// AssignServerID attaches the server-assigned job id to the record.
func (r *Registry) AssignServerID(clientKey, serverID string) error {
	if serverID == "" {
		return fmt.Errorf("assign server id: %w", &domain.FormatError{Field: "job_id"})
	}
	return r.update(clientKey, func(j *domain.Job) (bool, error) {
		if j.IsDone() {
			return false, domain.ErrTerminal
		}
		return r.setServerID(j, serverID)
	})
}

// MarkQueued records a successful upload: server id assigned, status queued,
// progress 100, in one replacement.
func (r *Registry) MarkQueued(clientKey, serverID string) error {
	if serverID == "" {
		return fmt.Errorf("mark queued: %w", &domain.FormatError{Field: "job_id"})
	}
	return r.update(clientKey, func(j *domain.Job) (bool, error) {
		if j.IsDone() {
			return false, domain.ErrTerminal
		}
		if !domain.CanTransition(j.Status, domain.StatusQueued) {
			return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, j.Status, domain.StatusQueued)
		}
		if _, err := r.setServerID(j, serverID); err != nil {
			return false, err
		}
		j.Status = domain.StatusQueued
		j.UploadProgress = 100
		return true, nil
	})
}

// setServerID must be called with mu held.
func (r *Registry) setServerID(j *domain.Job, serverID string) (bool, error) {
	if j.ServerID == serverID {
		return false, nil
	}
	if j.ServerID != "" {
		return false, fmt.Errorf("job %s already has server id %s", j.ClientKey, j.ServerID)
	}
	if _, taken := r.byServerID[serverID]; taken {
		return false, fmt.Errorf("server id %s already assigned to another job", serverID)
	}
	r.byServerID[serverID] = r.byClientKey[j.ClientKey]
	j.ServerID = serverID
	return true, nil
}

// SetStatus moves a job along the state machine. Finishing requires a result
// and goes through SetResult.
func (r *Registry) SetStatus(ref string, status domain.Status) error {
	if status == domain.StatusFinished {
		return fmt.Errorf("%w: finished requires a result", domain.ErrInvalidTransition)
	}
	return r.update(ref, func(j *domain.Job) (bool, error) {
		if err := checkTransition(j.Status, status); err != nil {
			return false, err
		}
		if j.Status == status {
			return false, nil
		}
		j.Status = status
		return true, nil
	})
}

// SetProgress records upload progress. Values are clamped to [0,100]; only
// increases are applied and only while the job is uploading.
func (r *Registry) SetProgress(clientKey string, pct int) error {
	pct = min(max(pct, 0), 100)
	return r.update(clientKey, func(j *domain.Job) (bool, error) {
		if j.IsDone() {
			return false, domain.ErrTerminal
		}
		if j.Status != domain.StatusUploading || pct <= j.UploadProgress {
			return false, nil
		}
		j.UploadProgress = pct
		return true, nil
	})
}

// SetResult finishes a job with its quantity list. A queued job that
// finished between two polls is committed as started first, so observers
// only ever see valid edges.
func (r *Registry) SetResult(ref string, result domain.Result) error {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	err := r.updateLocked(ref, func(j *domain.Job) (bool, error) {
		if j.Status != domain.StatusQueued {
			return false, nil
		}
		j.Status = domain.StatusStarted
		return true, nil
	})
	if err != nil {
		return err
	}

	return r.updateLocked(ref, func(j *domain.Job) (bool, error) {
		if err := checkTransition(j.Status, domain.StatusFinished); err != nil {
			return false, err
		}
		res := result
		res.Items = append([]domain.LineItem(nil), result.Items...)
		j.Status = domain.StatusFinished
		j.Result = &res
		return true, nil
	})
}

// Fail terminalizes a job as failed and records why.
func (r *Registry) Fail(ref string, cause error) error {
	return r.update(ref, func(j *domain.Job) (bool, error) {
		if err := checkTransition(j.Status, domain.StatusFailed); err != nil {
			return false, err
		}
		j.Status = domain.StatusFailed
		if cause != nil {
			j.Error = cause.Error()
		}
		return true, nil
	})
}

// Get returns a copy of the job addressed by a client key or server id.
func (r *Registry) Get(ref string) (domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.lookup(ref)
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return r.jobs[idx].Clone(), nil
}

// All returns a snapshot of every job in creation order.
func (r *Registry) All() []domain.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Job, len(r.jobs))
	for i, j := range r.jobs {
		out[i] = j.Clone()
	}
	return out
}

// Len returns the number of jobs ever created.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func (r *Registry) lookup(ref string) (int, bool) {
	if idx, ok := r.byClientKey[ref]; ok {
		return idx, true
	}
	idx, ok := r.byServerID[ref]
	return idx, ok
}

// update applies fn to a copy of the record and commits it as a replacement.
// fn reports whether anything changed; unchanged records are not re-committed.
func (r *Registry) update(ref string, fn func(j *domain.Job) (bool, error)) error {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	return r.updateLocked(ref, fn)
}

// updateLocked is update for callers already holding notifyMu.
func (r *Registry) updateLocked(ref string, fn func(j *domain.Job) (bool, error)) error {
	r.mu.Lock()
	idx, ok := r.lookup(ref)
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, ref)
	}

	prev := r.jobs[idx]
	next := prev.Clone()
	changed, err := fn(&next)
	if err != nil || !changed {
		r.mu.Unlock()
		return err
	}

	next.UpdatedAt = r.now()
	r.jobs[idx] = next
	observers := r.observers
	r.mu.Unlock()

	if prev.Status != next.Status {
		r.logger.Info("Job status changed",
			slog.String("client_key", next.ClientKey),
			slog.String("server_id", next.ServerID),
			slog.String("from", prev.Status.String()),
			slog.String("to", next.Status.String()),
		)
	}

	for _, o := range observers {
		o.JobChanged(prev.Clone(), next.Clone())
	}
	return nil
}

func checkTransition(from, to domain.Status) error {
	if from.IsTerminal() {
		return domain.ErrTerminal
	}
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	return nil
}
