// Package jobs tracks every summarization job for the lifetime of the
// process. The registry owns creation and revival; each job carries its
// own lock so a mutation and the broadcast of its result form one
// atomic step.
package jobs

import (
	"sync"

	"github.com/codeready-toolchain/vidsum/pkg/models"
)

// Broadcaster receives job lifecycle events. Implemented by the jobs
// event hub.
type Broadcaster interface {
	BroadcastNew(job models.Job)
	BroadcastUpdate(job models.Job)
}

// MetaStore is the slice of the video store the registry keeps in step
// with job lifecycle: the failure flag is cleared on revival, and
// metadata is backfilled the first time a mutation produces it.
type MetaStore interface {
	Exists(videoID string) bool
	Create(entry models.VideoEntry)
	ClearJobFailure(videoID string)
}

// Job is one live summarization job. Mutations go through
// Registry.Mutate; reads take a snapshot via Clone.
type Job struct {
	mu   sync.RWMutex
	data models.Job
}

// VideoID returns the job's video id. Immutable after creation.
func (j *Job) VideoID() string {
	return j.data.VideoID
}

// Status returns the job's current status.
func (j *Job) Status() models.JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.data.Status
}

// Clone returns a copy of the job safe to marshal or hold without the
// lock.
func (j *Job) Clone() models.Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.cloneLocked()
}

func (j *Job) cloneLocked() models.Job {
	out := j.data
	if j.data.Progress.VideoMeta != nil {
		meta := *j.data.Progress.VideoMeta
		out.Progress.VideoMeta = &meta
	}
	return out
}

// Registry is the in-memory map of jobs keyed by video id. Jobs are
// never removed; a finished or failed job stays visible until the
// process exits, and a failed one is replaced on retry.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	hub   Broadcaster
	store MetaStore
}

// NewRegistry creates an empty registry.
func NewRegistry(store MetaStore, hub Broadcaster) *Registry {
	return &Registry{
		jobs:  make(map[string]*Job),
		hub:   hub,
		store: store,
	}
}

// CreateOrRevive returns the live job for videoID. If one already
// exists and has not failed, it is returned with existed = true and
// nothing else happens. Otherwise a fresh pending job replaces it, the
// durable failure flag is cleared, and a new event is broadcast.
func (r *Registry) CreateOrRevive(videoID string) (existed bool, job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if j, ok := r.jobs[videoID]; ok && j.Status() != models.StatusFailed {
		return true, j
	}

	// Reset durable failure state when creating or retrying.
	r.store.ClearJobFailure(videoID)

	j := &Job{data: models.Job{
		VideoID: videoID,
		Status:  models.StatusPending,
	}}

	r.hub.BroadcastNew(j.Clone())
	r.jobs[videoID] = j

	return false, j
}

// Get returns the job for videoID, if any.
func (r *Registry) Get(videoID string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[videoID]
	return j, ok
}

// GetAll returns a snapshot of every job keyed by video id.
func (r *Registry) GetAll() map[string]models.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]models.Job, len(r.jobs))
	for id, j := range r.jobs {
		out[id] = j.Clone()
	}
	return out
}

// Mutate applies fn to the job under its write lock and broadcasts the
// resulting state before releasing it, so updates reach subscribers in
// mutation order. fn must not change VideoID. When a mutation first
// produces video metadata and the store has no entry yet, one is
// created.
func (r *Registry) Mutate(j *Job, fn func(*models.Job)) {
	j.mu.Lock()
	defer j.mu.Unlock()

	fn(&j.data)
	snap := j.cloneLocked()

	r.hub.BroadcastUpdate(snap)

	if snap.Progress.VideoMeta != nil && !r.store.Exists(snap.VideoID) {
		r.store.Create(*snap.Progress.VideoMeta)
	}
}

// SetStatus is a convenience wrapper around Mutate for plain status
// transitions.
func (r *Registry) SetStatus(j *Job, status models.JobStatus) {
	r.Mutate(j, func(data *models.Job) {
		data.Status = status
	})
}
