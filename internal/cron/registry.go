package cron

import "context"

// Job is a unit of scheduled maintenance work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a worker runs each tick, in registration order.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry from the given jobs, skipping nils so
// callers can pass conditionally constructed jobs directly.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, j := range jobs {
		r.Register(j)
	}
	return r
}

// Register appends a job. Nil jobs are ignored.
func (r *Registry) Register(j Job) {
	if j != nil {
		r.jobs = append(r.jobs, j)
	}
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}
