package transcoder

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the live-job table: job id to running process. Entries are
// added by Supervisor.Spawn and removed when the process has been reaped.
type Registry struct {
	mu    sync.Mutex
	procs map[string]*Process
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[string]*Process)}
}

func (r *Registry) add(p *Process) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.procs[p.jobID]; exists {
		return fmt.Errorf("%w: %s", ErrJobExists, p.jobID)
	}
	r.procs[p.jobID] = p
	return nil
}

// remove deletes the entry only if it still belongs to p, so a late
// removal cannot evict a newer job that reused the id.
func (r *Registry) remove(p *Process) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.procs[p.jobID]; ok && cur == p {
		delete(r.procs, p.jobID)
	}
}

// Get returns the process registered under jobID.
func (r *Registry) Get(jobID string) (*Process, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.procs[jobID]
	return p, ok
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// IDs returns the registered job ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.procs))
	for id := range r.procs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) snapshot() []*Process {
	r.mu.Lock()
	defer r.mu.Unlock()

	procs := make([]*Process, 0, len(r.procs))
	for _, p := range r.procs {
		procs = append(procs, p)
	}
	return procs
}
