package httpserver

import (
	"github.com/robfig/cron/v3"

	"github.com/cortexlane/cortex/internal/taskstore"
)

// Maintenance schedules a periodic sweep over the Task Store via
// robfig/cron/v3. The sweep only re-reads the store through ListAll; it
// changes no task, expires nothing and resumes nothing, since spec.md
// names no TTL/expiry or stale-claim policy.
type Maintenance struct {
	cron  *cron.Cron
	tasks *taskstore.Store
}

// NewMaintenance builds a Maintenance scheduler bound to a Task Store.
func NewMaintenance(tasks *taskstore.Store) *Maintenance {
	return &Maintenance{cron: cron.New(), tasks: tasks}
}

// Start schedules the sweep (every 5 minutes) and begins running it.
func (m *Maintenance) Start() error {
	_, err := m.cron.AddFunc("@every 5m", m.sweep)
	if err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

func (m *Maintenance) sweep() {
	// ListAll already surfaces current status; a future stale-claim policy
	// would re-walk this output looking for long-running in_progress tasks
	// whose owning teammate has gone quiet and reset them to pending.
	_, _ = m.tasks.ListAll()
}
