// Package trackers implements the in-memory shutdown/plan-approval
// correlation tables of spec §4.6, grounded on the original source's
// module-level shutdown_requests/plan_requests dicts plus a single
// tracker_lock (backend/app/team/state.py).
package trackers

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a tracked request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ShutdownRequest correlates a shutdown_request with its eventual response.
type ShutdownRequest struct {
	Target string
	Status Status
	Reason string
}

// PlanRequest correlates a plan_approval submission with the lead's verdict.
type PlanRequest struct {
	From   string
	Plan   string
	Status Status
}

// Trackers holds both correlation tables under one mutex, per spec §5
// "The Tracer, the two Request Trackers, and the Task Board claim hold the
// only cross-thread locks."
type Trackers struct {
	mu        sync.Mutex
	shutdowns map[string]*ShutdownRequest
	plans     map[string]*PlanRequest
}

// New returns an empty Trackers. cmd/cortex builds one per process, for the
// session opened at start-up; nothing subscribes it to a session.Switcher,
// so it is not rebuilt on a session switch.
func New() *Trackers {
	return &Trackers{
		shutdowns: make(map[string]*ShutdownRequest),
		plans:     make(map[string]*PlanRequest),
	}
}

func newID() string {
	return uuid.NewString()[:8]
}

// RequestShutdown records a new pending shutdown request and returns its id.
func (t *Trackers) RequestShutdown(target string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := newID()
	t.shutdowns[id] = &ShutdownRequest{Target: target, Status: StatusPending}
	return id
}

// RespondShutdown flips a shutdown request to approved/rejected. Returns an
// error for an unknown request_id (spec §7 "Protocol violations").
func (t *Trackers) RespondShutdown(id string, approve bool, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.shutdowns[id]
	if !ok {
		return fmt.Errorf("unknown request_id %q", id)
	}
	if approve {
		r.Status = StatusApproved
	} else {
		r.Status = StatusRejected
	}
	r.Reason = reason
	return nil
}

// ShutdownStatus polls a shutdown request's current status.
func (t *Trackers) ShutdownStatus(id string) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.shutdowns[id]
	if !ok {
		return "", fmt.Errorf("unknown request_id %q", id)
	}
	return r.Status, nil
}

// SubmitPlan records a new pending plan-approval request and returns its id.
func (t *Trackers) SubmitPlan(from, plan string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := newID()
	t.plans[id] = &PlanRequest{From: from, Plan: plan, Status: StatusPending}
	return id
}

// RespondPlan flips a plan-approval request to approved/rejected.
func (t *Trackers) RespondPlan(id string, approve bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.plans[id]
	if !ok {
		return fmt.Errorf("unknown request_id %q", id)
	}
	if approve {
		p.Status = StatusApproved
	} else {
		p.Status = StatusRejected
	}
	return nil
}

// PlanStatus polls a plan-approval request's current status.
func (t *Trackers) PlanStatus(id string) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.plans[id]
	if !ok {
		return "", fmt.Errorf("unknown request_id %q", id)
	}
	return p.Status, nil
}
