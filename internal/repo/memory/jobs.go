package memory

import (
	"context"
	"time"

	"github.com/geocoder89/inventoryhub/internal/jobs"
	"github.com/geocoder89/inventoryhub/internal/notifications"
)

// JobsRepo is the worker's view of the jobs table.
type JobsRepo struct{ s *Store }

func (s *Store) Jobs() *JobsRepo { return &JobsRepo{s: s} }

// All lists jobs in insertion order.
func (r *JobsRepo) All() []jobs.Job {
	var out []jobs.Job
	_ = r.s.read("jobs.all", func(st *state) error {
		for _, id := range st.jobOrder {
			out = append(out, st.jobs[id])
		}
		return nil
	})
	return out
}

func (r *JobsRepo) Create(_ context.Context, req jobs.CreateRequest) (jobs.Job, error) {
	j := jobs.New(req)
	err := r.s.write("jobs.create", func(st *state) error {
		st.jobs[j.ID] = j
		st.jobOrder = append(st.jobOrder, j.ID)
		return nil
	})
	return j, err
}

func (r *JobsRepo) ClaimNext(_ context.Context, workerID string) (jobs.Job, error) {
	var out jobs.Job
	err := r.s.write("jobs.claim_next", func(st *state) error {
		now := r.s.now().UTC()
		for _, id := range st.jobOrder {
			j := st.jobs[id]
			if j.Status != jobs.StatusPending || j.RunAt.After(now) || j.Attempts >= j.MaxAttempts {
				continue
			}
			j.Status = jobs.StatusProcessing
			j.LockedAt = &now
			wid := workerID
			j.LockedBy = &wid
			j.UpdatedAt = now
			st.jobs[id] = j
			out = j
			return nil
		}
		return jobs.ErrJobNotFound
	})
	return out, err
}

func (r *JobsRepo) update(op, id string, fn func(j *jobs.Job)) error {
	return r.s.write(op, func(st *state) error {
		j, ok := st.jobs[id]
		if !ok {
			return jobs.ErrJobNotFound
		}
		fn(&j)
		j.UpdatedAt = r.s.now().UTC()
		st.jobs[id] = j
		return nil
	})
}

func (r *JobsRepo) MarkDone(_ context.Context, id string) error {
	return r.update("jobs.mark_done", id, func(j *jobs.Job) {
		j.Status = jobs.StatusDone
		j.Attempts++
		j.LockedAt, j.LockedBy, j.LastError = nil, nil, nil
	})
}

func (r *JobsRepo) MarkFailed(_ context.Context, id string, errMsg string) error {
	return r.update("jobs.mark_failed", id, func(j *jobs.Job) {
		j.Status = jobs.StatusFailed
		j.Attempts++
		j.LockedAt, j.LockedBy = nil, nil
		j.LastError = &errMsg
	})
}

func (r *JobsRepo) Reschedule(_ context.Context, id string, runAt time.Time, errMsg string) error {
	return r.update("jobs.reschedule", id, func(j *jobs.Job) {
		j.Status = jobs.StatusPending
		j.Attempts++
		j.RunAt = runAt
		j.LockedAt, j.LockedBy = nil, nil
		j.LastError = &errMsg
	})
}

func (r *JobsRepo) RequeueStaleProcessing(_ context.Context, lockTTL time.Duration) (int64, error) {
	var n int64
	err := r.s.write("jobs.requeue_stale", func(st *state) error {
		cutoff := r.s.now().Add(-lockTTL)
		for id, j := range st.jobs {
			if j.Status == jobs.StatusProcessing && j.LockedAt != nil && j.LockedAt.Before(cutoff) {
				j.Status = jobs.StatusPending
				j.LockedAt, j.LockedBy = nil, nil
				st.jobs[id] = j
				n++
			}
		}
		return nil
	})
	return n, err
}

// DeliveriesRepo mirrors the notification_deliveries table.
type DeliveriesRepo struct{ s *Store }

func (s *Store) Deliveries() *DeliveriesRepo { return &DeliveriesRepo{s: s} }

func (r *DeliveriesRepo) TryStart(_ context.Context, kind, dedupeKey, jobID, recipient string) error {
	return r.s.write("deliveries.try_start", func(st *state) error {
		key := kind + "|" + dedupeKey
		d, ok := st.deliveries[key]
		switch {
		case !ok || d.status == "failed":
			st.deliveries[key] = delivery{jobID: jobID, recipient: recipient, status: "sending"}
			return nil
		case d.status == "sent":
			return notifications.ErrAlreadySent
		default:
			return notifications.ErrInProgress
		}
	})
}

func (r *DeliveriesRepo) MarkSent(_ context.Context, kind, dedupeKey string) error {
	return r.s.write("deliveries.mark_sent", func(st *state) error {
		key := kind + "|" + dedupeKey
		d := st.deliveries[key]
		d.status = "sent"
		d.lastError = ""
		st.deliveries[key] = d
		return nil
	})
}

func (r *DeliveriesRepo) MarkFailed(_ context.Context, kind, dedupeKey, errMsg string) error {
	return r.s.write("deliveries.mark_failed", func(st *state) error {
		key := kind + "|" + dedupeKey
		d := st.deliveries[key]
		d.status = "failed"
		d.lastError = errMsg
		st.deliveries[key] = d
		return nil
	})
}

// Status returns a delivery row's status, or "" when there is none.
func (r *DeliveriesRepo) Status(kind, dedupeKey string) string {
	var out string
	_ = r.s.read("deliveries.status", func(st *state) error {
		out = st.deliveries[kind+"|"+dedupeKey].status
		return nil
	})
	return out
}
