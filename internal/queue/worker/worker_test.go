package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/inventoryhub/internal/domain/role"
	"github.com/geocoder89/inventoryhub/internal/domain/user"
	"github.com/geocoder89/inventoryhub/internal/jobs"
	"github.com/geocoder89/inventoryhub/internal/notifications"
	"github.com/geocoder89/inventoryhub/internal/repo/memory"
)

func newTestWorker(t *testing.T) (*Worker, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	w := New(Config{WorkerID: "test-1"}, store.Jobs(), nil, nil)
	w.backoff = func(int) time.Duration { return time.Hour }
	return w, store
}

func enqueue(t *testing.T, store *memory.Store, maxAttempts int) jobs.Job {
	t.Helper()
	req, err := jobs.NewAccessGranted(jobs.AccessGrantedPayload{
		InventoryID: 1, InventoryName: "Pantry", UserID: 1, Role: role.Read,
	})
	if err != nil {
		t.Fatalf("NewAccessGranted: %v", err)
	}
	req.MaxAttempts = maxAttempts
	j, err := store.Jobs().Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return j
}

func onlyJob(t *testing.T, store *memory.Store) jobs.Job {
	t.Helper()
	all := store.Jobs().All()
	if len(all) != 1 {
		t.Fatalf("expected 1 job, got %d", len(all))
	}
	return all[0]
}

func TestProcessOne_NothingToDo(t *testing.T) {
	w, _ := newTestWorker(t)

	processed, err := w.ProcessOne(context.Background())
	if err != nil || processed {
		t.Fatalf("expected (false, nil), got (%v, %v)", processed, err)
	}
}

func TestProcessOne_Success(t *testing.T) {
	w, store := newTestWorker(t)
	enqueue(t, store, 0)

	calls := 0
	w.Handle(jobs.TypeAccessGranted, func(context.Context, jobs.Job) error {
		calls++
		return nil
	})

	processed, err := w.ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("expected (true, nil), got (%v, %v)", processed, err)
	}

	j := onlyJob(t, store)
	if j.Status != jobs.StatusDone || calls != 1 {
		t.Fatalf("expected done after one call, got %s after %d", j.Status, calls)
	}
	s := w.Metrics()
	if s.Done != 1 || s.Claimed != 1 {
		t.Fatalf("expected one claimed and done, got %+v", s.JobTypeStats)
	}
	if s.ByType[string(jobs.TypeAccessGranted)].Done != 1 || s.LastSuccessAt == nil || s.LastFailureAt != nil {
		t.Fatalf("unexpected per-type stats %+v", s)
	}
}

func TestProcessOne_RetryWithBackoff(t *testing.T) {
	w, store := newTestWorker(t)
	enqueue(t, store, 3)

	w.Handle(jobs.TypeAccessGranted, func(context.Context, jobs.Job) error {
		return errors.New("smtp timeout")
	})

	before := time.Now()
	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	j := onlyJob(t, store)
	if j.Status != jobs.StatusPending || j.Attempts != 1 {
		t.Fatalf("expected pending with 1 attempt, got %s/%d", j.Status, j.Attempts)
	}
	if j.RunAt.Before(before.Add(59 * time.Minute)) {
		t.Fatalf("expected run_at pushed out by backoff, got %s", j.RunAt)
	}
	if j.LastError == nil || *j.LastError != "smtp timeout" {
		t.Fatalf("expected last error recorded, got %v", j.LastError)
	}

	// not runnable yet
	processed, err := w.ProcessOne(context.Background())
	if err != nil || processed {
		t.Fatalf("expected nothing claimable, got (%v, %v)", processed, err)
	}
}

func TestProcessOne_FailsAfterMaxAttempts(t *testing.T) {
	w, store := newTestWorker(t)
	w.backoff = func(int) time.Duration { return 0 }
	enqueue(t, store, 2)

	w.Handle(jobs.TypeAccessGranted, func(context.Context, jobs.Job) error {
		return errors.New("still down")
	})

	for i := 0; i < 2; i++ {
		if _, err := w.ProcessOne(context.Background()); err != nil {
			t.Fatalf("ProcessOne %d: %v", i, err)
		}
	}

	j := onlyJob(t, store)
	if j.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", j.Status)
	}
	if w.Metrics().DeadLettered != 1 || w.Metrics().Retried != 1 {
		t.Fatalf("unexpected metrics %+v", w.Metrics())
	}
}

func TestProcessOne_UnknownTypeFailsImmediately(t *testing.T) {
	w, store := newTestWorker(t)
	enqueue(t, store, 10)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if j := onlyJob(t, store); j.Status != jobs.StatusFailed {
		t.Fatalf("expected failed for unhandled type, got %s", j.Status)
	}
}

func TestProcessOne_PanicIsRetried(t *testing.T) {
	w, store := newTestWorker(t)
	enqueue(t, store, 5)

	w.Handle(jobs.TypeAccessGranted, func(context.Context, jobs.Job) error {
		panic("nil map")
	})

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if j := onlyJob(t, store); j.Status != jobs.StatusPending {
		t.Fatalf("expected pending after panic, got %s", j.Status)
	}
}

func TestProcessOne_AccessGrantedEndToEnd(t *testing.T) {
	w, store := newTestWorker(t)
	ctx := context.Background()

	u, err := store.Create(ctx, user.User{Email: "bob@example.com", Name: "Bob", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	req, err := jobs.NewAccessGranted(jobs.AccessGrantedPayload{
		InventoryID: 3, InventoryName: "Garage", UserID: u.ID, Role: role.Admin,
	})
	if err != nil {
		t.Fatalf("NewAccessGranted: %v", err)
	}
	j, err := store.Jobs().Create(ctx, req)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	h := notifications.NewAccessGrantedHandler(store, store.Deliveries(), notifications.NewLogNotifier(nil), nil)
	w.Handle(jobs.TypeAccessGranted, h.Handle)

	if _, err := w.ProcessOne(ctx); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if got := store.Deliveries().Status(notifications.KindAccessGranted, "job:"+j.ID); got != "sent" {
		t.Fatalf("expected delivery sent, got %q", got)
	}
	if j := onlyJob(t, store); j.Status != jobs.StatusDone {
		t.Fatalf("expected done, got %s", j.Status)
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	w, _ := newTestWorker(t)
	h := w.HealthHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before Run, got %d", rec.Code)
	}

	w.setReady(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when ready, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", rec.Code)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	w, store := newTestWorker(t)
	w.cfg.PollInterval = 5 * time.Millisecond
	w.cfg.Concurrency = 2
	enqueue(t, store, 0)

	done := make(chan struct{})
	w.Handle(jobs.TypeAccessGranted, func(context.Context, jobs.Job) error {
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("job was not processed")
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}

func TestExponentialBackoff_Capped(t *testing.T) {
	if d := ExponentialBackoff(0); d < 2*time.Second || d >= 2*time.Second+250*time.Millisecond {
		t.Fatalf("attempt 0: got %s", d)
	}
	if d := ExponentialBackoff(40); d < 5*time.Minute || d >= 5*time.Minute+250*time.Millisecond {
		t.Fatalf("attempt 40: got %s", d)
	}
}
