package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/dpoeymirou/call-me-reminder/internal/client/api"
	"github.com/dpoeymirou/call-me-reminder/internal/client/cache"
	"github.com/dpoeymirou/call-me-reminder/internal/shared/models"
)

type noToken struct{}

func (noToken) Token() string { return "" }

// fakeService is an in-memory reminders backend with request counters.
type fakeService struct {
	mu        sync.Mutex
	items     map[string]models.Reminder
	nextID    int
	listCalls atomic.Int64
	getCalls  atomic.Int64
}

func (s *fakeService) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/reminders", func(w http.ResponseWriter, req *http.Request) {
		s.listCalls.Add(1)
		status := req.URL.Query().Get("status")
		s.mu.Lock()
		out := []models.Reminder{}
		for _, it := range s.items {
			if status == "" || status == string(it.Status) {
				out = append(out, it)
			}
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
	})
	r.Get("/reminders/{id}", func(w http.ResponseWriter, req *http.Request) {
		s.getCalls.Add(1)
		s.mu.Lock()
		it, ok := s.items[chi.URLParam(req, "id")]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, it)
	})
	r.Post("/reminders", func(w http.ResponseWriter, req *http.Request) {
		var create models.CreateReminderRequest
		_ = json.NewDecoder(req.Body).Decode(&create)
		s.mu.Lock()
		s.nextID++
		it := models.Reminder{
			ID: "r-" + strconv.Itoa(s.nextID), Title: create.Title,
			Message: create.Message, PhoneNumber: create.PhoneNumber,
			ScheduledTime: create.ScheduledTime, Timezone: create.Timezone,
			Status: models.StatusScheduled,
		}
		s.items[it.ID] = it
		s.mu.Unlock()
		writeJSON(w, http.StatusCreated, it)
	})
	r.Put("/reminders/{id}", func(w http.ResponseWriter, req *http.Request) {
		var update models.UpdateReminderRequest
		_ = json.NewDecoder(req.Body).Decode(&update)
		s.mu.Lock()
		it, ok := s.items[chi.URLParam(req, "id")]
		if ok {
			if update.Title != nil {
				it.Title = *update.Title
			}
			if update.ScheduledTime != nil {
				it.ScheduledTime = *update.ScheduledTime
			}
			s.items[it.ID] = it
		}
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, it)
	})
	r.Delete("/reminders/{id}", func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		delete(s.items, chi.URLParam(req, "id"))
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func (s *fakeService) setStatus(id string, status models.ReminderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.items[id]
	it.Status = status
	s.items[id] = it
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestStore(t *testing.T) (*Store, *cache.Cache, *fakeService) {
	t.Helper()
	svc := &fakeService{items: map[string]models.Reminder{}}
	srv := httptest.NewServer(svc.handler())
	t.Cleanup(srv.Close)
	c := cache.New(nil)
	return NewStore(api.New(srv.URL, noToken{}, nil), c), c, svc
}

func validCreate() models.CreateReminderRequest {
	return models.CreateReminderRequest{
		Title:         "Call Mom",
		Message:       "wish her happy birthday",
		PhoneNumber:   "+14155552671",
		ScheduledTime: "2099-01-01T10:00",
		Timezone:      "America/New_York",
	}
}

func TestCreate_ValidationStopsBeforeNetwork(t *testing.T) {
	store, _, svc := newTestStore(t)

	req := validCreate()
	req.PhoneNumber = "not-a-phone"
	req.Title = ""
	_, err := store.Create(context.Background(), req)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if len(verr.Fields) != 2 {
		t.Fatalf("want 2 field errors, got %v", verr.Fields)
	}
	svc.mu.Lock()
	stored := len(svc.items)
	svc.mu.Unlock()
	if stored != 0 || svc.listCalls.Load() != 0 || svc.getCalls.Load() != 0 {
		t.Fatal("validation failure reached the network")
	}
}

// Create must make every cached list entry stale; the next list read
// refetches and shows the new reminder with status "scheduled".
func TestCreate_InvalidatesAllListEntries(t *testing.T) {
	store, _, svc := newTestStore(t)
	ctx := context.Background()

	// Warm both an unfiltered and a filtered list entry.
	if _, err := store.List(ctx, nil); err != nil {
		t.Fatal(err)
	}
	scheduled := models.StatusScheduled
	if _, err := store.List(ctx, &scheduled); err != nil {
		t.Fatal(err)
	}
	warm := svc.listCalls.Load()

	created, err := store.Create(ctx, validCreate())
	if err != nil {
		t.Fatal(err)
	}
	if created.Status != models.StatusScheduled {
		t.Fatalf("created status: %q", created.Status)
	}

	items, err := store.List(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != created.ID {
		t.Fatalf("new reminder missing from list: %+v", items)
	}
	filtered, err := store.List(ctx, &scheduled)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 {
		t.Fatalf("filtered list stale: %+v", filtered)
	}
	if got := svc.listCalls.Load(); got < warm+2 {
		t.Fatalf("list entries were not refetched: %d calls after %d", got, warm)
	}
}

// A push-driven invalidation makes a cached get entry refetch and reflect
// the server-side status change.
func TestInvalidateAll_RefreshesCachedGet(t *testing.T) {
	store, _, svc := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, validCreate())
	if err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusScheduled {
		t.Fatalf("initial status: %q", got.Status)
	}

	// Server-side: the call was placed and completed.
	svc.setStatus(created.ID, models.StatusCompleted)

	// Without invalidation the cache keeps serving the old status.
	got, _ = store.Get(ctx, created.ID)
	if got.Status != models.StatusScheduled {
		t.Fatalf("cache refetched without invalidation: %q", got.Status)
	}

	store.InvalidateAll()
	got, err = store.Get(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusCompleted {
		t.Fatalf("status after invalidation: %q", got.Status)
	}
}

func TestUpdate_MergedValidation(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, validCreate())
	if err != nil {
		t.Fatal(err)
	}

	// Changing only the title keeps the rest of the record valid.
	title := "Call Mom tonight"
	updated, err := store.Update(ctx, created.ID, models.UpdateReminderRequest{Title: &title})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != title {
		t.Fatalf("title: %q", updated.Title)
	}

	// Moving the schedule into the past is caught client-side.
	past := "2000-01-01T10:00"
	_, err = store.Update(ctx, created.ID, models.UpdateReminderRequest{ScheduledTime: &past})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestDelete_InvalidatesGetEntry(t *testing.T) {
	store, _, svc := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, validCreate())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	before := svc.getCalls.Load()

	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(ctx, created.ID); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("deleted reminder still cached: %v", err)
	}
	if got := svc.getCalls.Load(); got <= before {
		t.Fatal("get entry was not refetched after delete")
	}
}
