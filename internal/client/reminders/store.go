// Package reminders binds the query cache to the data client: it owns the
// query-key vocabulary and the mapping from each mutation to the entries
// it makes stale.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/dpoeymirou/call-me-reminder/internal/client/api"
	"github.com/dpoeymirou/call-me-reminder/internal/client/cache"
	"github.com/dpoeymirou/call-me-reminder/internal/shared/models"
	"github.com/dpoeymirou/call-me-reminder/internal/shared/validate"
)

// Query keys. Everything lives under the "reminders" prefix so one
// invalidation from the live channel covers all of it.
const (
	keyPrefix  = "reminders"
	listPrefix = "reminders:list"
	getPrefix  = "reminders:get:"
)

func listKey(status *models.ReminderStatus) string {
	if status == nil {
		return listPrefix
	}
	return listPrefix + ":" + string(*status)
}

func getKey(id string) string { return getPrefix + id }

// ValidationError wraps the validator's field errors so callers can
// distinguish a pre-submission rejection from a server one.
type ValidationError struct {
	Fields []validate.FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reminder: %d field error(s)", len(e.Fields))
}

type Store struct {
	api   *api.Client
	cache *cache.Cache
	now   func() time.Time
}

func NewStore(apiClient *api.Client, c *cache.Cache) *Store {
	return &Store{api: apiClient, cache: c, now: time.Now}
}

// List returns reminders through the cache, optionally server-filtered.
func (s *Store) List(ctx context.Context, status *models.ReminderStatus) ([]models.Reminder, error) {
	v, err := s.cache.ReadWait(ctx, listKey(status), func(ctx context.Context) (any, error) {
		return s.api.List(ctx, status)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Reminder), nil
}

// Get returns one reminder through the cache.
func (s *Store) Get(ctx context.Context, id string) (models.Reminder, error) {
	v, err := s.cache.ReadWait(ctx, getKey(id), func(ctx context.Context) (any, error) {
		return s.api.Get(ctx, id)
	})
	if err != nil {
		return models.Reminder{}, err
	}
	return v.(models.Reminder), nil
}

// Create validates the candidate first; nothing is sent when validation
// fails. On success every list entry goes stale.
func (s *Store) Create(ctx context.Context, req models.CreateReminderRequest) (models.Reminder, error) {
	if errs := validate.Validate(validate.Input{
		Title:         req.Title,
		Message:       req.Message,
		PhoneNumber:   req.PhoneNumber,
		ScheduledTime: req.ScheduledTime,
		Timezone:      req.Timezone,
	}, s.now()); len(errs) > 0 {
		return models.Reminder{}, &ValidationError{Fields: errs}
	}
	var created models.Reminder
	err := s.cache.Mutate(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.api.Create(ctx, req)
		return err
	}, listPrefix)
	return created, err
}

// Update validates only the fields being changed, merged onto the current
// record so the schedule pair is always checked as a pair.
func (s *Store) Update(ctx context.Context, id string, req models.UpdateReminderRequest) (models.Reminder, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return models.Reminder{}, err
	}
	in := validate.Input{
		Title:         orCurrent(req.Title, current.Title),
		Message:       orCurrent(req.Message, current.Message),
		PhoneNumber:   orCurrent(req.PhoneNumber, current.PhoneNumber),
		ScheduledTime: orCurrent(req.ScheduledTime, current.ScheduledTime),
		Timezone:      orCurrent(req.Timezone, current.Timezone),
	}
	if errs := validate.Validate(in, s.now()); len(errs) > 0 {
		return models.Reminder{}, &ValidationError{Fields: errs}
	}
	var updated models.Reminder
	err = s.cache.Mutate(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.api.Update(ctx, id, req)
		return err
	}, listPrefix, getKey(id))
	return updated, err
}

// Delete removes the reminder and makes its entry and every list stale.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.cache.Mutate(ctx, func(ctx context.Context) error {
		return s.api.Delete(ctx, id)
	}, listPrefix, getKey(id))
}

// InvalidateAll marks every reminder query stale. The live update channel
// calls this path (via the cache) when a push event arrives.
func (s *Store) InvalidateAll() {
	s.cache.Invalidate(keyPrefix)
}

func orCurrent(v *string, current string) string {
	if v != nil {
		return *v
	}
	return current
}
