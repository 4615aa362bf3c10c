package notification

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// Store persists notifications. Save must reject a second notification with
// the same Key by returning ErrDuplicate.
type Store interface {
	Save(ctx context.Context, n *Notification) error
	Exists(ctx context.Context, key Key) (bool, error)
	Get(ctx context.Context, id string) (*Notification, error)
	List(ctx context.Context, filter *FilterOptions) ([]*Notification, error)
}

// FilterOptions narrows List results
type FilterOptions struct {
	Recipient string
	Kinds     []Kind
	Subject   *Subject
	Since     *time.Time
	Limit     int
	Offset    int
}

// matches reports whether n passes every set filter field
func (f *FilterOptions) matches(n *Notification) bool {
	if f == nil {
		return true
	}
	if f.Recipient != "" && n.Recipient != f.Recipient {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, n.Kind) {
		return false
	}
	if f.Subject != nil && n.Subject != *f.Subject {
		return false
	}
	if f.Since != nil && n.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// paginate applies Offset and Limit to an already sorted slice
func (f *FilterOptions) paginate(list []*Notification) []*Notification {
	if f == nil {
		return list
	}
	if f.Offset > 0 {
		if f.Offset >= len(list) {
			return []*Notification{}
		}
		list = list[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(list) {
		list = list[:f.Limit]
	}
	return list
}

// InMemoryStore keeps notifications in process memory. Entries are never
// evicted since the uniqueness key must hold for the life of the store.
type InMemoryStore struct {
	mu            sync.RWMutex
	notifications map[string]*Notification
	keys          map[Key]string
}

// NewInMemoryStore creates an empty store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		notifications: make(map[string]*Notification),
		keys:          make(map[Key]string),
	}
}

// Save stores a copy of n
func (s *InMemoryStore) Save(ctx context.Context, n *Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := n.Key()
	if _, ok := s.keys[key]; ok {
		return ErrDuplicate
	}
	s.notifications[n.ID] = n.Clone()
	s.keys[key] = n.ID
	return nil
}

// Exists reports whether a notification with key is stored
func (s *InMemoryStore) Exists(ctx context.Context, key Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.keys[key]
	return ok, nil
}

// Get returns a copy of the notification with the given ID
func (s *InMemoryStore) Get(ctx context.Context, id string) (*Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	return n.Clone(), nil
}

// List returns matching notifications, newest first
func (s *InMemoryStore) List(ctx context.Context, filter *FilterOptions) ([]*Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	result := make([]*Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if filter.matches(n) {
			result = append(result, n.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return filter.paginate(result), nil
}

// Len returns the number of stored notifications
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notifications)
}
