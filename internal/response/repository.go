package response

import (
	"errors"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

var ErrSessionNotFound = errors.New("session not found")

// Repository keeps sessions in memory for the lifetime of a browser tab.
type Repository interface {
	Get(id uuid.UUID) (*Session, error)
	Save(s *Session)
	Delete(id uuid.UUID)
}

type cacheRepo struct {
	cache *gocache.Cache
}

// NewRepository expires a session after ttl without requests and stops its speech.
func NewRepository(ttl time.Duration) Repository {
	c := gocache.New(ttl, ttl/4+time.Minute)
	c.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*Session); ok && s.player != nil {
			s.player.Stop()
		}
	})
	return &cacheRepo{cache: c}
}

func (r *cacheRepo) Get(id uuid.UUID) (*Session, error) {
	v, found := r.cache.Get(id.String())
	if !found {
		return nil, ErrSessionNotFound
	}
	s := v.(*Session)
	r.cache.Set(id.String(), s, gocache.DefaultExpiration)
	return s, nil
}

func (r *cacheRepo) Save(s *Session) {
	r.cache.Set(s.ID.String(), s, gocache.DefaultExpiration)
}

func (r *cacheRepo) Delete(id uuid.UUID) {
	r.cache.Delete(id.String())
}
