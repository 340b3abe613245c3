// Package directory caches the user list used for mention matching.
package directory

import (
	"context"
	"sort"
	"time"

	"candidate-collab/internal/mention"
	"candidate-collab/internal/model"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const usersKey = "users"

type Source interface {
	Users(ctx context.Context) ([]model.DirectoryEntry, error)
}

// Directory serves the user list from a TTL cache. Concurrent misses share a
// single fetch.
type Directory struct {
	source Source
	cache  *cache.Cache
	group  singleflight.Group
}

func New(source Source, ttl time.Duration) *Directory {
	return &Directory{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
	}
}

// Users returns the directory sorted by username.
func (d *Directory) Users(ctx context.Context) ([]model.DirectoryEntry, error) {
	if x, found := d.cache.Get(usersKey); found {
		return x.([]model.DirectoryEntry), nil
	}

	v, err, _ := d.group.Do(usersKey, func() (interface{}, error) {
		users, err := d.source.Users(ctx)
		if err != nil {
			return nil, err
		}
		sorted := append([]model.DirectoryEntry(nil), users...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Username < sorted[j].Username
		})
		d.cache.Set(usersKey, sorted, cache.DefaultExpiration)
		return sorted, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.DirectoryEntry), nil
}

// Matcher compiles a mention matcher over the current directory.
func (d *Directory) Matcher(ctx context.Context, opts ...mention.Option) (*mention.Matcher, error) {
	users, err := d.Users(ctx)
	if err != nil {
		return nil, err
	}
	return mention.NewMatcher(users, opts...), nil
}

// Invalidate drops the cached list so the next call fetches again.
func (d *Directory) Invalidate() {
	d.cache.Delete(usersKey)
}
