// Package resource memoizes immutable upstream resources and builds image volumes from them.
package resource

import (
	"context"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/cache"
	"github.com/clovid/prisma-sub000/internal/pkg/remote"
)

// StaticCache remembers upstream resources that never change once published: test and case
// structures, lists, image metadata and sub-form listings. Entries live for the module's
// cache_ttl, or forever when none is set.
type StaticCache struct {
	Store cache.Store
}

func NewStaticCache(store cache.Store) *StaticCache {
	return &StaticCache{Store: store}
}

func remember[T any](ctx context.Context, s *StaticCache, client *remote.Client, kind string, id string, fn func() (T, error)) (T, error) {
	return cache.Remember(ctx, s.Store, cache.Key(kind, client.Module, id), client.Config().CacheTTL, fn)
}

func (s *StaticCache) Structure(ctx context.Context, client *remote.Client, taskID model.ID) (*model.Structure, error) {
	return remember(ctx, s, client, "structure", taskID.String(), func() (*model.Structure, error) {
		var st model.Structure
		if err := client.GetJSON(ctx, client.Config().TaskRoute+"/"+url.PathEscape(taskID.String()), nil, &st); err != nil {
			return nil, err
		}
		return &st, nil
	})
}

// ListItems returns the items of an upstream list. Both a bare array and {"items": [...]} are
// accepted.
func (s *StaticCache) ListItems(ctx context.Context, client *remote.Client, listID model.ID) ([]model.ListItem, error) {
	return remember(ctx, s, client, "list", listID.String(), func() ([]model.ListItem, error) {
		body, err := client.GetBody(ctx, "lists/"+url.PathEscape(listID.String()), nil)
		if err != nil {
			return nil, err
		}
		var items []model.ListItem
		if err := json.Unmarshal([]byte(unwrap(body, "items").Raw), &items); err != nil {
			return nil, &remote.FetchError{Module: client.Module, URL: "lists/" + listID.String(), Err: remote.ErrMalformedResponse}
		}
		return items, nil
	})
}

// ImageMeta returns the volume metadata of an image or overlay.
func (s *StaticCache) ImageMeta(ctx context.Context, client *remote.Client, route string, id model.ID) (*model.ImageRef, error) {
	return remember(ctx, s, client, "image-meta", route+"/"+id.String(), func() (*model.ImageRef, error) {
		var ref model.ImageRef
		if err := client.GetJSON(ctx, route+"/"+url.PathEscape(id.String()), nil, &ref); err != nil {
			return nil, err
		}
		return &ref, nil
	})
}

// Forms lists the sub-forms available for a task.
func (s *StaticCache) Forms(ctx context.Context, client *remote.Client, taskID model.ID) ([]string, error) {
	return remember(ctx, s, client, "forms", taskID.String(), func() ([]string, error) {
		body, err := client.GetBody(ctx, client.Config().TaskRoute+"/"+url.PathEscape(taskID.String())+"/forms", nil)
		if err != nil {
			return nil, err
		}
		var forms []string
		unwrap(body, "forms").ForEach(func(_, v gjson.Result) bool {
			if v.IsObject() {
				forms = append(forms, v.Get("name").String())
			} else {
				forms = append(forms, v.String())
			}
			return true
		})
		return forms, nil
	})
}

// unwrap returns the array under key when body is an object, or body itself.
func unwrap(body []byte, key string) gjson.Result {
	r := gjson.ParseBytes(body)
	if r.IsObject() {
		for _, k := range []string{key, "data"} {
			if v := r.Get(k); v.Exists() {
				return v
			}
		}
	}
	return r
}
