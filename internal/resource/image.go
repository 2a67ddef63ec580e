package resource

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/zeebo/xxh3"

	"github.com/clovid/prisma-sub000/internal/model"
	"github.com/clovid/prisma-sub000/internal/pkg/cache"
	"github.com/clovid/prisma-sub000/internal/pkg/remote"
)

var ErrMissingDimensions = errors.New("image volume has no dimensions")

// ImageVolumes builds image volumes from upstream metadata and slices them into lazily
// fetched, hash addressed slice references.
type ImageVolumes struct {
	Static *StaticCache
}

func NewImageVolumes(static *StaticCache) *ImageVolumes {
	return &ImageVolumes{Static: static}
}

func (r *ImageVolumes) route(client *remote.Client, typ string) string {
	if typ == model.ImageTypeOverlay {
		return client.Config().OverlayRoute
	}
	return client.Config().ImageRoute
}

// Build creates the volume for ref, building its overlay first. Metadata missing from ref is
// fetched from the module. A volume without dimensions is an error wrapping
// ErrMissingDimensions.
func (r *ImageVolumes) Build(ctx context.Context, client *remote.Client, ref *model.ImageRef, typ string) (*model.ImageVolume, error) {
	if ref == nil {
		return nil, errors.New("image reference is nil")
	}
	if ref.Type != "" {
		typ = ref.Type
	}

	var overlays []*model.ImageVolume
	if ref.Overlay != nil {
		overlay, err := r.Build(ctx, client, ref.Overlay, model.ImageTypeOverlay)
		if err != nil {
			return nil, err
		}
		overlays = append(overlays, overlay)
	}

	meta := ref
	if ref.Dimensions == nil {
		fetched, err := r.Static.ImageMeta(ctx, client, r.route(client, typ), ref.ID)
		if err != nil {
			return nil, err
		}
		meta = fetched
	}
	if meta.Dimensions == nil {
		return nil, errors.Wrapf(ErrMissingDimensions, "%s %s of module %s", typ, ref.ID, client.Module)
	}

	v := &model.ImageVolume{
		ID:          ref.ID,
		Type:        typ,
		Title:       lo.Ternary(ref.Title != "", ref.Title, meta.Title),
		Orientation: lo.Ternary(ref.Orientation != "", ref.Orientation, meta.Orientation),
		Dimensions:  *meta.Dimensions,
		Window:      lo.Ternary(!ref.Window.IsZero(), ref.Window, meta.Window),
		Overlays:    overlays,
	}
	if v.Orientation == "" {
		v.Orientation = model.AxisZ
	}
	if meta.Offset != nil {
		v.Offset = *meta.Offset
	}
	if typ != model.ImageTypeImage {
		v.Window = nil
	}
	return v, nil
}

// LoadSlices fills the slices of every image. Each image's slice list is cached by its id,
// overlays, orientation and window.
func (r *ImageVolumes) LoadSlices(ctx context.Context, client *remote.Client, images []*model.ImageVolume) ([]*model.ImageVolume, error) {
	for _, img := range images {
		slices, err := cache.RememberForever(ctx, r.Static.Store, cache.Key("slices", client.Module, sliceListHash(img)),
			func() ([]*model.SliceRef, error) {
				return r.slice(ctx, client, img)
			})
		if err != nil {
			return nil, err
		}
		img.Slices = slices
	}
	return images, nil
}

func (r *ImageVolumes) slice(ctx context.Context, client *remote.Client, img *model.ImageVolume) ([]*model.SliceRef, error) {
	refs, err := r.volumeSlices(ctx, client, img, img.Orientation)
	if err != nil {
		return nil, err
	}

	for _, overlay := range img.Overlays {
		overlayRefs, err := r.volumeSlices(ctx, client, overlay, img.Orientation)
		if err != nil {
			return nil, err
		}
		start := overlay.Offset.Axis(img.Orientation)
		for j, ref := range overlayRefs {
			p := start + j
			if p < 0 || p >= len(refs) {
				continue
			}
			dims, offset := overlay.Dimensions, overlay.Offset
			refs[p].Overlays = append(refs[p].Overlays, &model.SliceRef{
				Hash:       ref.Hash,
				I:          ref.I,
				Dimensions: &dims,
				Offset:     &offset,
			})
		}
	}
	return refs, nil
}

// volumeSlices registers a fetch descriptor for every slice of v along orientation without
// fetching any slice.
func (r *ImageVolumes) volumeSlices(ctx context.Context, client *remote.Client, v *model.ImageVolume, orientation string) ([]*model.SliceRef, error) {
	route := r.route(client, v.Type)
	params := map[string]string{"orientation": orientation}
	if v.Type == model.ImageTypeImage && v.Window != nil {
		if v.Window.Level.Valid {
			params["window_level"] = strconv.FormatFloat(v.Window.Level.Float64, 'f', -1, 64)
		}
		if v.Window.Width.Valid {
			params["window_width"] = strconv.FormatFloat(v.Window.Width.Float64, 'f', -1, 64)
		}
	}

	n := v.Dimensions.Axis(orientation)
	refs := make([]*model.SliceRef, 0, n)
	for i := 0; i < n; i++ {
		path := route + "/" + url.PathEscape(v.ID.String()) + "/slices/" + strconv.Itoa(i)
		hash := SliceHash(route, params, v.ID.String()+"-"+strconv.Itoa(i))
		_, err := cache.RememberForever(ctx, r.Static.Store, SliceKey(hash), func() (*model.SliceDescriptor, error) {
			return &model.SliceDescriptor{
				Module:    client.Module,
				URL:       client.URL(path, nil),
				Parameter: params,
			}, nil
		})
		if err != nil {
			return nil, err
		}
		index := i
		refs = append(refs, &model.SliceRef{Hash: hash, I: &index})
	}
	return refs, nil
}

// Descriptor reads the fetch descriptor registered for a slice hash.
func (r *ImageVolumes) Descriptor(ctx context.Context, hash string) (*model.SliceDescriptor, error) {
	var d model.SliceDescriptor
	if err := r.Static.Store.Get(ctx, SliceKey(hash), &d); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			log.Ctx(ctx).Warn().Str("hash", hash).Msg("no slice descriptor registered for hash")
		}
		return nil, err
	}
	return &d, nil
}

func SliceKey(hash string) string {
	return cache.Key("slice", hash)
}

// SliceHash addresses a slice by the route it is fetched from, its parameters and a salt
// identifying the image and index.
func SliceHash(route string, params map[string]string, salt string) string {
	var sb strings.Builder
	sb.WriteString(route)
	sb.WriteByte('?')
	sb.WriteString(encodeParams(params))
	sb.WriteByte('#')
	sb.WriteString(salt)
	return strconv.FormatUint(xxh3.HashString(sb.String()), 16)
}

func sliceListHash(img *model.ImageVolume) string {
	var sb strings.Builder
	sb.WriteString(img.Type)
	sb.WriteByte('/')
	sb.WriteString(img.ID.String())
	for _, o := range img.Overlays {
		sb.WriteString("+")
		sb.WriteString(o.ID.String())
		sb.WriteString("@")
		sb.WriteString(strconv.Itoa(o.Offset.Axis(img.Orientation)))
	}
	sb.WriteString("|")
	sb.WriteString(img.Orientation)
	sb.WriteString("|")
	sb.WriteString(strconv.Itoa(img.Dimensions.Axis(img.Orientation)))
	if w := img.Window; w != nil {
		sb.WriteString("|")
		sb.WriteString(strconv.FormatFloat(w.Level.Float64, 'f', -1, 64))
		sb.WriteString(",")
		sb.WriteString(strconv.FormatFloat(w.Width.Float64, 'f', -1, 64))
	}
	return strconv.FormatUint(xxh3.HashString(sb.String()), 16)
}

func encodeParams(params map[string]string) string {
	keys := lo.Keys(params)
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(params[k]))
	}
	return strings.Join(parts, "&")
}
