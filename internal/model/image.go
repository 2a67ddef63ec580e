package model

import (
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	"gopkg.in/guregu/null.v3"
)

const (
	ImageTypeImage   = "image"
	ImageTypeOverlay = "overlay"

	AxisX = "x"
	AxisY = "y"
	AxisZ = "z"
)

type Vector struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Axis returns the extent along the named axis. Unknown axes fall back to z.
func (v Vector) Axis(axis string) int {
	switch axis {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	default:
		return v.Z
	}
}

type Window struct {
	Level null.Float `json:"level"`
	Width null.Float `json:"width"`
}

func (w *Window) IsZero() bool {
	return w == nil || (!w.Level.Valid && !w.Width.Valid)
}

type ImageVolume struct {
	ID          ID             `json:"id"`
	Type        string         `json:"type"`
	Title       string         `json:"title,omitempty"`
	Orientation string         `json:"orientation"`
	Dimensions  Vector         `json:"dimensions"`
	Offset      Vector         `json:"offset"`
	Window      *Window        `json:"window,omitempty"`
	Overlays    []*ImageVolume `json:"overlays,omitempty"`
	Slices      []*SliceRef    `json:"slices,omitempty"`
}

// SliceRef stands in for one lazily fetched slice. Overlays lists the overlay slices that
// cover this index of the parent image.
type SliceRef struct {
	Hash       string      `json:"hash"`
	I          *int        `json:"i,omitempty"`
	Dimensions *Vector     `json:"dimensions,omitempty"`
	Offset     *Vector     `json:"offset,omitempty"`
	Overlays   []*SliceRef `json:"overlays,omitempty"`
}

// SliceDescriptor tells the slice endpoint how to fetch a slice from its module.
type SliceDescriptor struct {
	Module    string            `json:"module"`
	URL       string            `json:"url"`
	Parameter map[string]string `json:"parameter"`
}

func (v *ImageVolume) HasOverlay(id ID) bool {
	for _, o := range v.Overlays {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Merge returns a copy of v with the display settings of other applied. Empty fields of other
// never replace set fields of v. Overlays of other that v does not have are appended.
func (v *ImageVolume) Merge(other *ImageVolume) *ImageVolume {
	merged := &ImageVolume{}
	if err := copier.CopyWithOption(merged, v, copier.Option{DeepCopy: true}); err != nil {
		log.Warn().Err(err).Str("image", v.ID.String()).Msg("failed to copy image volume for merge")
		clone := *v
		merged = &clone
	}
	if other == nil {
		return merged
	}

	if other.Title != "" {
		merged.Title = other.Title
	}
	if other.Orientation != "" {
		merged.Orientation = other.Orientation
	}
	if !other.Window.IsZero() {
		w := *other.Window
		merged.Window = &w
	}
	for _, o := range other.Overlays {
		if !merged.HasOverlay(o.ID) {
			merged.Overlays = append(merged.Overlays, o)
		}
	}
	return merged
}

// MergeImagesByID folds images sharing an id into one volume, keeping first-seen order.
func MergeImagesByID(images []*ImageVolume) []*ImageVolume {
	index := make(map[ID]int, len(images))
	var out []*ImageVolume
	for _, img := range images {
		if img == nil {
			continue
		}
		if i, ok := index[img.ID]; ok {
			out[i] = out[i].Merge(img)
			continue
		}
		index[img.ID] = len(out)
		out = append(out, img)
	}
	return out
}
