package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/guregu/null.v3"
)

func TestImageMergePrecedence(t *testing.T) {
	a := &ImageVolume{ID: "1", Type: ImageTypeImage, Title: "T1", Orientation: AxisZ}
	b := &ImageVolume{ID: "1", Type: ImageTypeImage, Window: &Window{Level: null.FloatFrom(5), Width: null.FloatFrom(10)}}

	merged := a.Merge(b)

	assert.Equal(t, "T1", merged.Title)
	assert.Equal(t, AxisZ, merged.Orientation)
	assert.Equal(t, &Window{Level: null.FloatFrom(5), Width: null.FloatFrom(10)}, merged.Window)

	assert.Nil(t, a.Window, "merge must not modify the base image")
}

func TestImageMergeKeepsOverlays(t *testing.T) {
	a := &ImageVolume{ID: "1", Overlays: []*ImageVolume{{ID: "o1"}}}
	b := &ImageVolume{ID: "1", Title: "later", Overlays: []*ImageVolume{{ID: "o1"}, {ID: "o2"}}}

	merged := a.Merge(b)

	assert.Equal(t, "later", merged.Title)
	assert.Len(t, merged.Overlays, 2)
	assert.True(t, merged.HasOverlay("o2"))
	assert.Len(t, a.Overlays, 1)
}

func TestImageMergeIgnoresEmptyWindow(t *testing.T) {
	a := &ImageVolume{ID: "1", Window: &Window{Level: null.FloatFrom(1), Width: null.FloatFrom(2)}}
	merged := a.Merge(&ImageVolume{ID: "1", Window: &Window{}})

	assert.Equal(t, null.FloatFrom(1), merged.Window.Level)
}

func TestMergeImagesByID(t *testing.T) {
	images := []*ImageVolume{
		{ID: "1", Title: "first"},
		{ID: "2", Title: "other"},
		nil,
		{ID: "1", Orientation: AxisX},
	}

	merged := MergeImagesByID(images)

	assert.Len(t, merged, 2)
	assert.Equal(t, ID("1"), merged[0].ID)
	assert.Equal(t, "first", merged[0].Title)
	assert.Equal(t, AxisX, merged[0].Orientation)
	assert.Equal(t, ID("2"), merged[1].ID)
}

func TestVectorAxis(t *testing.T) {
	v := Vector{X: 1, Y: 2, Z: 3}
	assert.Equal(t, 1, v.Axis(AxisX))
	assert.Equal(t, 2, v.Axis(AxisY))
	assert.Equal(t, 3, v.Axis(AxisZ))
	assert.Equal(t, 3, v.Axis(""))
}
