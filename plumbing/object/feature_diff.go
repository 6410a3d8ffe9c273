package object

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ErrPatchFailed is returned when a text patch no longer applies to the
// value it is applied to.
var ErrPatchFailed = errors.New("patch does not apply")

// ChangeType is the kind of a change between two versions of something.
type ChangeType int8

const (
	Added ChangeType = iota + 1
	Modified
	Removed
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// ChangeTypeOf returns the change a pair of versions represents, given
// which of them exist.
func ChangeTypeOf(hasOld, hasNew bool) ChangeType {
	switch {
	case hasOld && hasNew:
		return Modified
	case hasNew:
		return Added
	default:
		return Removed
	}
}

// AttributeDiff is the change of a single feature property.
type AttributeDiff struct {
	Name   string
	Change ChangeType
	Old    any
	New    any
	// Patch is a diff-match-patch text patch from Old to New, set for
	// modified strings, and for geometries in their WKT form.
	Patch string
}

// FeatureDiff holds the property changes between two versions of a
// feature. A property is matched by the local name of its descriptor.
type FeatureDiff struct {
	Old   *Feature
	New   *Feature
	Diffs []AttributeDiff
}

// HasChanges reports whether any property changed.
func (d *FeatureDiff) HasChanges() bool {
	return len(d.Diffs) > 0
}

// DiffFeatures compares two versions of a feature. Values are compared by
// their canonical hash, so geometries equal after rounding are unchanged.
func DiffFeatures(before, after *Feature, oldType, newType *FeatureType) (*FeatureDiff, error) {
	d := &FeatureDiff{Old: before, New: after}
	dmp := diffmatchpatch.New()

	for i, desc := range newType.Descriptors() {
		nv := valueAt(after, i)
		j := oldType.Find(desc.Name.Local)
		if j < 0 {
			d.Diffs = append(d.Diffs, AttributeDiff{Name: desc.Name.Local, Change: Added, New: nv})
			continue
		}

		ov := valueAt(before, j)
		same, err := sameValue(ov, nv)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", desc.Name.Local, err)
		}

		if same {
			continue
		}

		d.Diffs = append(d.Diffs, AttributeDiff{
			Name:   desc.Name.Local,
			Change: Modified,
			Old:    ov,
			New:    nv,
			Patch:  textPatch(dmp, ov, nv),
		})
	}

	for i, desc := range oldType.Descriptors() {
		if newType.Find(desc.Name.Local) >= 0 {
			continue
		}

		d.Diffs = append(d.Diffs, AttributeDiff{Name: desc.Name.Local, Change: Removed, Old: valueAt(before, i)})
	}

	return d, nil
}

// ApplyPatch applies the text patch of a modified string attribute to v.
func (a AttributeDiff) ApplyPatch(v string) (string, error) {
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(a.Patch)
	if err != nil {
		return "", err
	}

	out, applied := dmp.PatchApply(patches, v)
	for _, ok := range applied {
		if !ok {
			return "", ErrPatchFailed
		}
	}

	return out, nil
}

func valueAt(f *Feature, i int) any {
	if f == nil || i >= f.Len() {
		return nil
	}

	return f.Value(i)
}

func sameValue(a, b any) (bool, error) {
	ha, err := HashValue(a)
	if err != nil {
		return false, err
	}

	hb, err := HashValue(b)
	if err != nil {
		return false, err
	}

	return ha == hb, nil
}

func textPatch(dmp *diffmatchpatch.DiffMatchPatch, a, b any) string {
	at, aok := asText(a)
	bt, bok := asText(b)
	if !aok || !bok {
		return ""
	}

	return dmp.PatchToText(dmp.PatchMake(at, bt))
}

func asText(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case orb.Bound:
		return "", false
	case orb.Geometry:
		return wkt.MarshalString(v), true
	default:
		return "", false
	}
}
