package bundles

// DetailView identifies the page currently shown in a detail view. The
// presentation layer holds one of these and feeds it through the adjusters
// after removals so it never points at a gone or shifted item.
type DetailView struct {
	BundleID  string
	PageIndex int
}

// AdjustAfterRemoval returns the view after page removedIndex was removed
// from bundle bundleID. ok is false when the viewed item itself was
// removed, meaning the view should return to the bundle list. A removal
// before the viewed item in the same bundle renumbers the index down by
// one.
func (v DetailView) AdjustAfterRemoval(bundleID string, removedIndex int) (DetailView, bool) {
	if v.BundleID != bundleID {
		return v, true
	}
	switch {
	case removedIndex == v.PageIndex:
		return DetailView{}, false
	case removedIndex < v.PageIndex:
		v.PageIndex--
		return v, true
	default:
		return v, true
	}
}

// AdjustAfterBundleDeleted returns ok=false when the viewed bundle was
// deleted.
func (v DetailView) AdjustAfterBundleDeleted(bundleID string) (DetailView, bool) {
	if v.BundleID == bundleID {
		return DetailView{}, false
	}
	return v, true
}
