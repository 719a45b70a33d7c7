package bundles

import (
	"fmt"
	"testing"

	"github.com/clipworks/evclip/internal/capture"
	"github.com/clipworks/evclip/internal/errors"
)

// countingPersister records how many times Save was issued.
type countingPersister struct {
	saves int
	last  *capture.State
}

func (p *countingPersister) Save(state *capture.State) {
	p.saves++
	p.last = state
}

func newTestManager() (*Manager, *countingPersister) {
	p := &countingPersister{}
	state := &capture.State{Settings: capture.DefaultSettings()}
	return NewManager(state, p), p
}

func TestCreateBundle(t *testing.T) {
	m, p := newTestManager()

	b, err := m.CreateBundle("example.com")
	if err != nil {
		t.Fatalf("CreateBundle failed: %v", err)
	}
	if b.ID == "" {
		t.Error("bundle should get an id")
	}
	if !b.Expanded {
		t.Error("new bundle should start expanded")
	}
	if b.CreatedAt == 0 {
		t.Error("bundle should get a creation timestamp")
	}
	if p.saves != 1 {
		t.Errorf("saves = %d, want 1", p.saves)
	}
}

func TestCreateBundle_DefaultName(t *testing.T) {
	m, _ := newTestManager()

	b, err := m.CreateBundle("")
	if err != nil {
		t.Fatalf("CreateBundle failed: %v", err)
	}
	if b.Name != "Bundle 1" {
		t.Errorf("Name = %q, want sequence default", b.Name)
	}
}

func TestCreateBundle_CapEnforced(t *testing.T) {
	m, p := newTestManager()

	for i := 0; i < capture.MaxBundles; i++ {
		if _, err := m.CreateBundle(fmt.Sprintf("b%d", i)); err != nil {
			t.Fatalf("CreateBundle %d failed: %v", i, err)
		}
	}
	savesBefore := p.saves

	b, err := m.CreateBundle("overflow")
	if b != nil {
		t.Error("bundle beyond the cap should be nil")
	}
	if !errors.Is(err, errors.ErrBundleLimit) {
		t.Errorf("err = %v, want BUNDLE_LIMIT", err)
	}
	if len(m.Bundles()) != capture.MaxBundles {
		t.Errorf("bundles = %d, want %d", len(m.Bundles()), capture.MaxBundles)
	}
	if p.saves != savesBefore {
		t.Error("a rejected create must not persist")
	}
}

func TestAddCapture_AppendAndExpand(t *testing.T) {
	m, _ := newTestManager()
	b, _ := m.CreateBundle("example.com")
	b.Expanded = false

	idx, err := m.AddCapture(b.ID, capture.New("https://example.com/a", "A"), -1)
	if err != nil {
		t.Fatalf("AddCapture failed: %v", err)
	}
	if idx != 0 {
		t.Errorf("idx = %d, want 0", idx)
	}
	got, _ := m.Bundle(b.ID)
	if !got.Expanded {
		t.Error("bundle should be expanded after a capture lands")
	}
	if len(got.Pages) != 1 {
		t.Errorf("pages = %d, want 1", len(got.Pages))
	}
}

func TestAddCapture_Replace(t *testing.T) {
	m, _ := newTestManager()
	b, _ := m.CreateBundle("example.com")
	m.AddCapture(b.ID, capture.New("https://example.com/a", "old"), -1)

	idx, err := m.AddCapture(b.ID, capture.New("https://example.com/a", "new"), 0)
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if idx != 0 {
		t.Errorf("idx = %d, want 0", idx)
	}
	got, _ := m.Bundle(b.ID)
	if len(got.Pages) != 1 || got.Pages[0].Title != "new" {
		t.Errorf("replace should overwrite in place: %+v", got.Pages)
	}
}

func TestAddCapture_PageCapEnforced(t *testing.T) {
	m, _ := newTestManager()
	b, _ := m.CreateBundle("example.com")

	for i := 0; i < capture.MaxBundlePages; i++ {
		url := fmt.Sprintf("https://example.com/%d", i)
		if _, err := m.AddCapture(b.ID, capture.New(url, "p"), -1); err != nil {
			t.Fatalf("AddCapture %d failed: %v", i, err)
		}
	}

	_, err := m.AddCapture(b.ID, capture.New("https://example.com/x", "x"), -1)
	if !errors.Is(err, errors.ErrPageLimit) {
		t.Errorf("err = %v, want PAGE_LIMIT", err)
	}
	got, _ := m.Bundle(b.ID)
	if len(got.Pages) != capture.MaxBundlePages {
		t.Errorf("pages = %d, cap must hold after rejection", len(got.Pages))
	}

	// Replacement is still allowed at the cap.
	if _, err := m.AddCapture(b.ID, capture.New("https://example.com/x", "x"), 3); err != nil {
		t.Errorf("replace at cap failed: %v", err)
	}
}

func TestFindDuplicate_EffectiveURL(t *testing.T) {
	m, _ := newTestManager()
	b, _ := m.CreateBundle("example.com")

	edited := capture.New("https://example.com/original", "A")
	edited.EditedURL = "https://example.com/edited"
	m.AddCapture(b.ID, edited, -1)

	if _, found := m.FindDuplicate(b.ID, "https://example.com/original"); found {
		t.Error("original URL should not match once overridden")
	}
	idx, found := m.FindDuplicate(b.ID, "https://example.com/edited")
	if !found || idx != 0 {
		t.Errorf("edited URL should match at 0, got (%d, %v)", idx, found)
	}
}

func TestFindDuplicate_ScopedPerBundle(t *testing.T) {
	m, _ := newTestManager()
	b1, _ := m.CreateBundle("one")
	b2, _ := m.CreateBundle("two")
	m.AddCapture(b1.ID, capture.New("https://example.com/a", "A"), -1)

	if _, found := m.FindDuplicate(b2.ID, "https://example.com/a"); found {
		t.Error("duplicate detection must be scoped to the target bundle")
	}
}

func TestMovePage(t *testing.T) {
	m, _ := newTestManager()
	src, _ := m.CreateBundle("src")
	dst, _ := m.CreateBundle("dst")
	m.AddCapture(src.ID, capture.New("https://example.com/a", "A"), -1)
	m.AddCapture(src.ID, capture.New("https://example.com/b", "B"), -1)
	dst.Expanded = false

	if err := m.MovePage(src.ID, 0, dst.ID); err != nil {
		t.Fatalf("MovePage failed: %v", err)
	}

	gotSrc, _ := m.Bundle(src.ID)
	gotDst, _ := m.Bundle(dst.ID)
	if len(gotSrc.Pages) != 1 || gotSrc.Pages[0].Title != "B" {
		t.Errorf("source pages = %+v, want only B", gotSrc.Pages)
	}
	if len(gotDst.Pages) != 1 || gotDst.Pages[0].Title != "A" {
		t.Errorf("target pages = %+v, want A appended", gotDst.Pages)
	}
	if !gotDst.Expanded {
		t.Error("target should be expanded after a move")
	}
}

func TestMovePage_TargetAtCapacity(t *testing.T) {
	m, _ := newTestManager()
	src, _ := m.CreateBundle("src")
	dst, _ := m.CreateBundle("dst")
	m.AddCapture(src.ID, capture.New("https://example.com/a", "A"), -1)
	for i := 0; i < capture.MaxBundlePages; i++ {
		m.AddCapture(dst.ID, capture.New(fmt.Sprintf("https://dst.com/%d", i), "p"), -1)
	}

	err := m.MovePage(src.ID, 0, dst.ID)
	if !errors.Is(err, errors.ErrPageLimit) {
		t.Errorf("err = %v, want PAGE_LIMIT", err)
	}
	gotSrc, _ := m.Bundle(src.ID)
	if len(gotSrc.Pages) != 1 {
		t.Error("a failed move must not mutate the source")
	}
}

func TestMovePage_WithinSameBundle(t *testing.T) {
	m, _ := newTestManager()
	b, _ := m.CreateBundle("b")
	m.AddCapture(b.ID, capture.New("https://example.com/a", "A"), -1)
	m.AddCapture(b.ID, capture.New("https://example.com/b", "B"), -1)

	if err := m.MovePage(b.ID, 0, b.ID); err != nil {
		t.Fatalf("same-bundle move failed: %v", err)
	}
	got, _ := m.Bundle(b.ID)
	if got.Pages[0].Title != "B" || got.Pages[1].Title != "A" {
		t.Errorf("pages = %+v, want B then A", got.Pages)
	}
}

func TestResolveTarget_AutoGroup(t *testing.T) {
	m, _ := newTestManager()

	b1, err := m.ResolveTarget("example.com")
	if err != nil {
		t.Fatalf("ResolveTarget failed: %v", err)
	}
	if b1.Name != "example.com" {
		t.Errorf("Name = %q, want domain", b1.Name)
	}

	b2, err := m.ResolveTarget("example.com")
	if err != nil {
		t.Fatalf("ResolveTarget failed: %v", err)
	}
	if b2.ID != b1.ID {
		t.Error("same domain should resolve to the same bundle")
	}
}

func TestResolveTarget_AutoGroupOff(t *testing.T) {
	m, _ := newTestManager()
	s := m.Settings()
	s.AutoGroupByDomain = false
	m.UpdateSettings(s)

	b1, err := m.ResolveTarget("example.com")
	if err != nil {
		t.Fatalf("ResolveTarget failed: %v", err)
	}
	if b1.Name == "example.com" {
		t.Error("auto-group off should not create domain bundles")
	}

	// Subsequent captures land in the working bundle.
	b2, _ := m.ResolveTarget("other.org")
	if b2.ID != b1.ID {
		t.Error("expected the current working bundle")
	}
}

func TestDeleteBundle(t *testing.T) {
	m, _ := newTestManager()
	b1, _ := m.CreateBundle("one")
	m.CreateBundle("two")

	if err := m.DeleteBundle(b1.ID); err != nil {
		t.Fatalf("DeleteBundle failed: %v", err)
	}
	if len(m.Bundles()) != 1 {
		t.Errorf("bundles = %d, want 1", len(m.Bundles()))
	}
	if err := m.DeleteBundle(b1.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second delete err = %v, want NOT_FOUND", err)
	}
}

func TestClearAll(t *testing.T) {
	m, p := newTestManager()
	m.CreateBundle("one")
	m.CreateBundle("two")

	m.ClearAll()
	if len(m.Bundles()) != 0 {
		t.Error("ClearAll should remove every bundle")
	}
	if p.saves != 3 {
		t.Errorf("saves = %d, want 3 (each mutation persists)", p.saves)
	}
}

func TestRemovePage(t *testing.T) {
	m, _ := newTestManager()
	b, _ := m.CreateBundle("b")
	m.AddCapture(b.ID, capture.New("https://example.com/a", "A"), -1)
	m.AddCapture(b.ID, capture.New("https://example.com/b", "B"), -1)

	if err := m.RemovePage(b.ID, 0); err != nil {
		t.Fatalf("RemovePage failed: %v", err)
	}
	got, _ := m.Bundle(b.ID)
	if len(got.Pages) != 1 || got.Pages[0].Title != "B" {
		t.Errorf("pages = %+v, want only B", got.Pages)
	}

	if err := m.RemovePage(b.ID, 5); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("out-of-range err = %v, want INVALID_REQUEST", err)
	}
}

func TestCapsHoldAfterAnyOperation(t *testing.T) {
	m, _ := newTestManager()
	for i := 0; i < 10; i++ {
		b, err := m.ResolveTarget(fmt.Sprintf("site%d.com", i))
		if err != nil {
			t.Fatalf("ResolveTarget failed: %v", err)
		}
		for j := 0; j < 5; j++ {
			m.AddCapture(b.ID, capture.New(fmt.Sprintf("https://site%d.com/%d", i, j), "p"), -1)
		}
	}

	if len(m.Bundles()) > capture.MaxBundles {
		t.Errorf("bundle cap violated: %d", len(m.Bundles()))
	}
	for _, b := range m.Bundles() {
		if len(b.Pages) > capture.MaxBundlePages {
			t.Errorf("page cap violated in %q: %d", b.Name, len(b.Pages))
		}
	}
}

func TestBundles_ReturnsCopies(t *testing.T) {
	m, _ := newTestManager()

	b, _ := m.CreateBundle("example.com")
	c := capture.New("https://example.com/a", "A")
	c.Images = []string{"https://example.com/img.png"}
	if _, err := m.AddCapture(b.ID, c, -1); err != nil {
		t.Fatalf("AddCapture failed: %v", err)
	}

	// Mutating anything handed out must not touch manager state.
	list := m.Bundles()
	list[0].Name = "scribbled"
	list[0].Pages[0].Title = "scribbled"
	list[0].Pages[0].Images[0] = "scribbled"

	got, err := m.Bundle(b.ID)
	if err != nil {
		t.Fatalf("Bundle failed: %v", err)
	}
	if got.Name != "example.com" {
		t.Errorf("Name = %q, bundle list leaked internal state", got.Name)
	}
	if got.Pages[0].Title != "A" || got.Pages[0].Images[0] != "https://example.com/img.png" {
		t.Errorf("page = %+v, bundle list leaked internal state", got.Pages[0])
	}

	got.Pages[0].Title = "again"
	refetched, _ := m.Bundle(b.ID)
	if refetched.Pages[0].Title != "A" {
		t.Error("Bundle leaked internal state")
	}
}
