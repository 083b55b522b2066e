package editor

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/starford/sitepanel/internal/apperr"
	"github.com/starford/sitepanel/internal/content"
	"github.com/starford/sitepanel/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeUpstream serves testutil.SampleDocument. The hook funcs, when set,
// replace the default behaviour and may block.
type fakeUpstream struct {
	mu       sync.Mutex
	saved    []*content.Document
	onFetch  func(ctx context.Context) error
	onSave   func(ctx context.Context) error
	onUpload func(ctx context.Context, filename string) (string, error)
}

func (f *fakeUpstream) FetchContent(ctx context.Context) (*content.Document, error) {
	f.mu.Lock()
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	return content.ParseDocument(strings.NewReader(testutil.SampleDocument))
}

func (f *fakeUpstream) SaveContent(ctx context.Context, doc *content.Document) error {
	f.mu.Lock()
	hook := f.onSave
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, doc)
	return nil
}

func (f *fakeUpstream) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.mu.Lock()
	hook := f.onUpload
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx, filename)
	}
	return "https://cdn.example/" + filename, nil
}

func (f *fakeUpstream) set(fn func(f *fakeUpstream)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

var (
	headline = content.P("pages", 0, "sections", 0, "content", "headline", "value")
	cover    = content.P("pages", 0, "sections", 0, "content", "cover")
	members  = content.P("pages", 0, "sections", 1, "content", "members", "value")
)

func newLoaded(t *testing.T, up *fakeUpstream, opts ...Option) *Controller {
	t.Helper()
	c := New(up, opts...)
	t.Cleanup(c.Close)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func readString(t *testing.T, snap Snapshot, p content.Path) string {
	t.Helper()
	n, ok := snap.Doc.Read(p)
	if !ok {
		t.Fatalf("%s not found", p)
	}
	s, ok := n.(*content.Scalar)
	if !ok {
		t.Fatalf("%s is %T", p, n)
	}
	v, _ := s.Str()
	return v
}

func TestLoad(t *testing.T) {
	rec := &recorder{}
	c := newLoaded(t, &fakeUpstream{}, WithObserver(rec.observe))

	snap := c.Snapshot()
	if snap.State != StateIdle || !snap.Loaded || snap.Dirty || snap.Revision != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Doc.PageCount() != 2 {
		t.Errorf("pages = %d", snap.Doc.PageCount())
	}
	if got := rec.types(); len(got) != 1 || got[0] != EventLoadFinished {
		t.Errorf("events = %v", got)
	}
}

func TestLoadFailureLeavesDocumentUnset(t *testing.T) {
	up := &fakeUpstream{}
	up.onFetch = func(context.Context) error { return errors.New("502 from upstream") }
	c := New(up)
	defer c.Close()

	err := c.Load(context.Background())
	var le *apperr.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want LoadError", err)
	}
	snap := c.Snapshot()
	if snap.State != StateError || snap.Doc != nil || snap.Loaded {
		t.Errorf("snapshot = %+v", snap)
	}

	// Edits against the unset document are no-ops.
	rev, err := c.SetValue(context.Background(), headline, content.String("x"))
	if err != nil || rev != 0 {
		t.Errorf("SetValue = %d, %v", rev, err)
	}

	// Error -> Loading is allowed.
	up.set(func(f *fakeUpstream) { f.onFetch = nil })
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("retry Load: %v", err)
	}
	if c.Snapshot().Doc == nil {
		t.Error("retry did not install a document")
	}
}

func TestEditAndSave(t *testing.T) {
	up := &fakeUpstream{}
	c := newLoaded(t, up)

	rev, err := c.SetValue(context.Background(), headline, content.String("Bye"))
	if err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if rev != 2 {
		t.Errorf("revision = %d, want 2", rev)
	}
	before := c.Snapshot()
	if !before.Dirty {
		t.Error("edit should mark the document dirty")
	}

	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	after := c.Snapshot()
	if after.Dirty || after.State != StateIdle {
		t.Errorf("after save = %+v", after)
	}
	if len(up.saved) != 1 || readString(t, Snapshot{Doc: up.saved[0]}, headline) != "Bye" {
		t.Errorf("saved = %v", up.saved)
	}
	if before.Doc != after.Doc {
		t.Error("saving should not replace the document")
	}
}

func TestSetValueBadPath(t *testing.T) {
	c := newLoaded(t, &fakeUpstream{})
	_, err := c.SetValue(context.Background(), content.P("pages", 9, "title"), content.String("x"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSetInputCoercesByKind(t *testing.T) {
	c := newLoaded(t, &fakeUpstream{})
	order := content.P("pages", 0, "sections", 0, "content", "order", "value")
	visible := content.P("pages", 0, "sections", 0, "content", "visible", "value")

	if _, err := c.SetInput(context.Background(), order, "12.5"); err != nil {
		t.Fatalf("SetInput number: %v", err)
	}
	if _, err := c.SetInput(context.Background(), visible, ""); err != nil {
		t.Fatalf("SetInput bool: %v", err)
	}
	snap := c.Snapshot()
	n, _ := snap.Doc.Read(order)
	if f, ok := n.(*content.Scalar).Float(); !ok || f != 12.5 {
		t.Errorf("order = %v", n)
	}
	n, _ = snap.Doc.Read(visible)
	if b, ok := n.(*content.Scalar).BoolValue(); !ok || b {
		t.Errorf("visible = %v", n)
	}

	if _, err := c.SetInput(context.Background(), content.P("pages", 0, "title"), "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("SetInput outside a field err = %v", err)
	}
}

func TestSaveLatch(t *testing.T) {
	up := &fakeUpstream{}
	release := make(chan struct{})
	entered := make(chan struct{})
	up.onSave = func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	}
	c := newLoaded(t, up)

	done := make(chan error, 1)
	go func() { done <- c.Save(context.Background()) }()
	<-entered

	if c.Snapshot().State != StateSaving {
		t.Errorf("state = %s, want saving", c.Snapshot().State)
	}
	if err := c.Save(context.Background()); !errors.Is(err, apperr.ErrBusy) {
		t.Errorf("second Save err = %v, want ErrBusy", err)
	}
	if err := c.Load(context.Background()); !errors.Is(err, apperr.ErrBusy) {
		t.Errorf("Load during save err = %v, want ErrBusy", err)
	}
	// Editing continues while the save is in flight.
	if _, err := c.SetValue(context.Background(), headline, content.String("during")); err != nil {
		t.Errorf("SetValue during save: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap := c.Snapshot()
	if !snap.Dirty {
		t.Error("edit made during the save should leave the document dirty")
	}
	if readString(t, Snapshot{Doc: up.saved[0]}, headline) != "Hi" {
		t.Error("save should submit the document as it was when the save began")
	}
}

func TestSaveFailureKeepsDocument(t *testing.T) {
	up := &fakeUpstream{}
	up.onSave = func(context.Context) error { return errors.New("500") }
	c := newLoaded(t, up)
	if _, err := c.SetValue(context.Background(), headline, content.String("unsaved")); err != nil {
		t.Fatal(err)
	}

	err := c.Save(context.Background())
	var se *apperr.SaveError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SaveError", err)
	}
	snap := c.Snapshot()
	if snap.State != StateError || !snap.Dirty || readString(t, snap, headline) != "unsaved" {
		t.Errorf("snapshot = %+v", snap)
	}

	up.set(func(f *fakeUpstream) { f.onSave = nil })
	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("retry Save: %v", err)
	}
	if c.Snapshot().Dirty {
		t.Error("successful retry should clear dirty")
	}
}

func TestAppendRemove(t *testing.T) {
	c := newLoaded(t, &fakeUpstream{})
	if _, err := c.Append(context.Background(), members); err != nil {
		t.Fatalf("Append: %v", err)
	}
	snap := c.Snapshot()
	n, _ := snap.Doc.Read(members)
	if n.(*content.Array).Len() != 2 {
		t.Fatalf("len = %d", n.(*content.Array).Len())
	}
	if got := readString(t, snap, members.Index(1).Key("name").Key("value")); got != "" {
		t.Errorf("new item name = %q", got)
	}

	if _, err := c.Remove(context.Background(), members, 0); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	n, _ = c.Snapshot().Doc.Read(members)
	if n.(*content.Array).Len() != 1 {
		t.Errorf("len after remove = %d", n.(*content.Array).Len())
	}
}

func TestCursor(t *testing.T) {
	c := newLoaded(t, &fakeUpstream{})
	if err := c.SelectSection(1); err != nil {
		t.Fatal(err)
	}
	if cur := c.Snapshot().Cursor; cur != (content.Cursor{Page: 0, Section: 1}) {
		t.Errorf("cursor = %+v", cur)
	}
	if err := c.SelectPage(1); err != nil {
		t.Fatal(err)
	}
	if cur := c.Snapshot().Cursor; cur != (content.Cursor{Page: 1, Section: 0}) {
		t.Errorf("SelectPage should reset the section: %+v", cur)
	}
	if err := c.Select(content.Cursor{Page: 5, Section: 5}); err != nil {
		t.Fatal(err)
	}
	if cur := c.Snapshot().Cursor; cur != (content.Cursor{Page: 1, Section: 0}) {
		t.Errorf("cursor not clamped: %+v", cur)
	}
}

func TestCloseDiscardsLateLoad(t *testing.T) {
	up := &fakeUpstream{}
	entered := make(chan struct{})
	up.onFetch = func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	}
	c := New(up)
	c.LoadAsync()
	<-entered
	c.Close()

	if snap := c.Snapshot(); snap.Doc != nil || snap.Loaded {
		t.Errorf("closed controller snapshot = %+v", snap)
	}
	if err := c.Load(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Load after close err = %v", err)
	}
	if _, err := c.SetValue(context.Background(), headline, content.String("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("SetValue after close err = %v", err)
	}
}

func TestLoadAsyncDuringClose(t *testing.T) {
	for i := 0; i < 50; i++ {
		c := New(&fakeUpstream{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for k := 0; k < 20; k++ {
				c.LoadAsync()
			}
		}()
		go func() {
			defer wg.Done()
			c.Close()
		}()
		wg.Wait()

		// Nothing started after Close may still be running.
		c.Close()
		c.LoadAsync()
		if snap := c.Snapshot(); snap.Loaded {
			t.Fatalf("closed controller reports a loaded document")
		}
	}
}

func TestEventsCarryOrigin(t *testing.T) {
	rec := &recorder{}
	c := newLoaded(t, &fakeUpstream{}, WithObserver(rec.observe))

	ctx := WithOrigin(context.Background(), "tab-1")
	if _, err := c.SetValue(ctx, headline, content.String("Bye")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Append(context.Background(), members); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(ctx); err != nil {
		t.Fatal(err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	var got []string
	for _, e := range rec.events {
		got = append(got, e.Type+":"+e.Origin)
	}
	want := []string{
		EventLoadFinished + ":",
		EventDocumentChanged + ":tab-1",
		EventDocumentChanged + ":",
		EventSaveFinished + ":tab-1",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %q, want %q", got, want)
	}
}

func TestUpstreamTimeout(t *testing.T) {
	up := &fakeUpstream{}
	up.onFetch = func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}
	c := New(up, WithTimeout(20*time.Millisecond))
	defer c.Close()
	err := c.Load(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
