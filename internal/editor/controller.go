// Package editor owns one operator's editing session: the in-memory
// document, the page/section cursor and the load, save and upload workflows
// against the upstream content API.
package editor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/sitepanel/internal/apperr"
	"github.com/starford/sitepanel/internal/content"
	"github.com/starford/sitepanel/internal/render"
)

// Upstream is the content API the controller drives.
type Upstream interface {
	FetchContent(ctx context.Context) (*content.Document, error)
	SaveContent(ctx context.Context, doc *content.Document) error
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithTimeout bounds every upstream call.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithObserver registers fn to receive events.
func WithObserver(fn func(Event)) Option {
	return func(c *Controller) { c.observe = fn }
}

type command struct {
	fn   func(*state)
	done chan struct{}
}

// Controller serialises all access to one session's state.
//
// A single goroutine owns the state. Public methods send closures to it and
// wait for them to run; upstream calls happen outside the loop so a slow
// save never blocks editing.
type Controller struct {
	up      Upstream
	timeout time.Duration
	log     *slog.Logger
	observe func(Event)

	cmds    chan command
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool

	// mu orders LoadAsync's wg.Add before Close's wg.Wait.
	mu sync.Mutex

	// ctx is cancelled on Close and aborts in-flight upstream calls.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts a controller with no document loaded.
func New(up Upstream, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		up:      up,
		timeout: 15 * time.Second,
		log:     slog.Default(),
		observe: func(Event) {},
		cmds:    make(chan command),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.stopped)
	s := &state{uploads: make(map[string]uint64)}
	for {
		select {
		case <-c.stopCh:
			return
		case cmd := <-c.cmds:
			cmd.fn(s)
			close(cmd.done)
		}
	}
}

// do runs fn on the owner goroutine and waits for it.
func (c *Controller) do(fn func(*state)) error {
	if c.closed.Load() {
		return ErrClosed
	}
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case c.cmds <- cmd:
	case <-c.stopped:
		return ErrClosed
	}
	select {
	case <-cmd.done:
		return nil
	case <-c.stopped:
		return ErrClosed
	}
}

// Close stops the controller, cancels upstream calls in flight and waits for
// background work to finish. Completions arriving afterwards are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed.CompareAndSwap(false, true) {
		c.cancel()
		close(c.stopCh)
	}
	c.mu.Unlock()
	<-c.stopped
	c.wg.Wait()
}

// upstreamCtx derives the context for one upstream call.
func (c *Controller) upstreamCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Snapshot returns the current state. A closed controller yields the zero
// Snapshot.
func (c *Controller) Snapshot() Snapshot {
	var snap Snapshot
	_ = c.do(func(s *state) { snap = s.snapshot() })
	return snap
}

// Load fetches the document from the upstream and installs it. A load
// failure keeps the previous document, if any, and records a LoadError.
func (c *Controller) Load(ctx context.Context) error {
	var busy bool
	if err := c.do(func(s *state) {
		if s.st == StateLoading || s.st == StateSaving {
			busy = true
			return
		}
		s.st = StateLoading
		s.err = nil
	}); err != nil {
		return err
	}
	if busy {
		return apperr.ErrBusy
	}

	uctx, cancel := c.upstreamCtx(ctx)
	doc, fetchErr := c.up.FetchContent(uctx)
	cancel()

	origin := OriginFrom(ctx)
	var result error
	err := c.do(func(s *state) {
		if fetchErr != nil {
			s.st = StateError
			s.err = &apperr.LoadError{Err: fetchErr}
			result = s.err
			c.log.Error("load content", slog.String("error", fetchErr.Error()))
			c.observe(Event{Type: EventLoadFinished, Revision: s.revision, Origin: origin, Err: s.err})
			return
		}
		s.st = StateIdle
		s.uploads = make(map[string]uint64)
		s.commit(doc)
		s.baseline = s.fingerprint
		s.loaded = true
		c.log.Info("content loaded", slog.Int("pages", doc.PageCount()))
		c.observe(Event{Type: EventLoadFinished, Revision: s.revision, Origin: origin})
	})
	if err != nil {
		return err
	}
	return result
}

// LoadAsync starts Load in the background. Close waits for it.
func (c *Controller) LoadAsync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.Load(c.ctx)
	}()
}

// Save submits the current document. It returns apperr.ErrBusy while a load
// or another save is running and apperr.ErrUploadPending while an image
// upload has not finished.
func (c *Controller) Save(ctx context.Context) error {
	var (
		doc      *content.Document
		beginErr error
	)
	if err := c.do(func(s *state) {
		switch {
		case s.st == StateLoading || s.st == StateSaving:
			beginErr = apperr.ErrBusy
		case s.doc == nil:
			beginErr = fmt.Errorf("%w: no document loaded", apperr.ErrConflict)
		case len(s.uploads) > 0:
			beginErr = apperr.ErrUploadPending
		default:
			s.st = StateSaving
			s.err = nil
			doc = s.doc
		}
	}); err != nil {
		return err
	}
	if beginErr != nil {
		return beginErr
	}

	uctx, cancel := c.upstreamCtx(ctx)
	saveErr := c.up.SaveContent(uctx, doc)
	cancel()

	origin := OriginFrom(ctx)
	var result error
	err := c.do(func(s *state) {
		if saveErr != nil {
			s.st = StateError
			s.err = &apperr.SaveError{Err: saveErr}
			result = s.err
			c.log.Error("save content", slog.String("error", saveErr.Error()))
			c.observe(Event{Type: EventSaveFinished, Revision: s.revision, Origin: origin, Err: s.err})
			return
		}
		s.st = StateIdle
		s.baseline = doc.Fingerprint()
		c.log.Info("content saved", slog.Uint64("revision", s.revision))
		c.observe(Event{Type: EventSaveFinished, Revision: s.revision, Origin: origin})
	})
	if err != nil {
		return err
	}
	return result
}

// edit applies fn to the current document unless a load is running. A nil
// document is left alone. It returns the revision after the edit.
func (c *Controller) edit(ctx context.Context, fn func(s *state) (*content.Document, error)) (uint64, error) {
	origin := OriginFrom(ctx)
	var (
		rev    uint64
		result error
	)
	err := c.do(func(s *state) {
		if s.st == StateLoading {
			result = apperr.ErrBusy
			rev = s.revision
			return
		}
		if s.doc == nil {
			rev = s.revision
			return
		}
		next, err := fn(s)
		if err != nil {
			result = err
			rev = s.revision
			return
		}
		if next != s.doc {
			s.commit(next)
			c.observe(Event{Type: EventDocumentChanged, Revision: s.revision, Origin: origin})
		}
		rev = s.revision
	})
	if err != nil {
		return 0, err
	}
	return rev, result
}

// SetValue writes v at p.
func (c *Controller) SetValue(ctx context.Context, p content.Path, v content.Node) (uint64, error) {
	return c.edit(ctx, func(s *state) (*content.Document, error) {
		next, err := content.SetValue(s.doc, p, v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, p)
		}
		return next, nil
	})
}

// SetInput writes raw form input to the value path p, coerced by the kind of
// the field that owns p.
func (c *Controller) SetInput(ctx context.Context, p content.Path, raw string) (uint64, error) {
	return c.edit(ctx, func(s *state) (*content.Document, error) {
		n, ok := s.doc.Read(p.Parent())
		if !ok {
			return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, p)
		}
		f, ok := n.(*content.Field)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a field", apperr.ErrNotFound, p.Parent())
		}
		next, err := content.SetValue(s.doc, p, render.CoerceInput(f.Kind(), raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, p)
		}
		return next, nil
	})
}

// Append adds an element to the array at p.
func (c *Controller) Append(ctx context.Context, p content.Path) (uint64, error) {
	return c.edit(ctx, func(s *state) (*content.Document, error) {
		return content.AppendArrayItem(s.doc, p), nil
	})
}

// Remove deletes element i of the array at p. Removing is refused while an
// upload under the array is running since it would shift the upload target.
func (c *Controller) Remove(ctx context.Context, p content.Path, i int) (uint64, error) {
	return c.edit(ctx, func(s *state) (*content.Document, error) {
		if s.uploadBelow(p) {
			return nil, apperr.ErrUploadPending
		}
		return content.RemoveArrayItem(s.doc, p, i), nil
	})
}

// SelectPage moves the cursor to page i, section 0.
func (c *Controller) SelectPage(i int) error {
	return c.do(func(s *state) {
		s.cursor = content.Cursor{Page: i}.Clamp(s.doc)
	})
}

// SelectSection moves the cursor to section i of the current page.
func (c *Controller) SelectSection(i int) error {
	return c.do(func(s *state) {
		s.cursor = content.Cursor{Page: s.cursor.Page, Section: i}.Clamp(s.doc)
	})
}

// Select sets page and section at once.
func (c *Controller) Select(cur content.Cursor) error {
	return c.do(func(s *state) {
		s.cursor = cur.Clamp(s.doc)
	})
}
