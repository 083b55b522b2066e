package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/starford/sitepanel/internal/apperr"
	"github.com/starford/sitepanel/internal/content"
)

// ErrSuperseded is returned when an upload finished after its field was
// given a newer upload, cleared, or reloaded. Its result is not applied.
var ErrSuperseded = fmt.Errorf("%w: upload superseded", apperr.ErrConflict)

// Upload sends an image for the image field at fieldPath. While the upload
// runs the field holds the uploading sentinel; it then receives the hosted
// URL, or "" on failure.
func (c *Controller) Upload(ctx context.Context, fieldPath content.Path, filename string, r io.Reader) (string, error) {
	vp := fieldPath.Key(content.KeyValue)
	key := pathKey(vp)
	origin := OriginFrom(ctx)

	var (
		gen      uint64
		startErr error
	)
	if err := c.do(func(s *state) {
		switch {
		case s.st == StateLoading:
			startErr = apperr.ErrBusy
			return
		case s.doc == nil:
			startErr = fmt.Errorf("%w: no document loaded", apperr.ErrConflict)
			return
		}
		n, ok := s.doc.Read(fieldPath)
		if !ok {
			startErr = fmt.Errorf("%w: %s", apperr.ErrNotFound, fieldPath)
			return
		}
		if f, ok := n.(*content.Field); !ok || f.Kind() != content.KindImage {
			startErr = fmt.Errorf("%w: %s is not an image field", apperr.ErrNotFound, fieldPath)
			return
		}
		next, err := content.SetValue(s.doc, vp, content.String(content.UploadingSentinel))
		if err != nil {
			startErr = fmt.Errorf("%w: %s", apperr.ErrNotFound, vp)
			return
		}
		s.commit(next)
		s.gen++
		gen = s.gen
		s.uploads[key] = gen
		c.observe(Event{Type: EventDocumentChanged, Revision: s.revision, Origin: origin})
	}); err != nil {
		return "", err
	}
	if startErr != nil {
		return "", startErr
	}

	uctx, cancel := c.upstreamCtx(ctx)
	url, upErr := c.up.Upload(uctx, filename, r)
	cancel()

	value := url
	if upErr != nil {
		value = ""
	}
	var stale bool
	if err := c.do(func(s *state) {
		if s.uploads[key] != gen || !isSentinel(s.doc, vp) {
			stale = true
			return
		}
		delete(s.uploads, key)
		next, err := content.SetValue(s.doc, vp, content.String(value))
		if err != nil {
			stale = true
			return
		}
		s.commit(next)
		c.observe(Event{Type: EventDocumentChanged, Revision: s.revision, Origin: origin})
		c.observe(Event{Type: EventUploadFinished, Revision: s.revision, Origin: origin, Err: upErr})
	}); err != nil {
		return "", err
	}

	if stale {
		c.log.Info("stale upload result dropped", slog.String("path", fieldPath.String()))
		return "", ErrSuperseded
	}
	if upErr != nil {
		if errors.Is(upErr, context.Canceled) && c.closed.Load() {
			return "", ErrClosed
		}
		c.log.Warn("image upload failed",
			slog.String("path", fieldPath.String()),
			slog.String("error", upErr.Error()),
		)
		return "", &apperr.UploadError{Err: upErr}
	}
	return url, nil
}

// RemoveImage clears the image field at fieldPath.
func (c *Controller) RemoveImage(ctx context.Context, fieldPath content.Path) (uint64, error) {
	return c.SetValue(ctx, fieldPath.Key(content.KeyValue), content.String(""))
}
