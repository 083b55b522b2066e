package editor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/sitepanel/internal/apperr"
	"github.com/starford/sitepanel/internal/content"
)

var coverValue = cover.Key("value")

func TestUploadSuccess(t *testing.T) {
	c := newLoaded(t, &fakeUpstream{})
	url, err := c.Upload(context.Background(), cover, "hero.png", strings.NewReader("img"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://cdn.example/hero.png" {
		t.Errorf("url = %q", url)
	}
	snap := c.Snapshot()
	if got := readString(t, snap, coverValue); got != url {
		t.Errorf("field value = %q", got)
	}
	if snap.Uploads != 0 {
		t.Errorf("pending uploads = %d", snap.Uploads)
	}
}

func TestUploadFailureClearsOnlyThatField(t *testing.T) {
	up := &fakeUpstream{}
	up.onUpload = func(context.Context, string) (string, error) { return "", errors.New("upload not accepted") }
	c := newLoaded(t, up)

	_, err := c.Upload(context.Background(), cover, "hero.png", strings.NewReader("img"))
	var ue *apperr.UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UploadError", err)
	}
	snap := c.Snapshot()
	if got := readString(t, snap, coverValue); got != "" {
		t.Errorf("field value = %q, want empty", got)
	}
	if got := readString(t, snap, headline); got != "Hi" {
		t.Errorf("sibling changed to %q", got)
	}
}

func TestUploadShowsSentinelAndBlocksSave(t *testing.T) {
	up := &fakeUpstream{}
	entered := make(chan struct{})
	release := make(chan struct{})
	up.onUpload = func(ctx context.Context, name string) (string, error) {
		close(entered)
		<-release
		return "https://cdn.example/" + name, nil
	}
	c := newLoaded(t, up)

	done := make(chan error, 1)
	go func() {
		_, err := c.Upload(context.Background(), cover, "a.png", strings.NewReader("img"))
		done <- err
	}()
	<-entered

	snap := c.Snapshot()
	if got := readString(t, snap, coverValue); got != content.UploadingSentinel {
		t.Errorf("value during upload = %q", got)
	}
	if snap.Uploads != 1 {
		t.Errorf("pending uploads = %d", snap.Uploads)
	}
	if err := c.Save(context.Background()); !errors.Is(err, apperr.ErrUploadPending) {
		t.Errorf("Save during upload err = %v, want ErrUploadPending", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := c.Save(context.Background()); err != nil {
		t.Errorf("Save after upload: %v", err)
	}
}

func TestNewerUploadSupersedesOlder(t *testing.T) {
	up := &fakeUpstream{}
	gates := map[string]chan struct{}{"old.png": make(chan struct{}), "new.png": make(chan struct{})}
	started := make(chan string, 2)
	up.onUpload = func(ctx context.Context, name string) (string, error) {
		started <- name
		<-gates[name]
		return "https://cdn.example/" + name, nil
	}
	c := newLoaded(t, up)

	results := make(map[string]chan error)
	for _, name := range []string{"old.png", "new.png"} {
		ch := make(chan error, 1)
		results[name] = ch
		go func() {
			_, err := c.Upload(context.Background(), cover, name, strings.NewReader("img"))
			ch <- err
		}()
		<-started
	}

	close(gates["old.png"])
	if err := <-results["old.png"]; !errors.Is(err, ErrSuperseded) {
		t.Errorf("old upload err = %v, want ErrSuperseded", err)
	}
	if got := readString(t, c.Snapshot(), coverValue); got != content.UploadingSentinel {
		t.Errorf("stale result applied: %q", got)
	}

	close(gates["new.png"])
	if err := <-results["new.png"]; err != nil {
		t.Fatalf("new upload: %v", err)
	}
	if got := readString(t, c.Snapshot(), coverValue); got != "https://cdn.example/new.png" {
		t.Errorf("value = %q", got)
	}
}

func TestRemoveImageDuringUploadWins(t *testing.T) {
	up := &fakeUpstream{}
	entered := make(chan struct{})
	release := make(chan struct{})
	up.onUpload = func(ctx context.Context, name string) (string, error) {
		close(entered)
		<-release
		return "https://cdn.example/" + name, nil
	}
	c := newLoaded(t, up)

	done := make(chan error, 1)
	go func() {
		_, err := c.Upload(context.Background(), cover, "a.png", strings.NewReader("img"))
		done <- err
	}()
	<-entered

	if _, err := c.RemoveImage(context.Background(), cover); err != nil {
		t.Fatalf("RemoveImage: %v", err)
	}
	if c.Snapshot().Uploads != 0 {
		t.Error("clearing the field should forget the pending upload")
	}
	close(release)
	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Errorf("err = %v, want ErrSuperseded", err)
	}
	if got := readString(t, c.Snapshot(), coverValue); got != "" {
		t.Errorf("value = %q, want empty", got)
	}
}

func TestRemoveRefusedUnderPendingUpload(t *testing.T) {
	up := &fakeUpstream{}
	entered := make(chan struct{})
	release := make(chan struct{})
	up.onUpload = func(ctx context.Context, name string) (string, error) {
		close(entered)
		<-release
		return "https://cdn.example/" + name, nil
	}
	c := newLoaded(t, up)
	photo := members.Index(0).Key("photo")

	done := make(chan error, 1)
	go func() {
		_, err := c.Upload(context.Background(), photo, "ada.png", strings.NewReader("img"))
		done <- err
	}()
	<-entered

	if _, err := c.Remove(context.Background(), members, 0); !errors.Is(err, apperr.ErrUploadPending) {
		t.Errorf("Remove err = %v, want ErrUploadPending", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := c.Remove(context.Background(), members, 0); err != nil {
		t.Errorf("Remove after upload: %v", err)
	}
}

func TestUploadRejectsNonImageField(t *testing.T) {
	c := newLoaded(t, &fakeUpstream{})
	field := content.P("pages", 0, "sections", 0, "content", "headline")
	if _, err := c.Upload(context.Background(), field, "a.png", strings.NewReader("img")); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
