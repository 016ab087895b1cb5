package upgrade

import (
	"context"
	"crypto/md5" //nolint:gosec // matching production checksum
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
)

type fakeDownloader struct {
	content []byte
	err     error
	calls   int
}

func (d *fakeDownloader) Download(_ context.Context, _, dest string) error {
	d.calls++
	if d.err != nil {
		return d.err
	}
	return os.WriteFile(dest, d.content, 0640)
}

type fakeRebooter struct {
	delays []time.Duration
}

func (r *fakeRebooter) Reboot(delay time.Duration) {
	r.delays = append(r.delays, delay)
}

type fakeResourceStore struct {
	added   []string
	removed []string
	err     error
}

func (s *fakeResourceStore) Add(_ context.Context, name string) error {
	s.added = append(s.added, name)
	return s.err
}

func (s *fakeResourceStore) Remove(_ context.Context, name string) error {
	s.removed = append(s.removed, name)
	return s.err
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // test checksum
	return hex.EncodeToString(sum[:])
}

func testCoordinator(t *testing.T, dl Downloader, store ResourceStore) (*Coordinator, *fakeRebooter, string) {
	t.Helper()
	dir := t.TempDir()
	rb := &fakeRebooter{}
	c := New(dir, dl, rb, store, logging.Default())
	return c, rb, dir
}

func TestFirmwareSuccessKeepsBusySet(t *testing.T) {
	content := []byte("firmware image")
	dl := &fakeDownloader{content: content}
	c, rb, dir := testCoordinator(t, dl, nil)

	if err := c.Firmware(context.Background(), "http://backend/fw.zip", md5Hex(content)); err != nil {
		t.Fatalf("firmware upgrade failed: %v", err)
	}

	if !c.Busy() {
		t.Error("busy flag cleared after successful upgrade, want set until reboot")
	}
	if len(rb.delays) != 1 || rb.delays[0] != DefaultRebootDelay {
		t.Errorf("reboot delays = %v, want one %v", rb.delays, DefaultRebootDelay)
	}
	if _, err := os.Stat(filepath.Join(dir, ArchiveName)); err != nil {
		t.Errorf("archive missing after success: %v", err)
	}
}

func TestFirmwareRejectedWhileBusy(t *testing.T) {
	content := []byte("firmware image")
	dl := &fakeDownloader{content: content}
	c, rb, _ := testCoordinator(t, dl, nil)

	if err := c.Firmware(context.Background(), "http://backend/fw.zip", md5Hex(content)); err != nil {
		t.Fatalf("first upgrade failed: %v", err)
	}

	err := c.Firmware(context.Background(), "http://backend/fw2.zip", md5Hex(content))
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("second upgrade err = %v, want ErrBusy", err)
	}
	if dl.calls != 1 {
		t.Errorf("downloader called %d times, want 1 (busy request must not touch the network)", dl.calls)
	}
	if len(rb.delays) != 1 {
		t.Errorf("reboot scheduled %d times, want 1", len(rb.delays))
	}
}

func TestFirmwareChecksumMismatchCleansUp(t *testing.T) {
	dl := &fakeDownloader{content: []byte("tampered image")}
	c, rb, dir := testCoordinator(t, dl, nil)

	want := md5Hex([]byte("expected image"))
	err := c.Firmware(context.Background(), "http://backend/fw.zip", want)

	var verr *VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *VerifyError", err)
	}
	if verr.Want != want || verr.Got != md5Hex([]byte("tampered image")) {
		t.Errorf("VerifyError = %+v", verr)
	}

	if c.Busy() {
		t.Error("busy flag still set after failed upgrade")
	}
	if _, err := os.Stat(filepath.Join(dir, ArchiveName)); !errors.Is(err, os.ErrNotExist) {
		t.Error("rejected archive not removed")
	}
	if len(rb.delays) != 0 {
		t.Error("reboot scheduled despite checksum failure")
	}
}

func TestFirmwareDownloadFailureClearsBusy(t *testing.T) {
	dl := &fakeDownloader{err: fmt.Errorf("connection refused")}
	c, rb, _ := testCoordinator(t, dl, nil)

	if err := c.Firmware(context.Background(), "http://backend/fw.zip", "abc"); err == nil {
		t.Fatal("download failure reported success")
	}
	if c.Busy() {
		t.Error("busy flag still set after download failure")
	}
	if len(rb.delays) != 0 {
		t.Error("reboot scheduled despite download failure")
	}

	// The coordinator must accept a retry immediately.
	dl.err = nil
	dl.content = []byte("ok")
	if err := c.Firmware(context.Background(), "http://backend/fw.zip", md5Hex(dl.content)); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestFirmwareChecksumCaseInsensitive(t *testing.T) {
	content := []byte("firmware image")
	dl := &fakeDownloader{content: content}
	c, _, _ := testCoordinator(t, dl, nil)

	upper := fmt.Sprintf("%X", md5.Sum(content)) //nolint:gosec // test checksum
	if err := c.Firmware(context.Background(), "http://backend/fw.zip", upper); err != nil {
		t.Fatalf("uppercase checksum rejected: %v", err)
	}
}

func TestResourceAddAndRemove(t *testing.T) {
	store := &fakeResourceStore{}
	c, _, _ := testCoordinator(t, nil, store)

	if err := c.Resource(context.Background(), "welcome.wav", ResourceModeAdd); err != nil {
		t.Fatalf("adding resource: %v", err)
	}
	if err := c.Resource(context.Background(), "welcome.wav", ResourceModeRemove); err != nil {
		t.Fatalf("removing resource: %v", err)
	}

	if len(store.added) != 1 || store.added[0] != "welcome.wav" {
		t.Errorf("added = %v", store.added)
	}
	if len(store.removed) != 1 || store.removed[0] != "welcome.wav" {
		t.Errorf("removed = %v", store.removed)
	}
	if c.Busy() {
		t.Error("busy flag still set after resource change")
	}
}

func TestResourceRejectedWhileFirmwareInProgress(t *testing.T) {
	content := []byte("firmware image")
	dl := &fakeDownloader{content: content}
	store := &fakeResourceStore{}
	c, _, _ := testCoordinator(t, dl, store)

	if err := c.Firmware(context.Background(), "http://backend/fw.zip", md5Hex(content)); err != nil {
		t.Fatalf("firmware upgrade failed: %v", err)
	}

	if err := c.Resource(context.Background(), "welcome.wav", ResourceModeAdd); !errors.Is(err, ErrBusy) {
		t.Fatalf("resource change err = %v, want ErrBusy", err)
	}
	if len(store.added) != 0 {
		t.Error("resource store touched while busy")
	}
}

func TestDirResourceStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDirResourceStore(dir)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	if err := store.Add(context.Background(), "logo.png"); err != nil {
		t.Fatalf("adding resource: %v", err)
	}
	if !store.Has("logo.png") {
		t.Error("added resource not reported present")
	}

	if err := store.Remove(context.Background(), "logo.png"); err != nil {
		t.Fatalf("removing resource: %v", err)
	}
	if store.Has("logo.png") {
		t.Error("removed resource still present")
	}

	// Idempotent removal.
	if err := store.Remove(context.Background(), "logo.png"); err != nil {
		t.Errorf("removing absent resource: %v", err)
	}

	// Path traversal must be rejected.
	if err := store.Add(context.Background(), "../escape"); err == nil {
		t.Error("traversal name accepted")
	}
}
