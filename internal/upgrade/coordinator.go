package upgrade

import (
	"context"
	"crypto/md5" //nolint:gosec // protocol-mandated artifact checksum, not authentication
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/doorpoint/terminal-core/internal/infrastructure/logging"
)

// ArchiveName is the fixed filename for downloaded firmware.
const ArchiveName = "app.zip"

// DefaultRebootDelay is how long a successful firmware upgrade waits
// before rebooting, giving the success reply time to reach the broker.
const DefaultRebootDelay = time.Second

// Resource modes.
const (
	ResourceModeRemove = 0
	ResourceModeAdd    = 1
)

// ErrBusy is returned while another upgrade is in progress.
var ErrBusy = errors.New("upgrade: already in progress")

// VerifyError reports a checksum mismatch on a downloaded artifact.
type VerifyError struct {
	Got  string
	Want string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("upgrade: checksum mismatch: got %s, want %s", e.Got, e.Want)
}

// Downloader fetches a remote artifact to a local path.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// Rebooter restarts the terminal after a delay.
type Rebooter interface {
	Reboot(delay time.Duration)
}

// ResourceStore manages named media assets (audio clips, images) that
// control and upgrade commands reference.
type ResourceStore interface {
	Add(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
}

// Coordinator serializes upgrade requests and drives the firmware
// download/verify/reboot sequence.
type Coordinator struct {
	busy atomic.Bool

	dir         string
	downloader  Downloader
	rebooter    Rebooter
	resources   ResourceStore
	rebootDelay time.Duration
	logger      *logging.Logger
}

// New creates a Coordinator downloading into dir.
func New(dir string, downloader Downloader, rebooter Rebooter, resources ResourceStore, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		dir:         dir,
		downloader:  downloader,
		rebooter:    rebooter,
		resources:   resources,
		rebootDelay: DefaultRebootDelay,
		logger:      logger.With("component", "upgrade"),
	}
}

// Busy reports whether an upgrade is currently in progress.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

// Firmware downloads the archive at url, verifies it against wantMD5
// and schedules a reboot. On success the busy flag stays set: the
// device reboots shortly and must not start another upgrade meanwhile.
// Every failure path clears the flag and removes the partial download.
func (c *Coordinator) Firmware(ctx context.Context, url, wantMD5 string) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}

	if err := os.MkdirAll(c.dir, 0750); err != nil {
		c.busy.Store(false)
		return fmt.Errorf("creating upgrade directory: %w", err)
	}

	dest := filepath.Join(c.dir, ArchiveName)
	c.logger.Info("downloading firmware", "url", url, "dest", dest)

	if err := c.downloader.Download(ctx, url, dest); err != nil {
		os.Remove(dest)
		c.busy.Store(false)
		return fmt.Errorf("downloading firmware: %w", err)
	}

	got, err := fileMD5(dest)
	if err != nil {
		os.Remove(dest)
		c.busy.Store(false)
		return fmt.Errorf("hashing firmware: %w", err)
	}

	if !strings.EqualFold(got, wantMD5) {
		c.logger.Warn("firmware checksum mismatch", "got", got, "want", wantMD5)
		os.Remove(dest)
		c.busy.Store(false)
		return &VerifyError{Got: got, Want: wantMD5}
	}

	c.logger.Info("firmware verified, scheduling reboot", "delay", c.rebootDelay)
	c.rebooter.Reboot(c.rebootDelay)
	return nil
}

// Resource adds or removes a named asset. Unlike Firmware the busy
// flag is always released: no reboot follows a resource change.
func (c *Coordinator) Resource(ctx context.Context, name string, mode int) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)

	switch mode {
	case ResourceModeAdd:
		c.logger.Info("adding resource", "name", name)
		return c.resources.Add(ctx, name)
	case ResourceModeRemove:
		c.logger.Info("removing resource", "name", name)
		return c.resources.Remove(ctx, name)
	default:
		return fmt.Errorf("upgrade: unknown resource mode %d", mode)
	}
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New() //nolint:gosec // see package import note
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
