package imu

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

var ErrSegmentTooSmall = errors.New("shared memory segment smaller than layout")

// VersionPolicy decides what happens to snapshots whose layout version
// differs from LayoutVersion.
type VersionPolicy int

const (
	// VersionLenient accepts mismatched snapshots and warns once per version.
	VersionLenient VersionPolicy = iota
	// VersionStrict treats mismatched snapshots as absent.
	VersionStrict
)

func (p VersionPolicy) String() string {
	if p == VersionStrict {
		return "strict"
	}
	return "lenient"
}

// Stats counts read outcomes. Torn and disabled reads are routine while the
// driver is writing or the glasses are unplugged.
type Stats struct {
	Accepted        int64
	Torn            int64
	Disabled        int64
	VersionRejected int64
}

type Option func(*Reader)

func WithVersionPolicy(p VersionPolicy) Option {
	return func(r *Reader) { r.policy = p }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Reader) { r.log = l }
}

// Reader decodes snapshots from a read-only mapping of the driver segment.
// The driver writes without any lock we can see, so every read is validated
// by the parity byte; mu only orders this process's updates of the cached
// last-good snapshots.
type Reader struct {
	path   string
	data   []byte
	policy VersionPolicy
	log    zerolog.Logger
	closed atomic.Bool

	mu             sync.Mutex
	lastPose       PoseSample
	havePose       bool
	lastConfig     DeviceConfig
	haveConfig     bool
	warnedVersions map[uint8]bool

	accepted        *xsync.Counter
	torn            *xsync.Counter
	disabled        *xsync.Counter
	versionRejected *xsync.Counter
}

// Open maps the segment at path. A missing, unreadable or short segment is an
// error; the reader can't be used without it.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shared memory %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat shared memory %s: %w", path, err)
	}
	if fi.Size() < LayoutSize {
		return nil, fmt.Errorf("%s is %d bytes, need %d: %w", path, fi.Size(), LayoutSize, ErrSegmentTooSmall)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, LayoutSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	r := &Reader{
		path:            path,
		data:            data,
		log:             log.With().Str("component", "imu").Logger(),
		warnedVersions:  make(map[uint8]bool),
		accepted:        xsync.NewCounter(),
		torn:            xsync.NewCounter(),
		disabled:        xsync.NewCounter(),
		versionRejected: xsync.NewCounter(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.log.Info().
		Str("path", path).
		Int("size", LayoutSize).
		Str("version_policy", r.policy.String()).
		Msg("mapped IMU segment")

	return r, nil
}

func (r *Reader) Path() string {
	return r.path
}

// snapshot copies the segment and validates it. The returned buffer is only
// meaningful when ok is true.
func (r *Reader) snapshot() (buf [LayoutSize]byte, ok bool) {
	if r.closed.Load() {
		return buf, false
	}
	copy(buf[:], r.data)

	if buf[offsetEnabled] == 0 {
		r.disabled.Inc()
		r.log.Trace().Msg("IMU segment disabled")
		return buf, false
	}
	if parity(buf[:]) != buf[offsetParity] {
		r.torn.Inc()
		r.log.Trace().Msg("IMU segment parity mismatch, skipping read")
		return buf, false
	}
	if v := buf[offsetVersion]; v != LayoutVersion {
		r.warnVersion(v)
		if r.policy == VersionStrict {
			r.versionRejected.Inc()
			return buf, false
		}
	}

	r.accepted.Inc()
	return buf, true
}

func (r *Reader) warnVersion(v uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.warnedVersions[v] {
		return
	}
	r.warnedVersions[v] = true
	r.log.Warn().
		Uint8("segment_version", v).
		Int("expected_version", LayoutVersion).
		Str("version_policy", r.policy.String()).
		Msg("IMU segment layout version mismatch")
}

// ReadPose returns the current pose, or false when the segment is disabled,
// torn mid-write or rejected by the version policy.
func (r *Reader) ReadPose() (PoseSample, bool) {
	buf, ok := r.snapshot()
	if !ok {
		return PoseSample{}, false
	}
	pose := decodePose(buf[:])

	r.mu.Lock()
	r.lastPose = pose
	r.havePose = true
	r.mu.Unlock()

	return pose, true
}

// ReadConfig returns the current device configuration under the same rules
// as ReadPose.
func (r *Reader) ReadConfig() (DeviceConfig, bool) {
	buf, ok := r.snapshot()
	if !ok {
		return DeviceConfig{}, false
	}
	cfg := decodeConfig(buf[:])

	r.mu.Lock()
	r.lastConfig = cfg
	r.haveConfig = true
	r.mu.Unlock()

	return cfg, true
}

// LastPose returns the last pose ReadPose accepted.
func (r *Reader) LastPose() (PoseSample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPose, r.havePose
}

// LastConfig returns the last configuration ReadConfig accepted.
func (r *Reader) LastConfig() (DeviceConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastConfig, r.haveConfig
}

func (r *Reader) Stats() Stats {
	return Stats{
		Accepted:        r.accepted.Value(),
		Torn:            r.torn.Value(),
		Disabled:        r.disabled.Value(),
		VersionRejected: r.versionRejected.Value(),
	}
}

// Close unmaps the segment. Reads after Close report no data.
func (r *Reader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := unix.Munmap(r.data); err != nil {
		return fmt.Errorf("munmap %s: %w", r.path, err)
	}
	return nil
}
