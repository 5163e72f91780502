// Package exiftool drives the exiftool executable to read capture times and GPS
// positions from photos and to write GPS tags back.
package exiftool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	goexiftool "github.com/barasher/go-exiftool"
	"github.com/rs/zerolog"
)

var (
	// ErrGPSPresent is returned by WriteGPS without overwrite when the photo already has a position.
	ErrGPSPresent = errors.New("photo already has gps tags")
	// ErrTimeout means an exiftool call did not answer in time; its process was discarded.
	ErrTimeout = errors.New("exiftool call timed out")
	// ErrPoolClosed is returned once Close has been called or no process could be kept alive.
	ErrPoolClosed = errors.New("exiftool pool is closed")
)

// Client reads and writes photo metadata.
type Client interface {
	ReadTimestampAndGPS(ctx context.Context, path string) (Metadata, error)
	// WriteGPS writes point to current.Path. current is what ReadTimestampAndGPS
	// returned for the photo; without overwrite a photo that has a position is refused.
	WriteGPS(ctx context.Context, current Metadata, point Point, overwrite bool) error
	Close() error
}

// process is the part of a stay-open exiftool process the pool needs.
type process interface {
	ExtractMetadata(files ...string) []goexiftool.FileMetadata
	WriteMetadata(fileInfos []goexiftool.FileMetadata)
	Close() error
}

// Options configures a Pool.
type Options struct {
	BinaryPath string        // empty means "exiftool" on PATH
	Size       int           // number of exiftool processes, at least one
	Timeout    time.Duration // per call, zero disables the limit
	KeepBackup bool          // leave a "<file>_original" copy next to every written photo
	KeepMtime  bool          // restore the file modification time after a write, like exiftool -P
	Location   *time.Location
}

// Pool hands a set of stay-open exiftool processes to concurrent callers so
// that no two calls ever share a process.
type Pool struct {
	procs    chan process
	factory  func() (process, error)
	timeout   time.Duration
	keepMtime bool
	location  *time.Location
	logger   zerolog.Logger

	mu     sync.Mutex
	live   int
	closed bool
	dead   chan struct{}
}

// NewPool starts opts.Size exiftool processes.
func NewPool(opts Options, logger zerolog.Logger) (*Pool, error) {
	initOpts := []func(*goexiftool.Exiftool) error{goexiftool.NoPrintConversion()}
	if opts.BinaryPath != "" {
		initOpts = append(initOpts, goexiftool.SetExiftoolBinaryPath(opts.BinaryPath))
	}
	if opts.KeepBackup {
		initOpts = append(initOpts, goexiftool.BackupOriginal())
	}

	factory := func() (process, error) {
		et, err := goexiftool.NewExiftool(initOpts...)
		if err != nil {
			return nil, err
		}
		return et, nil
	}
	return newPool(opts, factory, logger)
}

func newPool(opts Options, factory func() (process, error), logger zerolog.Logger) (*Pool, error) {
	size := opts.Size
	if size < 1 {
		size = 1
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	p := &Pool{
		procs:    make(chan process, size),
		factory:  factory,
		timeout:   opts.Timeout,
		keepMtime: opts.KeepMtime,
		location:  loc,
		logger:    logger,
		dead:      make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		proc, err := factory()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to start exiftool: %w", err)
		}
		p.live++
		p.procs <- proc
	}

	p.logger.Debug().Int("size", size).Dur("timeout", p.timeout).Msg("exiftool pool started")
	return p, nil
}

// ReadTimestampAndGPS extracts the capture time and GPS position of a photo.
// Missing tags are not an error; see Metadata.
func (p *Pool) ReadTimestampAndGPS(ctx context.Context, path string) (Metadata, error) {
	var fm goexiftool.FileMetadata
	err := p.do(ctx, func(proc process) error {
		fms := proc.ExtractMetadata(path)
		if len(fms) == 0 {
			fm = goexiftool.FileMetadata{File: path, Err: errors.New("exiftool returned no metadata")}
		} else {
			fm = fms[0]
		}
		if fm.Err != nil {
			return fmt.Errorf("failed to read metadata of %s: %w", path, fm.Err)
		}
		return nil
	})
	if err != nil {
		return Metadata{Path: path}, err
	}

	md := parseMetadata(fm, p.location)
	md.Path = path
	return md, nil
}

// WriteGPS writes point into the GPS tags of current.Path. Without overwrite a
// photo whose current metadata has a position is left untouched and
// ErrGPSPresent is returned.
func (p *Pool) WriteGPS(ctx context.Context, current Metadata, point Point, overwrite bool) error {
	path := current.Path
	if !overwrite && current.HasGPS {
		return ErrGPSPresent
	}

	var info os.FileInfo
	if p.keepMtime {
		var err error
		if info, err = os.Stat(path); err != nil {
			return fmt.Errorf("failed to write gps tags to %s: %w", path, err)
		}
	}

	fms := []goexiftool.FileMetadata{{File: path, Fields: gpsFields(point)}}
	err := p.do(ctx, func(proc process) error {
		proc.WriteMetadata(fms)
		if fms[0].Err != nil {
			return fmt.Errorf("failed to write gps tags to %s: %w", path, fms[0].Err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if info != nil {
		// Zero access time leaves it unchanged.
		if err := os.Chtimes(path, time.Time{}, info.ModTime()); err != nil {
			p.logger.Warn().Err(err).Str("photo", path).Msg("Failed to restore modification time")
		}
	}
	return nil
}

// Close stops every idle process. Processes abandoned after a timeout are
// closed by their own goroutines once they answer.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for {
		select {
		case proc := <-p.procs:
			if err := proc.Close(); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}

// do runs fn on an exclusively held process, bounded by the pool timeout, and
// returns the error fn reports. A process whose pipes broke is retired and
// replaced instead of going back to the pool.
func (p *Pool) do(ctx context.Context, fn func(proc process) error) error {
	proc, err := p.acquire(ctx)
	if err != nil {
		return err
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	defer cancel()

	var callErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		callErr = fn(proc)
	}()

	select {
	case <-done:
		if brokenStream(callErr) {
			p.logger.Warn().Err(callErr).Msg("exiftool stream broken, process replaced")
			go func() { _ = proc.Close() }()
			p.replace()
			return callErr
		}
		p.release(proc)
		return callErr
	case <-callCtx.Done():
		// The process is mid-call and cannot be reused; retire it once it answers.
		go func() {
			<-done
			_ = proc.Close()
		}()
		p.replace()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn().Dur("timeout", p.timeout).Msg("exiftool call timed out, process replaced")
		return ErrTimeout
	}
}

func (p *Pool) acquire(ctx context.Context) (process, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	select {
	case proc := <-p.procs:
		return proc, nil
	case <-p.dead:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) release(proc process) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = proc.Close()
		return
	}
	p.procs <- proc
}

// replace starts a new process for one that was retired.
func (p *Pool) replace() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	proc, err := p.factory()
	if err != nil {
		p.live--
		p.logger.Error().Err(err).Int("live", p.live).Msg("Failed to restart exiftool")
		if p.live == 0 {
			close(p.dead)
		}
		return
	}
	p.procs <- proc
}

// brokenStream reports whether err means the process can no longer be talked to.
// go-exiftool's scanner is spent after an overflow, and read and write failures
// on its pipes mean exiftool is gone.
func brokenStream(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, goexiftool.ErrBufferTooSmall) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	return strings.Contains(err.Error(), "error while reading stdMergedOut")
}
