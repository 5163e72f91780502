package exiftool

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"sync/atomic"
	"testing"
	"time"

	goexiftool "github.com/barasher/go-exiftool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcess stands in for a stay-open exiftool process.
type fakeProcess struct {
	mu         sync.Mutex
	fields     map[string]map[string]interface{}
	writes     []goexiftool.FileMetadata
	writeErr   error
	extractErr error
	touch      bool // bump the mtime of written files like a real write
	reads      int
	block      chan struct{}
	closed     bool
}

func (f *fakeProcess) ExtractMetadata(files ...string) []goexiftool.FileMetadata {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	out := make([]goexiftool.FileMetadata, 0, len(files))
	for _, file := range files {
		if f.extractErr != nil {
			out = append(out, goexiftool.FileMetadata{File: file, Err: f.extractErr})
			continue
		}
		fields, ok := f.fields[file]
		if !ok {
			out = append(out, goexiftool.FileMetadata{File: file, Err: errors.New("file not found")})
			continue
		}
		out = append(out, goexiftool.FileMetadata{File: file, Fields: fields})
	}
	return out
}

func (f *fakeProcess) WriteMetadata(fileInfos []goexiftool.FileMetadata) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range fileInfos {
		if f.writeErr != nil {
			fileInfos[i].Err = f.writeErr
			continue
		}
		f.writes = append(f.writes, fileInfos[i])
		if f.touch {
			now := time.Now()
			_ = os.Chtimes(fileInfos[i].File, now, now)
		}
	}
}

func (f *fakeProcess) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newFakePool(t *testing.T, proc *fakeProcess, timeout time.Duration) *Pool {
	t.Helper()
	pool, err := newPool(Options{Size: 1, Timeout: timeout, Location: time.UTC},
		func() (process, error) { return proc, nil }, zerolog.Nop())
	require.NoError(t, err)
	return pool
}

func TestPool_ReadTimestampAndGPS(t *testing.T) {
	proc := &fakeProcess{fields: map[string]map[string]interface{}{
		"a.jpg": {
			"DateTimeOriginal": "2024:05:01 10:20:30",
			"GPSLatitude":      -33.8688,
			"GPSLongitude":     151.2093,
			"GPSAltitude":      58.5,
			"GPSAltitudeRef":   float64(0),
		},
	}}
	pool := newFakePool(t, proc, time.Second)
	defer pool.Close()

	md, err := pool.ReadTimestampAndGPS(context.Background(), "a.jpg")

	require.NoError(t, err)
	require.NotNil(t, md.Timestamp)
	assert.True(t, md.Timestamp.Equal(time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC)))
	assert.True(t, md.HasGPS)
	assert.Equal(t, Point{Latitude: -33.8688, Longitude: 151.2093, Altitude: 58.5}, md.Point)
}

func TestPool_ReadTimestampAndGPS_Error(t *testing.T) {
	pool := newFakePool(t, &fakeProcess{}, time.Second)
	defer pool.Close()

	_, err := pool.ReadTimestampAndGPS(context.Background(), "missing.jpg")

	assert.ErrorContains(t, err, "file not found")
}

// TestPool_WriteGPS_KeepsExistingTags checks nothing is written without overwrite.
func TestPool_WriteGPS_KeepsExistingTags(t *testing.T) {
	proc := &fakeProcess{}
	pool := newFakePool(t, proc, time.Second)
	defer pool.Close()

	err := pool.WriteGPS(context.Background(), Metadata{Path: "a.jpg", HasGPS: true}, Point{Latitude: 5, Longitude: 6}, false)

	assert.ErrorIs(t, err, ErrGPSPresent)
	assert.Empty(t, proc.writes)
}

// TestPool_WriteGPS_NoExistingTags checks the caller's metadata is trusted, with no second read.
func TestPool_WriteGPS_NoExistingTags(t *testing.T) {
	proc := &fakeProcess{}
	pool := newFakePool(t, proc, time.Second)
	defer pool.Close()

	err := pool.WriteGPS(context.Background(), Metadata{Path: "a.jpg"}, Point{Latitude: 5, Longitude: 6, Altitude: 7}, false)

	require.NoError(t, err)
	require.Len(t, proc.writes, 1)
	assert.Equal(t, "a.jpg", proc.writes[0].File)
	assert.Equal(t, 5.0, proc.writes[0].Fields["GPSLatitude"])
	assert.Zero(t, proc.reads)
}

// TestPool_WriteGPS_Overwrite checks existing tags are replaced with signed refs.
func TestPool_WriteGPS_Overwrite(t *testing.T) {
	proc := &fakeProcess{}
	pool := newFakePool(t, proc, time.Second)
	defer pool.Close()

	err := pool.WriteGPS(context.Background(), Metadata{Path: "a.jpg", HasGPS: true}, Point{Latitude: -10, Longitude: -20, Altitude: -5}, true)

	require.NoError(t, err)
	require.Len(t, proc.writes, 1)
	assert.Equal(t, map[string]interface{}{
		"GPSLatitude":     10.0,
		"GPSLatitudeRef":  "S",
		"GPSLongitude":    20.0,
		"GPSLongitudeRef": "W",
		"GPSAltitude":     5.0,
		"GPSAltitudeRef":  1,
	}, proc.writes[0].Fields)
}

func TestPool_WriteGPS_Failure(t *testing.T) {
	proc := &fakeProcess{writeErr: errors.New("permission denied")}
	pool := newFakePool(t, proc, time.Second)
	defer pool.Close()

	err := pool.WriteGPS(context.Background(), Metadata{Path: "a.jpg"}, Point{}, true)

	assert.ErrorContains(t, err, "permission denied")
}

// TestPool_WriteGPS_KeepsModTime checks the photo's modification time survives a write.
func TestPool_WriteGPS_KeepsModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))
	taken := time.Date(2019, 7, 14, 9, 30, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, taken, taken))

	proc := &fakeProcess{touch: true}
	pool, err := newPool(Options{Size: 1, KeepMtime: true}, func() (process, error) { return proc, nil }, zerolog.Nop())
	require.NoError(t, err)
	defer pool.Close()

	err = pool.WriteGPS(context.Background(), Metadata{Path: path}, Point{Latitude: 1, Longitude: 2}, false)

	require.NoError(t, err)
	require.Len(t, proc.writes, 1)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, taken.Equal(info.ModTime()), "mtime %v", info.ModTime())
}

// TestPool_WriteGPS_MissingFileWithKeepMtime checks a vanished photo fails before exiftool is called.
func TestPool_WriteGPS_MissingFileWithKeepMtime(t *testing.T) {
	proc := &fakeProcess{}
	pool, err := newPool(Options{Size: 1, KeepMtime: true}, func() (process, error) { return proc, nil }, zerolog.Nop())
	require.NoError(t, err)
	defer pool.Close()

	err = pool.WriteGPS(context.Background(), Metadata{Path: filepath.Join(t.TempDir(), "gone.jpg")}, Point{}, true)

	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Empty(t, proc.writes)
}

// TestPool_BrokenStreamReplacesProcess checks a process that lost its pipes is not reused.
func TestPool_BrokenStreamReplacesProcess(t *testing.T) {
	dead := &fakeProcess{extractErr: errors.New("error while reading stdMergedOut: EOF")}
	fresh := &fakeProcess{fields: map[string]map[string]interface{}{"a.jpg": {}}}
	var started atomic.Int32

	pool, err := newPool(Options{Size: 1, Timeout: time.Second}, func() (process, error) {
		if started.Add(1) == 1 {
			return dead, nil
		}
		return fresh, nil
	}, zerolog.Nop())
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.ReadTimestampAndGPS(context.Background(), "a.jpg")
	assert.ErrorContains(t, err, "stdMergedOut")
	assert.Equal(t, int32(2), started.Load())

	_, err = pool.ReadTimestampAndGPS(context.Background(), "a.jpg")
	assert.NoError(t, err)
	assert.Eventually(t, func() bool {
		dead.mu.Lock()
		defer dead.mu.Unlock()
		return dead.closed
	}, time.Second, 5*time.Millisecond)
}

// TestPool_FileErrorKeepsProcess checks ordinary per-file errors leave the process in the pool.
func TestPool_FileErrorKeepsProcess(t *testing.T) {
	var started atomic.Int32
	proc := &fakeProcess{}
	pool, err := newPool(Options{Size: 1}, func() (process, error) {
		started.Add(1)
		return proc, nil
	}, zerolog.Nop())
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.ReadTimestampAndGPS(context.Background(), "missing.jpg")
	assert.Error(t, err)
	_, err = pool.ReadTimestampAndGPS(context.Background(), "missing.jpg")
	assert.Error(t, err)

	assert.Equal(t, int32(1), started.Load())
	assert.False(t, proc.closed)
}

func TestBrokenStream(t *testing.T) {
	broken := []error{
		errors.New("failed to read metadata of a.jpg: error while reading stdMergedOut: EOF"),
		goexiftool.ErrBufferTooSmall,
		&os.PathError{Op: "write", Path: "|1", Err: syscall.EPIPE},
		os.ErrClosed,
	}
	for _, err := range broken {
		assert.True(t, brokenStream(err), err.Error())
	}

	healthy := []error{
		nil,
		goexiftool.ErrNotExist,
		errors.New("Error writing metadata: Warning: [minor] Bad MakerNotes"),
	}
	for _, err := range healthy {
		assert.False(t, brokenStream(err), "%v", err)
	}
}

// TestPool_TimeoutReplacesProcess checks a hung call is abandoned and a fresh process takes over.
func TestPool_TimeoutReplacesProcess(t *testing.T) {
	hung := &fakeProcess{block: make(chan struct{})}
	fresh := &fakeProcess{fields: map[string]map[string]interface{}{"a.jpg": {}}}
	var started atomic.Int32

	pool, err := newPool(Options{Size: 1, Timeout: 20 * time.Millisecond}, func() (process, error) {
		if started.Add(1) == 1 {
			return hung, nil
		}
		return fresh, nil
	}, zerolog.Nop())
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.ReadTimestampAndGPS(context.Background(), "a.jpg")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(2), started.Load())

	_, err = pool.ReadTimestampAndGPS(context.Background(), "a.jpg")
	assert.NoError(t, err)

	close(hung.block)
	assert.Eventually(t, func() bool {
		hung.mu.Lock()
		defer hung.mu.Unlock()
		return hung.closed
	}, time.Second, 5*time.Millisecond)
}

// TestPool_RestartFailureClosesPool checks callers are not left waiting when no process survives.
func TestPool_RestartFailureClosesPool(t *testing.T) {
	hung := &fakeProcess{block: make(chan struct{})}
	defer close(hung.block)
	var started atomic.Int32

	pool, err := newPool(Options{Size: 1, Timeout: 10 * time.Millisecond}, func() (process, error) {
		if started.Add(1) == 1 {
			return hung, nil
		}
		return nil, errors.New("exec failed")
	}, zerolog.Nop())
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.ReadTimestampAndGPS(context.Background(), "a.jpg")
	assert.ErrorIs(t, err, ErrTimeout)

	_, err = pool.ReadTimestampAndGPS(context.Background(), "a.jpg")
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPool_Close(t *testing.T) {
	proc := &fakeProcess{}
	pool := newFakePool(t, proc, 0)

	assert.NoError(t, pool.Close())
	assert.NoError(t, pool.Close())
	assert.True(t, proc.closed)

	_, err := pool.ReadTimestampAndGPS(context.Background(), "a.jpg")
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestNewPool_FactoryError(t *testing.T) {
	_, err := newPool(Options{Size: 2}, func() (process, error) {
		return nil, errors.New("no binary")
	}, zerolog.Nop())

	assert.ErrorContains(t, err, "no binary")
}
