package memory

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/memclass/internal/errors"
)

func TestDisabled_EveryAccessFails(t *testing.T) {
	var d Disabled
	_, err := d.Read(0x1000, 4)
	require.True(t, errors.Is(err, errors.ErrMemoryRead))
	require.True(t, stderrors.Is(err, ErrNotAttached))

	err = d.Write(0x1000, []byte{1})
	require.True(t, errors.Is(err, errors.ErrMemoryWrite))
}

func TestSparse_ReadWithinAndAcrossRegions(t *testing.T) {
	s := NewSparse()
	require.NoError(t, s.Map(0x1000, []byte{1, 2, 3, 4}))
	require.NoError(t, s.Map(0x1004, []byte{5, 6}))

	b, err := s.Read(0x1001, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3}, b)

	b, err = s.Read(0x1002, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{3, 4, 5, 6}, b)

	_, err = s.Read(0x1004, 3)
	require.True(t, errors.Is(err, errors.ErrMemoryRead), "read past the last region must fail")

	_, err = s.Read(0x0FFF, 2)
	require.True(t, errors.Is(err, errors.ErrMemoryRead))

	_, err = s.Read(^uint64(0), 2)
	require.True(t, errors.Is(err, errors.ErrMemoryRead), "wrapping read must fail")
}

func TestSparse_ReadReturnsCopy(t *testing.T) {
	s := NewSparse()
	require.NoError(t, s.Map(0, []byte{9, 9}))
	b, _ := s.Read(0, 2)
	b[0] = 0
	again, _ := s.Read(0, 2)
	require.Equal(t, []byte{9, 9}, again)
}

func TestSparse_WriteIsAllOrNothing(t *testing.T) {
	s := NewSparse()
	require.NoError(t, s.Map(0x10, []byte{0, 0}))
	require.NoError(t, s.MapReadOnly(0x12, []byte{0, 0}))

	err := s.Write(0x11, []byte{7, 7})
	require.True(t, errors.Is(err, errors.ErrMemoryWrite))
	require.True(t, stderrors.Is(err, ErrReadOnly))

	b, _ := s.Read(0x10, 4)
	require.Equal(t, []byte{0, 0, 0, 0}, b, "failed write must not be partially applied")

	require.NoError(t, s.Write(0x10, []byte{7, 8}))
	b, _ = s.Read(0x10, 2)
	require.Equal(t, []byte{7, 8}, b)

	err = s.Write(0x20, []byte{1})
	require.True(t, stderrors.Is(err, ErrNotMapped))
}

func TestSparse_MapRejectsOverlapAndEmpty(t *testing.T) {
	s := NewSparse()
	require.NoError(t, s.Map(0x100, make([]byte, 16)))
	require.True(t, errors.Is(s.Map(0x10F, []byte{1}), errors.ErrInvalidRequest))
	require.True(t, errors.Is(s.Map(0x200, nil), errors.ErrInvalidRequest))
	require.NoError(t, s.Map(0x110, []byte{1}))
}

func TestSparse_ClosedFails(t *testing.T) {
	s := NewSparse()
	require.NoError(t, s.Map(0, []byte{1}))
	require.NoError(t, s.Close())
	_, err := s.Read(0, 1)
	require.True(t, stderrors.Is(err, ErrNotAttached))
}

func TestLoadDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xDE, 0xAD, 0xBE, 0xEF}, 0600))

	s, err := LoadDump(path, 0x7000, 0)
	require.NoError(t, err)
	b, err := s.Read(0x7002, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{0xBE, 0xEF}, b)

	_, err = LoadDump(filepath.Join(t.TempDir(), "missing.bin"), 0, 0)
	require.True(t, errors.Is(err, errors.ErrFileNotFound))
}

func TestLoadDump_SizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0600))

	_, err := LoadDump(path, 0, 63)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	require.Contains(t, err.Error(), "exceeds 63 bytes")

	s, err := LoadDump(path, 0, 64)
	require.NoError(t, err)
	_, err = s.Read(63, 1)
	require.NoError(t, err)
}

func TestLoadDump_RejectsNonRegularFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.bin")
	require.NoError(t, os.WriteFile(target, []byte{1, 2, 3, 4}, 0600))
	link := filepath.Join(dir, "link.bin")
	require.NoError(t, os.Symlink(target, link))

	tests := []struct {
		name string
		path string
	}{
		{"directory", dir},
		{"symlink", link},
		{"device", os.DevNull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDump(tt.path, 0, 0)
			require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
			require.Contains(t, err.Error(), "regular file")
		})
	}
}

func TestHandle_DetachedBehavesLikeDisabled(t *testing.T) {
	h := NewHandle()
	_, ok := h.Source()
	require.False(t, ok)

	_, err := h.Read(0x1000, 8)
	require.True(t, errors.Is(err, errors.ErrMemoryRead))
	require.True(t, stderrors.Is(err, ErrNotAttached))
	require.NoError(t, h.Detach(), "detaching a detached handle is a no-op")
}

func TestHandle_AttachDetach(t *testing.T) {
	first := NewSparse()
	require.NoError(t, first.Map(0, []byte{1}))
	second := NewSparse()
	require.NoError(t, second.Map(0, []byte{2}))

	h := NewHandle()
	require.NoError(t, h.Attach(first, Source{Kind: "dump", Path: "a"}))
	b, err := h.Read(0, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, b)

	require.NoError(t, h.Attach(second, Source{Kind: "dump", Path: "b"}))
	_, err = first.Read(0, 1)
	require.Error(t, err, "replaced backend must be closed")

	src, ok := h.Source()
	require.True(t, ok)
	require.Equal(t, "b", src.Path)

	require.NoError(t, h.Write(0, []byte{3}))
	b, _ = h.Read(0, 1)
	require.Equal(t, []byte{3}, b)

	require.NoError(t, h.Detach())
	_, err = h.Read(0, 1)
	require.True(t, stderrors.Is(err, ErrNotAttached))
}

// TestHandle_ConcurrentReadsAndDetach checks that every read either sees the
// attached data or fails cleanly while detach/attach cycles run.
func TestHandle_ConcurrentReadsAndDetach(t *testing.T) {
	want := bytes.Repeat([]byte{0xAB}, 64)
	h := NewHandle()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				b, err := h.Read(0x4000, len(want))
				if err != nil {
					if !errors.Is(err, errors.ErrMemoryRead) {
						t.Errorf("unexpected error type: %v", err)
						return
					}
					continue
				}
				if !bytes.Equal(b, want) {
					t.Errorf("torn read: % X", b)
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		s := NewSparse()
		require.NoError(t, s.Map(0x4000, want))
		require.NoError(t, h.Attach(s, Source{Kind: "dump"}))
		require.NoError(t, h.Detach())
	}
	close(stop)
	wg.Wait()
}
