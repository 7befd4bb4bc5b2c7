package asset

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	files map[string][]byte
	opens int
}

func (m *memStorage) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	m.opens++
	data, ok := m.files[ref]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCacheLoadsOnce(t *testing.T) {
	st := &memStorage{files: map[string][]byte{
		"logo.png": pngBytes(t, 4, 2, color.NRGBA{255, 0, 0, 128}),
	}}
	c := NewCache(st)

	img, err := c.Get(context.Background(), "logo.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())

	_, err = c.Get(context.Background(), "logo.png")
	require.NoError(t, err)
	assert.Equal(t, 1, st.opens)
	assert.Equal(t, 1, c.Len())
}

func TestCacheInvalidateReloads(t *testing.T) {
	st := &memStorage{files: map[string][]byte{
		"logo.png": pngBytes(t, 4, 2, color.White),
	}}
	c := NewCache(st)

	_, err := c.Get(context.Background(), "logo.png")
	require.NoError(t, err)

	st.files["logo.png"] = pngBytes(t, 8, 8, color.White)
	c.Invalidate("logo.png")
	assert.Equal(t, 0, c.Len())

	img, err := c.Get(context.Background(), "logo.png")
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 2, st.opens)
}

func TestCacheMissingAsset(t *testing.T) {
	c := NewCache(&memStorage{files: map[string][]byte{}})

	_, err := c.Get(context.Background(), "missing.png")
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

// blockingStorage holds every Open until release is closed.
type blockingStorage struct {
	data    []byte
	started chan struct{}
	release chan struct{}

	mu      sync.Mutex
	opens   int
	ctxErrs []error
}

func newBlockingStorage(data []byte) *blockingStorage {
	return &blockingStorage{data: data, started: make(chan struct{}, 4), release: make(chan struct{})}
}

func (b *blockingStorage) Open(ctx context.Context, _ string) (io.ReadCloser, error) {
	b.mu.Lock()
	b.opens++
	b.mu.Unlock()

	b.started <- struct{}{}
	<-b.release

	b.mu.Lock()
	b.ctxErrs = append(b.ctxErrs, ctx.Err())
	b.mu.Unlock()

	return io.NopCloser(bytes.NewReader(b.data)), nil
}

type getResult struct {
	img image.Image
	err error
}

func getAsync(ctx context.Context, c *Cache, ref string) <-chan getResult {
	out := make(chan getResult, 1)
	go func() {
		img, err := c.Get(ctx, ref)
		out <- getResult{img, err}
	}()
	return out
}

func wait(t *testing.T, ch <-chan getResult) getResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("Get did not return")
		return getResult{}
	}
}

func TestCacheCanceledCallerDoesNotFailLoad(t *testing.T) {
	st := newBlockingStorage(pngBytes(t, 4, 2, color.White))
	c := NewCache(st)

	ctx, cancel := context.WithCancel(context.Background())
	first := getAsync(ctx, c, "logo.png")
	<-st.started

	cancel()
	res := wait(t, first)
	require.ErrorIs(t, res.err, context.Canceled)

	second := getAsync(context.Background(), c, "logo.png")
	close(st.release)

	res = wait(t, second)
	require.NoError(t, res.err)
	assert.Equal(t, 4, res.img.Bounds().Dx())

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, err := range st.ctxErrs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, c.Len())
}

func TestCacheInvalidateDuringLoad(t *testing.T) {
	st := newBlockingStorage(pngBytes(t, 4, 2, color.White))
	c := NewCache(st)

	pending := getAsync(context.Background(), c, "logo.png")
	<-st.started

	c.Invalidate("logo.png")
	close(st.release)

	res := wait(t, pending)
	require.NoError(t, res.err)
	assert.Equal(t, 0, c.Len(), "a load started before Invalidate must not be cached")

	_, err := c.Get(context.Background(), "logo.png")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Equal(t, 2, st.opens)
}
