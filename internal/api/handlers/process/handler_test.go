package process

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermark-relay/internal/api/respond"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

// fakeService watermarks only group 1.
type fakeService struct {
	lastGroup int64
}

func (f *fakeService) ProcessText(_ context.Context, groupID int64, text string) (string, bool) {
	f.lastGroup = groupID
	if groupID != 1 {
		return text, false
	}
	return text + "\n\n@channel", true
}

func (f *fakeService) ProcessImage(_ context.Context, groupID int64, data []byte) ([]byte, bool) {
	f.lastGroup = groupID
	if groupID != 1 {
		return data, false
	}
	return []byte("jpeg"), true
}

func (f *fakeService) ProcessVideo(_ context.Context, groupID int64, data []byte) ([]byte, bool) {
	f.lastGroup = groupID
	if groupID != 1 {
		return data, false
	}
	return []byte("mp4"), true
}

func setup(svc *fakeService, maxBodyMB int) *ginext.Engine {
	h := NewHandler(svc, maxBodyMB)

	r := ginext.New()
	r.POST("/groups/:id/process/text", h.Text)
	r.POST("/groups/:id/process/image", h.Image)
	r.POST("/groups/:id/process/video", h.Video)
	return r
}

func post(r http.Handler, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestText(t *testing.T) {
	svc := &fakeService{}
	r := setup(svc, 1)

	rec := post(r, "/groups/1/process/text", "application/json", []byte(`{"text":"hello"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(respond.ProcessedHeader))

	var env struct {
		Result TextResponse `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "hello\n\n@channel", env.Result.Text)
	assert.True(t, env.Result.Processed)

	rec = post(r, "/groups/2/process/text", "application/json", []byte(`{"text":"hello"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "false", rec.Header().Get(respond.ProcessedHeader))

	rec = post(r, "/groups/1/process/text", "application/json", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImage(t *testing.T) {
	svc := &fakeService{}
	r := setup(svc, 1)

	t.Run("processed", func(t *testing.T) {
		rec := post(r, "/groups/1/process/image", "image/png", []byte("png"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "true", rec.Header().Get(respond.ProcessedHeader))
		assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
		assert.Equal(t, "jpeg", rec.Body.String())
	})

	t.Run("passthrough keeps content type", func(t *testing.T) {
		rec := post(r, "/groups/-100/process/image", "image/png", []byte("png"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "false", rec.Header().Get(respond.ProcessedHeader))
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, "png", rec.Body.String())
		assert.Equal(t, int64(-100), svc.lastGroup)
	})

	t.Run("empty body", func(t *testing.T) {
		rec := post(r, "/groups/1/process/image", "image/png", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := post(r, "/groups/x/process/image", "image/png", []byte("png"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestVideo(t *testing.T) {
	svc := &fakeService{}

	rec := post(setup(svc, 1), "/groups/1/process/video", "video/mp4", []byte("raw"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mp4", rec.Body.String())

	rec = post(setup(svc, 0), "/groups/1/process/video", "video/mp4", []byte("raw"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
