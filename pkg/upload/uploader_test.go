package upload

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igclient/pkg/config"
	"igclient/pkg/errors"
	"igclient/pkg/logger"
	"igclient/pkg/session"
	"igclient/pkg/transport"
)

type mockRoundTripper struct {
	responses []*http.Response
	requests  []*http.Request
	bodies    [][]byte
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}
	m.requests = append(m.requests, req)
	m.bodies = append(m.bodies, body)

	i := len(m.requests) - 1
	if i >= len(m.responses) {
		return nil, fmt.Errorf("unexpected request %d to %s", i, req.URL)
	}
	resp := m.responses[i]
	resp.Request = req
	return resp, nil
}

func response(status int, contentType, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{contentType}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestUploader(t *testing.T, rt *mockRoundTripper) *Uploader {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RateLimit.Enabled = false
	client := transport.New(session.New("test-seed", "tester"), cfg, logger.NewTestLogger())
	client.SetHTTPClient(&http.Client{Transport: rt})
	return New(client, logger.NewTestLogger())
}

// parseMultipart decodes a multipart body into its form fields plus the file
// part's headers and payload.
func parseMultipart(t *testing.T, contentType string, body []byte) (map[string]string, *multipart.Part, []byte) {
	t.Helper()
	_, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)

	fields := map[string]string{}
	reader := multipart.NewReader(strings.NewReader(string(body)), params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		if part.FileName() != "" {
			return fields, part, data
		}
		fields[part.FormName()] = string(data)
	}
	return fields, nil, nil
}

func TestUploadPhotoPost(t *testing.T) {
	rt := &mockRoundTripper{responses: []*http.Response{
		response(200, "application/json", `{"status":"ok","upload_id":"555"}`),
		response(200, "application/json", `{"status":"ok","media":{"pk":1}}`),
	}}
	u := newTestUploader(t, rt)

	result, err := u.UploadPhoto(context.Background(), Photo{
		Data:    []byte("jpegdata"),
		Kind:    PhotoPost,
		Caption: "hello",
		Width:   1080,
		Height:  1080,
	})
	require.NoError(t, err)
	require.Len(t, rt.requests, 2)
	assert.Equal(t, "555", result.UploadID)

	// The multipart upload hits the fixed photo endpoint
	uploadReq := rt.requests[0]
	assert.Equal(t, http.MethodPost, uploadReq.Method)
	assert.Equal(t, "https://i.instagram.com/api/v1/upload/photo/", uploadReq.URL.String())

	fields, filePart, fileData := parseMultipart(t, uploadReq.Header.Get("Content-Type"), rt.bodies[0])
	require.NotNil(t, filePart)
	assert.Equal(t, "photo", filePart.FormName())
	assert.True(t, strings.HasPrefix(filePart.FileName(), "pending_media_"))
	assert.True(t, strings.HasSuffix(filePart.FileName(), ".jpg"))
	assert.Equal(t, []byte("jpegdata"), fileData)

	assert.Equal(t, u.client.Session().Identity.UUID, fields["_uuid"])
	assert.Equal(t, imageCompression, fields["image_compression"])
	assert.NotContains(t, fields, "is_sidecar")
	assert.NotContains(t, fields, "media_type")

	// Configure references the server-assigned upload id
	configReq := rt.requests[1]
	assert.Equal(t, "/api/v1/media/configure/", configReq.URL.Path)
	payload := string(rt.bodies[1])
	assert.Contains(t, payload, "signed_body")
	assert.Contains(t, payload, "555")
	assert.Contains(t, payload, "hello")
}

func TestUploadPhotoStory(t *testing.T) {
	rt := &mockRoundTripper{responses: []*http.Response{
		response(200, "application/json", `{"status":"ok","upload_id":"556"}`),
		response(200, "application/json", `{"status":"ok"}`),
	}}
	u := newTestUploader(t, rt)

	_, err := u.UploadPhoto(context.Background(), Photo{
		Data: []byte("jpegdata"), Kind: PhotoStory, Width: 720, Height: 1280,
	})
	require.NoError(t, err)
	require.Len(t, rt.requests, 2)
	assert.Equal(t, "/api/v1/media/configure_to_story/", rt.requests[1].URL.Path)
}

func TestUploadPhotoSidecarSkipsConfigure(t *testing.T) {
	rt := &mockRoundTripper{responses: []*http.Response{
		response(200, "application/json", `{"status":"ok","upload_id":"557"}`),
	}}
	u := newTestUploader(t, rt)

	result, err := u.UploadPhoto(context.Background(), Photo{
		Data: []byte("jpegdata"), Kind: PhotoSidecar, Width: 1080, Height: 1080,
	})
	require.NoError(t, err)
	require.Len(t, rt.requests, 1)

	fields, _, _ := parseMultipart(t, rt.requests[0].Header.Get("Content-Type"), rt.bodies[0])
	assert.Equal(t, "1", fields["is_sidecar"])
	assert.Equal(t, map[string]interface{}{"upload_id": "557"}, result.Metadata)
}

func TestUploadPhotoRejectsEmptyData(t *testing.T) {
	u := newTestUploader(t, &mockRoundTripper{})
	_, err := u.UploadPhoto(context.Background(), Photo{Kind: PhotoPost})
	var verr *errors.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUploadPhotoRejectsLongCaption(t *testing.T) {
	u := newTestUploader(t, &mockRoundTripper{})
	_, err := u.UploadPhoto(context.Background(), Photo{
		Data:    []byte("jpegdata"),
		Kind:    PhotoPost,
		Caption: strings.Repeat("x", maxCaptionLen+1),
	})
	var verr *errors.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func testVideo(data []byte) Video {
	return Video{
		Data:      data,
		Thumbnail: []byte("thumbdata"),
		Duration:  10,
		Width:     640,
		Height:    480,
		Caption:   "clip",
	}
}

func videoJobResponses() []*http.Response {
	return []*http.Response{
		response(200, "application/json",
			`{"status":"ok","video_upload_urls":[{"url":"https://upload.example.com/rupload","job":"jobtoken"}]}`),
	}
}

func TestUploadVideoChunksAndConfigures(t *testing.T) {
	data := make([]byte, 1048576)
	responses := videoJobResponses()
	for i := 0; i < 3; i++ {
		responses = append(responses, response(200, "text/plain", "0-262143/1048576"))
	}
	responses = append(responses,
		response(200, "application/json", `{"status":"ok","configure_delay_ms":3000}`),
		response(200, "application/json", `{"status":"ok","upload_id":"vid1"}`),
		response(200, "application/json", `{"status":"ok","media":{"pk":9}}`),
	)
	rt := &mockRoundTripper{responses: responses}
	u := newTestUploader(t, rt)

	var slept []time.Duration
	u.sleep = func(d time.Duration) { slept = append(slept, d) }
	var progress []int64
	u.Progress = func(sent, total int64) { progress = append(progress, sent) }

	result, err := u.UploadVideo(context.Background(), testVideo(data))
	require.NoError(t, err)
	require.Len(t, rt.requests, 7)
	assert.NotEmpty(t, result.UploadID)

	// Job fetch is an unsigned POST
	jobReq := rt.requests[0]
	assert.Equal(t, "/api/v1/upload/video/", jobReq.URL.Path)
	assert.Contains(t, string(rt.bodies[0]), "media_type=2")
	assert.Contains(t, string(rt.bodies[0]), "upload_media_duration_ms=10000")
	assert.NotContains(t, string(rt.bodies[0]), "signed_body")

	// Four quarter chunks stream to the job URL with exact byte ranges
	wantRanges := []string{
		"bytes 0-262143/1048576",
		"bytes 262144-524287/1048576",
		"bytes 524288-786431/1048576",
		"bytes 786432-1048575/1048576",
	}
	for i, want := range wantRanges {
		req := rt.requests[1+i]
		assert.Equal(t, "https://upload.example.com/rupload", req.URL.String())
		assert.Equal(t, want, req.Header.Get("Content-Range"))
		assert.Equal(t, "application/octet-stream", req.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename="video.mov"`, req.Header.Get("Content-Disposition"))
		assert.Equal(t, result.UploadID, req.Header.Get("Session-ID"))
		assert.Equal(t, "jobtoken", req.Header.Get("job"))
		assert.Equal(t, int64(262144), req.ContentLength)
		assert.Len(t, rt.bodies[1+i], 262144)
	}

	assert.Equal(t, []int64{262144, 524288, 786432, 1048576}, progress)
	assert.Equal(t, []time.Duration{3 * time.Second}, slept)

	// The thumbnail reuses the video upload id
	fields, _, thumbData := parseMultipart(t, rt.requests[5].Header.Get("Content-Type"), rt.bodies[5])
	assert.Equal(t, result.UploadID, fields["upload_id"])
	assert.Equal(t, "2", fields["media_type"])
	assert.Equal(t, []byte("thumbdata"), thumbData)

	// Configure carries the video flag
	configReq := rt.requests[6]
	assert.Equal(t, "/api/v1/media/configure/", configReq.URL.Path)
	assert.Equal(t, "1", configReq.URL.Query().Get("video"))
}

func TestUploadVideoAbortsOnBrokenChunk(t *testing.T) {
	data := make([]byte, 1048576)
	responses := videoJobResponses()
	responses = append(responses,
		response(200, "text/plain", "0-262143/1048576"),
		response(200, "text/plain", "garbage"),
	)
	rt := &mockRoundTripper{responses: responses}
	u := newTestUploader(t, rt)

	_, err := u.UploadVideo(context.Background(), testVideo(data))
	require.Error(t, err)

	var apiErr *errors.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errors.KindGeneric, apiErr.Kind)
	assert.Equal(t, "Upload has unexpectedly failed", apiErr.Message)
	assert.Equal(t, 500, apiErr.Code)

	// Chunks three and four never went out
	assert.Len(t, rt.requests, 3)
}

func TestUploadVideoConfigureDelayCapped(t *testing.T) {
	data := make([]byte, 1048576)
	responses := videoJobResponses()
	for i := 0; i < 3; i++ {
		responses = append(responses, response(200, "text/plain", "0-ok"))
	}
	responses = append(responses,
		response(200, "application/json", `{"status":"ok","configure_delay_ms":60000}`),
		response(200, "application/json", `{"status":"ok","upload_id":"vid2"}`),
		response(200, "application/json", `{"status":"ok"}`),
	)
	rt := &mockRoundTripper{responses: responses}
	u := newTestUploader(t, rt)

	var slept []time.Duration
	u.sleep = func(d time.Duration) { slept = append(slept, d) }

	_, err := u.UploadVideo(context.Background(), testVideo(data))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10 * time.Second}, slept)
}

func TestUploadVideoStoryEndpoint(t *testing.T) {
	data := make([]byte, 400000)
	responses := videoJobResponses()
	for i := 0; i < 3; i++ {
		responses = append(responses, response(200, "text/plain", "0-ok"))
	}
	responses = append(responses,
		response(200, "text/plain", "done"),
		response(200, "application/json", `{"status":"ok","upload_id":"vid3"}`),
		response(200, "application/json", `{"status":"ok"}`),
	)
	rt := &mockRoundTripper{responses: responses}
	u := newTestUploader(t, rt)

	video := testVideo(data)
	video.Width, video.Height = 720, 1280
	video.IsStory = true
	_, err := u.UploadVideo(context.Background(), video)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/media/configure_to_story/", rt.requests[6].URL.Path)
}

func TestUploadVideoSidecarThumbnailFields(t *testing.T) {
	data := make([]byte, 400000)
	responses := videoJobResponses()
	for i := 0; i < 3; i++ {
		responses = append(responses, response(200, "text/plain", "0-ok"))
	}
	responses = append(responses,
		response(200, "text/plain", "done"),
		response(200, "application/json", `{"status":"ok","upload_id":"vid4"}`),
	)
	rt := &mockRoundTripper{responses: responses}
	u := newTestUploader(t, rt)

	video := testVideo(data)
	video.Width, video.Height = 640, 640
	video.IsSidecar = true
	result, err := u.UploadVideo(context.Background(), video)
	require.NoError(t, err)

	// Job fetch, four chunks, thumbnail; configure happens at the album level
	require.Len(t, rt.requests, 6)
	require.NotNil(t, result.Metadata)
	assert.Contains(t, string(rt.bodies[0]), "is_sidecar=1")
	assert.NotContains(t, string(rt.bodies[0]), "media_type")

	// The thumbnail is tagged as both a video poster and an album member
	fields, _, _ := parseMultipart(t, rt.requests[5].Header.Get("Content-Type"), rt.bodies[5])
	assert.Equal(t, "2", fields["media_type"])
	assert.Equal(t, "1", fields["is_sidecar"])
}

func TestUploadVideoValidation(t *testing.T) {
	u := newTestUploader(t, &mockRoundTripper{})
	base := testVideo(make([]byte, 1000))

	tests := []struct {
		name   string
		mutate func(*Video)
	}{
		{"too short", func(v *Video) { v.Duration = 1 }},
		{"too long", func(v *Video) { v.Duration = 120 }},
		{"no thumbnail", func(v *Video) { v.Thumbnail = nil }},
		{"no data", func(v *Video) { v.Data = nil }},
		{"too large", func(v *Video) { v.Data = make([]byte, maxVideoBytes+1) }},
		{"bad post ratio", func(v *Video) { v.Width, v.Height = 100, 1000 }},
		{"bad story ratio", func(v *Video) { v.IsStory = true; v.Width, v.Height = 640, 480 }},
		{"long caption", func(v *Video) { v.Caption = strings.Repeat("x", maxCaptionLen+1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			video := base
			tt.mutate(&video)
			_, err := u.UploadVideo(context.Background(), video)
			var verr *errors.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestUploadAlbum(t *testing.T) {
	rt := &mockRoundTripper{responses: []*http.Response{
		response(200, "application/json", `{"status":"ok","upload_id":"c1"}`),
		response(200, "application/json", `{"status":"ok","upload_id":"c2"}`),
		response(200, "application/json", `{"status":"ok","media":{"pk":3}}`),
	}}
	u := newTestUploader(t, rt)

	resp, err := u.UploadAlbum(context.Background(), Album{
		Caption: "two up",
		Items: []AlbumItem{
			{Type: AlbumItemImage, Data: []byte("img1"), Width: 1080, Height: 1080},
			{Type: AlbumItemImage, Data: []byte("img2"), Width: 1080, Height: 1080},
		},
	})
	require.NoError(t, err)
	require.Len(t, rt.requests, 3)
	assert.Equal(t, "ok", resp["status"])

	// Both children upload as sidecar members
	for i := 0; i < 2; i++ {
		fields, _, _ := parseMultipart(t, rt.requests[i].Header.Get("Content-Type"), rt.bodies[i])
		assert.Equal(t, "1", fields["is_sidecar"])
	}

	configReq := rt.requests[2]
	assert.Equal(t, "/api/v1/media/configure_sidecar/", configReq.URL.Path)
	payload := string(rt.bodies[2])
	assert.Contains(t, payload, "children_metadata")
	assert.Contains(t, payload, "c1")
	assert.Contains(t, payload, "c2")
}

func TestValidateAlbum(t *testing.T) {
	square := AlbumItem{Type: AlbumItemImage, Data: []byte("img"), Width: 1080, Height: 1080}

	tests := []struct {
		name  string
		album Album
	}{
		{"too few", Album{Items: []AlbumItem{square}}},
		{"too many", Album{Items: make([]AlbumItem, 11)}},
		{"unknown type", Album{Items: []AlbumItem{square, {Type: "gif", Data: []byte("x"), Width: 1, Height: 1}}}},
		{"not square", Album{Items: []AlbumItem{square, {Type: AlbumItemImage, Data: []byte("x"), Width: 1080, Height: 720}}}},
		{"video no thumbnail", Album{Items: []AlbumItem{square,
			{Type: AlbumItemVideo, Data: []byte("x"), Duration: 10, Width: 640, Height: 640}}}},
		{"video bad duration", Album{Items: []AlbumItem{square,
			{Type: AlbumItemVideo, Data: []byte("x"), Thumbnail: []byte("t"), Duration: 1, Width: 640, Height: 640}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verr *errors.ValidationError
			assert.ErrorAs(t, validateAlbum(tt.album), &verr)
		})
	}
}
