package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"igclient/pkg/errors"
	"igclient/pkg/transport"
)

// configureDelayCap bounds the sleep the vendor requests between the final
// chunk and configure.
const configureDelayCap = 10 * time.Second

// defaultChunkCount is the number of chunks a video is split into unless the
// caller picks a chunking strategy.
const defaultChunkCount = 4

// Video describes one video upload
type Video struct {
	Data      []byte
	Thumbnail []byte
	Duration  float64
	Width     int
	Height    int
	Caption   string
	UploadID  string
	IsStory   bool
	IsSidecar bool

	DisableComments bool

	// Chunker overrides the default fixed-count chunking
	Chunker Generator
}

// VideoResult carries the outcome of a video upload. Sidecar members return
// their child descriptor in Metadata; standalone uploads return the
// configure response.
type VideoResult struct {
	UploadID string
	Response map[string]interface{}
	Metadata map[string]interface{}
}

// UploadVideo runs the full chunked video flow: job fetch, chunk streaming,
// thumbnail upload and configure.
func (u *Uploader) UploadVideo(ctx context.Context, video Video) (*VideoResult, error) {
	if err := validateVideo(video); err != nil {
		return nil, err
	}

	uploadID := video.UploadID
	if uploadID == "" {
		uploadID = newUploadID()
	}

	uploadURL, job, err := u.fetchUploadJob(ctx, uploadID, video)
	if err != nil {
		return nil, err
	}

	if err := u.streamChunks(ctx, uploadURL, job, uploadID, video); err != nil {
		return nil, err
	}

	// The thumbnail reuses the video's upload id; the video configure
	// finalizes it.
	if _, err := u.UploadPhoto(ctx, Photo{
		Data:      video.Thumbnail,
		Kind:      PhotoVideoThumbnail,
		UploadID:  uploadID,
		Width:     video.Width,
		Height:    video.Height,
		IsSidecar: video.IsSidecar,
	}); err != nil {
		return nil, err
	}

	if video.IsSidecar {
		return &VideoResult{
			UploadID: uploadID,
			Metadata: u.sidecarVideoMetadata(uploadID, video),
		}, nil
	}

	endpoint := "media/configure/"
	if video.IsStory {
		endpoint = "media/configure_to_story/"
	}
	resp, err := u.configureVideo(ctx, endpoint, uploadID, video)
	if err != nil {
		return nil, err
	}
	return &VideoResult{UploadID: uploadID, Response: resp}, nil
}

// fetchUploadJob asks the vendor for the chunk upload URL and job token
func (u *Uploader) fetchUploadJob(ctx context.Context, uploadID string, video Video) (string, string, error) {
	params := u.client.AuthenticatedParams()
	params.Set("upload_id", uploadID)
	if video.IsSidecar {
		params.Set("is_sidecar", "1")
	} else {
		params.Set("media_type", "2").
			Set("upload_media_duration_ms", fmt.Sprintf("%d", int64(video.Duration*1000))).
			Set("upload_media_width", fmt.Sprintf("%d", video.Width)).
			Set("upload_media_height", fmt.Sprintf("%d", video.Height))
	}

	resp, err := u.client.Call(ctx, transport.Request{
		Endpoint: "upload/video/",
		Params:   params,
		Unsigned: true,
	})
	if err != nil {
		return "", "", err
	}

	urls, _ := resp["video_upload_urls"].([]interface{})
	if len(urls) == 0 {
		return "", "", &errors.Error{
			Kind:    errors.KindGeneric,
			Message: "upload response carries no video_upload_urls",
		}
	}
	last, _ := urls[len(urls)-1].(map[string]interface{})
	uploadURL, _ := last["url"].(string)
	job, _ := last["job"].(string)
	if uploadURL == "" || job == "" {
		return "", "", &errors.Error{
			Kind:    errors.KindGeneric,
			Message: "upload response carries no usable upload target",
		}
	}
	return uploadURL, job, nil
}

// streamChunks posts each chunk to the upload URL, enforcing the vendor's
// chunk-response protocol.
func (u *Uploader) streamChunks(ctx context.Context, uploadURL, job, uploadID string, video Video) error {
	total := int64(len(video.Data))
	gen := video.Chunker
	if gen == nil {
		gen = FixedCount(total, defaultChunkCount)
	}

	var sent int64
	for {
		chunk, ok := gen.Next()
		if !ok {
			break
		}

		headers := map[string]string{
			"Content-Type":        "application/octet-stream",
			"Content-Disposition": `attachment; filename="video.mov"`,
			"Session-ID":          uploadID,
			"job":                 job,
			"Content-Length":      fmt.Sprintf("%d", chunk.Length()),
			"Content-Range":       fmt.Sprintf("bytes %d-%d/%d", chunk.Start, chunk.End-1, total),
		}
		if video.IsSidecar {
			if sessionID, ok := u.client.Session().Jar.Get("sessionid", ""); ok {
				headers["Cookie"] = "sessionid=" + sessionID
			}
		}

		raw, resp, err := u.client.Upload(ctx, uploadURL,
			bytes.NewReader(video.Data[chunk.Start:chunk.End]), headers)
		if err != nil {
			return err
		}

		sent += chunk.Length()
		if u.Progress != nil {
			u.Progress(sent, total)
		}

		if !chunk.IsLast {
			// A non-"0-" body means the server lost earlier bytes;
			// pressing on would end in a transcode timeout at configure
			if !strings.HasPrefix(string(raw), "0-") {
				return &errors.Error{
					Kind:          errors.KindGeneric,
					Message:       "Upload has unexpectedly failed",
					Code:          500,
					ErrorResponse: string(raw),
				}
			}
			continue
		}

		if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
			var final struct {
				ConfigureDelayMS int64 `json:"configure_delay_ms"`
			}
			if err := json.Unmarshal(raw, &final); err == nil && final.ConfigureDelayMS > 0 {
				delay := time.Duration(final.ConfigureDelayMS) * time.Millisecond
				if delay > configureDelayCap {
					delay = configureDelayCap
				}
				u.logger.DebugWithFields("honoring configure delay", map[string]interface{}{
					"delay": delay,
				})
				u.sleep(delay)
			}
		}
	}
	return nil
}

// configureVideo finalizes a standalone video post or story
func (u *Uploader) configureVideo(ctx context.Context, endpoint, uploadID string, video Video) (map[string]interface{}, error) {
	params := u.authParams().
		Set("upload_id", uploadID).
		Set("source_type", "3").
		Set("poster_frame_index", 0).
		Set("length", video.Duration).
		Set("audio_muted", false).
		Set("filter_type", "0").
		Set("video_result", "deprecated").
		Set("clips", map[string]interface{}{
			"length":      video.Duration,
			"source_type": "3",
		}).
		Set("device", u.deviceParams()).
		Set("extra", map[string]interface{}{
			"source_width":  video.Width,
			"source_height": video.Height,
		}).
		Set("caption", video.Caption)
	if video.DisableComments {
		params.Set("disable_comments", "1")
	}

	return u.client.Call(ctx, transport.Request{
		Endpoint: endpoint,
		Params:   params,
		Query:    url.Values{"video": []string{"1"}},
	})
}

// sidecarVideoMetadata builds the child descriptor an album configure needs
// for a video member.
func (u *Uploader) sidecarVideoMetadata(uploadID string, video Video) map[string]interface{} {
	return map[string]interface{}{
		"upload_id":          uploadID,
		"source_type":        "4",
		"poster_frame_index": 0,
		"length":             video.Duration,
		"audio_muted":        false,
		"filter_type":        "0",
		"video_result":       "deprecated",
		"clips": map[string]interface{}{
			"length":      video.Duration,
			"source_type": "4",
		},
		"device": u.deviceParams(),
		"extra": map[string]interface{}{
			"source_width":  video.Width,
			"source_height": video.Height,
		},
	}
}
