package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"

	"igclient/pkg/errors"
	"igclient/pkg/transport"
)

// PhotoKind selects how an uploaded photo is finalized
type PhotoKind int

const (
	// PhotoPost is a standalone timeline post
	PhotoPost PhotoKind = iota
	// PhotoStory is a standalone story
	PhotoStory
	// PhotoSidecar is one member of an album; configure happens at the
	// album level
	PhotoSidecar
	// PhotoVideoThumbnail is the poster frame of a video upload
	PhotoVideoThumbnail
)

// Photo describes one photo upload. IsSidecar marks a video thumbnail that
// belongs to an album member; standalone album photos use PhotoSidecar.
type Photo struct {
	Data      []byte
	Kind      PhotoKind
	UploadID  string
	Caption   string
	Width     int
	Height    int
	IsSidecar bool
}

// PhotoResult carries the outcome of a photo upload. For sidecar members
// Metadata is the half-built child descriptor for the album configure; for
// the other kinds Response is the configure (or upload) response.
type PhotoResult struct {
	UploadID string
	Response map[string]interface{}
	Metadata map[string]interface{}
}

// UploadPhoto runs the multipart photo upload and its finalization
func (u *Uploader) UploadPhoto(ctx context.Context, photo Photo) (*PhotoResult, error) {
	if len(photo.Data) == 0 {
		return nil, errors.NewValidation("photo", "no image data")
	}
	if err := validateCaption(photo.Caption); err != nil {
		return nil, err
	}

	uploadID := photo.UploadID
	if uploadID == "" {
		uploadID = newUploadID()
	}

	body, contentType, err := u.photoForm(uploadID, photo)
	if err != nil {
		return nil, err
	}

	target := fmt.Sprintf("https://%s/api/v1/upload/photo/", u.client.Host())
	raw, _, err := u.client.Upload(ctx, target, body, map[string]string{
		"Content-Type": contentType,
	})
	if err != nil {
		return nil, err
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &errors.Error{
			Kind:          errors.KindGeneric,
			Message:       fmt.Sprintf("failed to parse upload response: %v", err),
			ErrorResponse: string(raw),
		}
	}
	if id, ok := resp["upload_id"].(string); ok && id != "" {
		uploadID = id
	}

	u.logger.DebugWithFields("photo uploaded", map[string]interface{}{
		"upload_id": uploadID,
		"size":      len(photo.Data),
	})

	switch photo.Kind {
	case PhotoStory:
		configured, err := u.configurePhoto(ctx, "media/configure_to_story/", uploadID, photo)
		if err != nil {
			return nil, err
		}
		return &PhotoResult{UploadID: uploadID, Response: configured}, nil
	case PhotoPost:
		configured, err := u.configurePhoto(ctx, "media/configure/", uploadID, photo)
		if err != nil {
			return nil, err
		}
		return &PhotoResult{UploadID: uploadID, Response: configured}, nil
	case PhotoSidecar:
		return &PhotoResult{
			UploadID: uploadID,
			Metadata: map[string]interface{}{"upload_id": uploadID},
		}, nil
	default:
		// Video thumbnails are finalized by the video configure
		return &PhotoResult{UploadID: uploadID, Response: resp}, nil
	}
}

// photoForm builds the multipart body for upload/photo/
func (u *Uploader) photoForm(uploadID string, photo Photo) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	fields := [][2]string{
		{"upload_id", uploadID},
		{"_uuid", u.client.Session().Identity.UUID},
		{"_csrftoken", u.client.CSRFToken()},
		{"image_compression", imageCompression},
	}
	if photo.Kind == PhotoSidecar || photo.IsSidecar {
		fields = append(fields, [2]string{"is_sidecar", "1"})
	}
	if photo.Kind == PhotoVideoThumbnail {
		fields = append(fields, [2]string{"media_type", "2"})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field: %w", err)
		}
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="photo"; filename="pending_media_%s.jpg"`, uploadID))
	header.Set("Content-Type", "application/octet-stream")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(photo.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return buf, writer.FormDataContentType(), nil
}

// configurePhoto finalizes a standalone photo as a post or story
func (u *Uploader) configurePhoto(ctx context.Context, endpoint, uploadID string, photo Photo) (map[string]interface{}, error) {
	params := u.authParams().
		Set("media_folder", "Instagram").
		Set("source_type", "4").
		Set("caption", photo.Caption).
		Set("upload_id", uploadID).
		Set("device", u.deviceParams()).
		Set("edits", map[string]interface{}{
			"crop_original_size": []int{photo.Width, photo.Height},
			"crop_center":        []float64{0.0, 0.0},
			"crop_zoom":          1.0,
		}).
		Set("extra", map[string]interface{}{
			"source_width":  photo.Width,
			"source_height": photo.Height,
		})

	return u.client.Call(ctx, transport.Request{Endpoint: endpoint, Params: params})
}
