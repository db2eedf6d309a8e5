package upload

import (
	"context"
	"fmt"

	"igclient/pkg/errors"
	"igclient/pkg/transport"
)

// Album limits
const (
	minAlbumItems = 2
	maxAlbumItems = 10
)

// AlbumItemType discriminates album members
type AlbumItemType string

const (
	AlbumItemImage AlbumItemType = "image"
	AlbumItemVideo AlbumItemType = "video"
)

// AlbumItem is one member of a sidecar post. Image items need Data plus
// square dimensions; video items additionally need Duration and Thumbnail.
type AlbumItem struct {
	Type      AlbumItemType
	Data      []byte
	Thumbnail []byte
	Duration  float64
	Width     int
	Height    int
}

// Album is a 2-10 item carousel post
type Album struct {
	Items   []AlbumItem
	Caption string
}

// UploadAlbum uploads each album member as a sidecar child and finalizes
// the carousel with a single configure.
func (u *Uploader) UploadAlbum(ctx context.Context, album Album) (map[string]interface{}, error) {
	if err := validateAlbum(album); err != nil {
		return nil, err
	}

	childrenMetadata := make([]map[string]interface{}, 0, len(album.Items))
	for i, item := range album.Items {
		switch item.Type {
		case AlbumItemImage:
			result, err := u.UploadPhoto(ctx, Photo{
				Data:   item.Data,
				Kind:   PhotoSidecar,
				Width:  item.Width,
				Height: item.Height,
			})
			if err != nil {
				return nil, fmt.Errorf("album item %d: %w", i, err)
			}
			childrenMetadata = append(childrenMetadata, result.Metadata)
		case AlbumItemVideo:
			result, err := u.UploadVideo(ctx, Video{
				Data:      item.Data,
				Thumbnail: item.Thumbnail,
				Duration:  item.Duration,
				Width:     item.Width,
				Height:    item.Height,
				IsSidecar: true,
			})
			if err != nil {
				return nil, fmt.Errorf("album item %d: %w", i, err)
			}
			childrenMetadata = append(childrenMetadata, result.Metadata)
		}
	}

	params := u.authParams().
		Set("caption", album.Caption).
		Set("client_sidecar_id", newUploadID()).
		Set("children_metadata", childrenMetadata)

	return u.client.Call(ctx, transport.Request{
		Endpoint: "media/configure_sidecar/",
		Params:   params,
	})
}

func validateAlbum(album Album) error {
	if len(album.Items) < minAlbumItems || len(album.Items) > maxAlbumItems {
		return errors.NewValidation("album",
			fmt.Sprintf("needs %d-%d items, got %d", minAlbumItems, maxAlbumItems, len(album.Items)))
	}
	if err := validateCaption(album.Caption); err != nil {
		return err
	}
	for i, item := range album.Items {
		if item.Type != AlbumItemImage && item.Type != AlbumItemVideo {
			return errors.NewValidation("album", fmt.Sprintf("item %d has unknown type %q", i, item.Type))
		}
		if len(item.Data) == 0 {
			return errors.NewValidation("album", fmt.Sprintf("item %d has no data", i))
		}
		// Carousel members must be square
		if item.Width <= 0 || item.Height <= 0 || item.Width != item.Height {
			return errors.NewValidation("album",
				fmt.Sprintf("item %d must be square, got %dx%d", i, item.Width, item.Height))
		}
		if item.Type == AlbumItemVideo {
			if item.Duration < minDuration || item.Duration > maxDuration {
				return errors.NewValidation("album",
					fmt.Sprintf("item %d duration %.1fs outside %.1f-%.1fs", i, item.Duration, minDuration, maxDuration))
			}
			if len(item.Thumbnail) == 0 {
				return errors.NewValidation("album", fmt.Sprintf("item %d needs a thumbnail", i))
			}
			if len(item.Data) > maxVideoBytes {
				return errors.NewValidation("album", fmt.Sprintf("item %d exceeds the video size limit", i))
			}
		}
	}
	return nil
}
