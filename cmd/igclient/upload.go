package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"igclient/pkg/upload"
)

var (
	flagCaption  string
	flagStory    bool
	flagWidth    int
	flagHeight   int
	flagDuration float64
	flagThumb    string
)

// uploadCmd is the parent of the media upload commands
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload media using a stored session",
}

// uploadPhotoCmd posts one photo
var uploadPhotoCmd = &cobra.Command{
	Use:   "photo <file>",
	Short: "Upload a photo as a post or story",
	Args:  cobra.ExactArgs(1),
	RunE:  runUploadPhoto,
}

// uploadVideoCmd posts one video
var uploadVideoCmd = &cobra.Command{
	Use:   "video <file>",
	Short: "Upload a video as a post or story",
	Long: `Upload a video with the chunked streaming flow. The video is split into
range chunks, streamed to the vendor's upload endpoint and finalized with a
configure call after the thumbnail upload.`,
	Args: cobra.ExactArgs(1),
	RunE: runUploadVideo,
}

func init() {
	uploadCmd.PersistentFlags().StringVar(&flagCaption, "caption", "", "media caption")
	uploadCmd.PersistentFlags().BoolVar(&flagStory, "story", false, "post as a story instead of a feed post")
	uploadCmd.PersistentFlags().IntVar(&flagWidth, "width", 0, "media width in pixels")
	uploadCmd.PersistentFlags().IntVar(&flagHeight, "height", 0, "media height in pixels")
	uploadVideoCmd.Flags().Float64Var(&flagDuration, "duration", 0, "video duration in seconds")
	uploadVideoCmd.Flags().StringVar(&flagThumb, "thumbnail", "", "path to the thumbnail image")
	uploadCmd.AddCommand(uploadPhotoCmd)
	uploadCmd.AddCommand(uploadVideoCmd)
	rootCmd.AddCommand(uploadCmd)
}

func uploaderFromFlags() (*upload.Uploader, error) {
	cfg, log, err := buildConfig()
	if err != nil {
		return nil, err
	}
	username := strings.TrimSpace(flagUsername)
	if username == "" {
		return nil, fmt.Errorf("--username is required")
	}
	store, err := settingsStore(cfg)
	if err != nil {
		return nil, err
	}
	client, err := restoreClient(cfg, log, store, username)
	if err != nil {
		return nil, err
	}
	return upload.New(client, log), nil
}

func runUploadPhoto(cmd *cobra.Command, args []string) error {
	uploader, err := uploaderFromFlags()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read photo: %w", err)
	}

	kind := upload.PhotoPost
	if flagStory {
		kind = upload.PhotoStory
	}
	result, err := uploader.UploadPhoto(context.Background(), upload.Photo{
		Data:    data,
		Kind:    kind,
		Caption: flagCaption,
		Width:   flagWidth,
		Height:  flagHeight,
	})
	if err != nil {
		return err
	}

	fmt.Printf("uploaded photo (upload id %s)\n", result.UploadID)
	return nil
}

func runUploadVideo(cmd *cobra.Command, args []string) error {
	uploader, err := uploaderFromFlags()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read video: %w", err)
	}
	thumb, err := os.ReadFile(flagThumb)
	if err != nil {
		return fmt.Errorf("failed to read thumbnail: %w", err)
	}

	uploader.Progress = func(sent, total int64) {
		fmt.Fprintf(os.Stderr, "\ruploaded %d/%d bytes", sent, total)
		if sent == total {
			fmt.Fprintln(os.Stderr)
		}
	}

	result, err := uploader.UploadVideo(context.Background(), upload.Video{
		Data:      data,
		Thumbnail: thumb,
		Duration:  flagDuration,
		Width:     flagWidth,
		Height:    flagHeight,
		Caption:   flagCaption,
		IsStory:   flagStory,
	})
	if err != nil {
		return err
	}

	fmt.Printf("uploaded video (upload id %s)\n", result.UploadID)
	return nil
}
