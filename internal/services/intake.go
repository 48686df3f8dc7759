package services

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"golang.org/x/image/draw"

	"github.com/runelight-sys/LyroDocs/internal/models"
)

const (
	// MaxImageWidth is the widest image handed to recognition. Wider images
	// are scaled down uniformly.
	MaxImageWidth = 1000

	// maxDecodedPixels bounds decode memory for hostile uploads.
	maxDecodedPixels = 60_000_000
)

var (
	// ErrUnsupportedFormat is returned for uploads that are not JPEG or PNG.
	ErrUnsupportedFormat = errors.New("unsupported image format: only JPEG and PNG are accepted")

	// ErrImageTooLarge is returned when an upload exceeds the size limits.
	ErrImageTooLarge = errors.New("image too large")
)

// DecodeUpload validates and decodes an uploaded image and normalizes its
// width. The format is taken from the content, not the file name.
func DecodeUpload(name string, data []byte) (*models.UploadedImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrUnsupportedFormat)
	}

	cfg, kind, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	var format models.ImageFormat
	switch kind {
	case "jpeg":
		format = models.FormatJPEG
	case "png":
		format = models.FormatPNG
	default:
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedFormat, kind)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxDecodedPixels {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	var img image.Image
	switch format {
	case models.FormatJPEG:
		img, err = jpeg.Decode(bytes.NewReader(data))
	case models.FormatPNG:
		img, err = png.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	bounds := img.Bounds()
	return &models.UploadedImage{
		Name:           name,
		Format:         format,
		Raw:            data,
		Image:          Normalize(img),
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
	}, nil
}

// Normalize scales img down to MaxImageWidth, preserving the aspect ratio.
// Images that are already narrow enough are returned as is.
func Normalize(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= MaxImageWidth {
		return img
	}

	scale := float64(MaxImageWidth) / float64(width)
	targetH := int(math.Round(float64(height) * scale))
	if targetH < 1 {
		targetH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, MaxImageWidth, targetH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// PreviewDataURI encodes the normalized image as a data URI for display.
func PreviewDataURI(upload *models.UploadedImage) (string, error) {
	var buf bytes.Buffer
	format := upload.Format
	switch format {
	case models.FormatJPEG:
		if err := jpeg.Encode(&buf, upload.Image, &jpeg.Options{Quality: 85}); err != nil {
			return "", fmt.Errorf("encode preview: %w", err)
		}
	default:
		format = models.FormatPNG
		if err := png.Encode(&buf, upload.Image); err != nil {
			return "", fmt.Errorf("encode preview: %w", err)
		}
	}
	return "data:" + format.ContentType() + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
