package models

import (
	"image"
)

type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
)

// ContentType returns the MIME type for the format.
func (f ImageFormat) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// UploadedImage is a decoded upload. Image holds the normalized pixel grid;
// OriginalWidth/OriginalHeight describe the image as uploaded.
type UploadedImage struct {
	Name           string
	Format         ImageFormat
	Raw            []byte
	Image          image.Image
	OriginalWidth  int
	OriginalHeight int
}

func (u *UploadedImage) Width() int {
	if u == nil || u.Image == nil {
		return 0
	}
	return u.Image.Bounds().Dx()
}

func (u *UploadedImage) Height() int {
	if u == nil || u.Image == nil {
		return 0
	}
	return u.Image.Bounds().Dy()
}

// Stage names the last step an analysis reached.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageImageLoaded       Stage = "image_loaded"
	StageEngineUnavailable Stage = "engine_unavailable"
	StageRecognizing       Stage = "recognizing"
	StageComposing         Stage = "composing"
	StageCompleting        Stage = "completing"
	StageDisplayed         Stage = "displayed"
)

// AnalysisResult carries everything the presentation layer shows for one
// analysis. Err keeps the underlying cause; ErrorMessage is what users see.
type AnalysisResult struct {
	Stage          Stage  `json:"stage"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	OriginalWidth  int    `json:"originalWidth"`
	OriginalHeight int    `json:"originalHeight"`
	RecognizedText string `json:"recognizedText"`
	Analysis       string `json:"analysis,omitempty"`
	ErrorMessage   string `json:"error,omitempty"`
	ErrorKind      string `json:"errorKind,omitempty"`
	Err            error  `json:"-"`
}

// Exportable reports whether the analysis text may be offered for download.
func (r *AnalysisResult) Exportable() bool {
	return r != nil && r.Stage == StageDisplayed && r.Err == nil && r.ErrorMessage == ""
}
