package ocr

import "strings"

// tesseractLanguages maps ISO 639-1 codes to Tesseract traineddata names.
var tesseractLanguages = map[string]string{
	"en": "eng",
	"de": "deu",
	"fr": "fra",
	"es": "spa",
	"it": "ita",
	"pt": "por",
	"nl": "nld",
}

// TesseractLanguage returns the traineddata name for lang. Unknown codes are
// passed through so callers can name traineddata directly.
func TesseractLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "eng"
	}
	if mapped, ok := tesseractLanguages[lang]; ok {
		return mapped
	}
	return lang
}
