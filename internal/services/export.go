package services

import "github.com/runelight-sys/LyroDocs/internal/models"

const (
	ExportFileName    = "lyro_analysis.txt"
	ExportContentType = "text/plain; charset=utf-8"
)

// ExportAnalysis returns the download payload for a result: exactly the
// analysis text. ok is false when the analysis did not succeed.
func ExportAnalysis(result *models.AnalysisResult) (payload []byte, ok bool) {
	if !result.Exportable() {
		return nil, false
	}
	return []byte(result.Analysis), true
}
