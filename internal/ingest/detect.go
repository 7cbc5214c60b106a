package ingest

import (
	"path/filepath"
	"strings"

	"tabload/internal/ingest/decoder"
)

// Kind is the detected file format category.
type Kind string

const (
	KindCSV   Kind = "csv"
	KindTXT   Kind = "txt"
	KindExcel Kind = "excel"
	KindHTML  Kind = "html"
)

// Description returns a short human-readable label for the kind, used by
// drivers when listing a file in status output.
func (k Kind) Description() string {
	switch k {
	case KindCSV:
		return "Comma Separated Values"
	case KindTXT:
		return "Text File (assumed CSV format)"
	case KindExcel:
		return "Excel File"
	case KindHTML:
		return "HTML Table"
	default:
		return string(k)
	}
}

// capabilityByExt maps a lowercased extension to the optional decoder that
// must be registered before the extension is recognized. Extensions absent
// from this map need no decoder.
var capabilityByExt = map[string]string{
	".xlsx": "xlsx",
	".xls":  "xls",
	".html": "html",
	".htm":  "html",
}

// DetectKind maps a filename to its kind by the lowercased suffix after the
// final dot. No content sniffing. Extensions backed by an optional decoder
// are recognized only while that decoder is registered, mirroring how the
// upload tool only offers Excel when its reader packages are installed.
//
// Returns ok=false for unrecognized extensions.
func DetectKind(filename string) (Kind, bool) {
	ext := strings.ToLower(filepath.Ext(filename))

	if capability, gated := capabilityByExt[ext]; gated && !decoder.Available(capability) {
		return "", false
	}

	switch ext {
	case ".csv":
		return KindCSV, true
	case ".txt":
		return KindTXT, true
	case ".xlsx", ".xls":
		return KindExcel, true
	case ".html", ".htm":
		return KindHTML, true
	default:
		return "", false
	}
}

// SupportedExtensions lists the currently recognized extensions (without the
// leading dot), for drivers that restrict selectable files.
func SupportedExtensions() []string {
	out := []string{"csv", "txt"}
	for _, ext := range []string{".xlsx", ".xls", ".html", ".htm"} {
		if decoder.Available(capabilityByExt[ext]) {
			out = append(out, strings.TrimPrefix(ext, "."))
		}
	}
	return out
}

// ExcelSupportNotice returns a non-empty message when one or both Excel
// decoders are missing, phrased for display by a driver. Empty when full
// Excel support is linked in.
func ExcelSupportNotice() string {
	xlsx := decoder.Available("xlsx")
	xls := decoder.Available("xls")
	switch {
	case !xlsx && !xls:
		return "Excel files not supported in this build. Link the xlsx and xls decoders or convert to CSV."
	case !xlsx:
		return ".xlsx files not supported in this build. Link the xlsx decoder or convert to CSV."
	case !xls:
		return ".xls files not supported in this build. Link the xls decoder or convert to CSV."
	default:
		return ""
	}
}
