package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"tabload/internal/ingest/decoder"
)

// FormatOptions control CSV/TXT parsing. They are ignored for grid kinds
// (Excel, HTML), which always take the first row as the header.
type FormatOptions struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune

	// HasHeader marks the first row as column names. When false, columns
	// get positional default names COLUMN_1..COLUMN_N.
	HasHeader bool

	// Quote is the field quoting rune. Zero and '"' both mean the RFC 4180
	// double quote; any other rune is mapped onto it before decoding.
	// Backslash before the quote rune escapes it inside quoted fields.
	Quote rune

	// TrimSpace skips whitespace between a delimiter and the start of the
	// next field. Trailing whitespace and whitespace inside quoted fields
	// are always preserved.
	TrimSpace bool
}

// DefaultFormatOptions mirrors the defaults a fresh upload gets: comma
// delimited, header row present, double-quoted fields, whitespace after
// delimiters skipped.
func DefaultFormatOptions() *FormatOptions {
	return &FormatOptions{
		Delimiter: ',',
		HasHeader: true,
		Quote:     '"',
		TrimSpace: true,
	}
}

// Parse turns raw file bytes into a Table.
//
// CSV and TXT share one code path driven by opts. Excel and HTML dispatch to
// the decoder registry; a recognized kind whose decoder is not linked in
// fails with DecoderUnavailableError naming the missing capability.
//
// Errors:
//   - *DecodeError for malformed content or undecodable text encodings.
//   - *DecoderUnavailableError for a missing optional decoder.
//   - *UnsupportedKindError for a kind this pipeline does not handle.
//
// A successful parse with zero data rows is NOT an error here; emptiness is
// reported by CoerceForLoad so the caller can still preview the header.
func Parse(data []byte, filename string, kind Kind, opts *FormatOptions) (*Table, error) {
	switch kind {
	case KindCSV, KindTXT:
		return parseCSV(data, filename, opts)
	case KindExcel:
		return parseGrid(data, filename, excelCapability(filename))
	case KindHTML:
		return parseGrid(data, filename, "html")
	default:
		return nil, &UnsupportedKindError{File: filename, Kind: kind}
	}
}

// excelCapability picks the decoder needed for an Excel file: the two
// sub-formats require distinct readers, as in the original environment where
// .xlsx and .xls support came from separate packages.
func excelCapability(filename string) string {
	if strings.EqualFold(filepath.Ext(filename), ".xls") {
		return "xls"
	}
	return "xlsx"
}

func parseCSV(data []byte, filename string, opts *FormatOptions) (*Table, error) {
	if opts == nil {
		opts = DefaultFormatOptions()
	}
	delim := opts.Delimiter
	if delim == 0 {
		delim = ','
	}
	quote := opts.Quote
	if quote == 0 {
		quote = '"'
	}

	text, err := decodeCharset(data)
	if err != nil {
		return nil, &DecodeError{File: filename, Err: err}
	}
	text, lazy := normalizeQuoting(text, quote)

	cr := csv.NewReader(bytes.NewReader(text))
	cr.Comma = delim
	cr.LazyQuotes = lazy
	// Leading-space skipping must stay off for tab-delimited input: the
	// reader treats a leading tab as skippable whitespace, which would
	// swallow empty fields.
	cr.TrimLeadingSpace = opts.TrimSpace && delim != '\t'
	// FieldsPerRecord left at 0: every record must match the first row's
	// width, so ragged input fails loudly instead of dropping cells.

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &DecodeError{File: filename, Err: err}
	}
	if len(records) == 0 {
		return nil, &DecodeError{File: filename, Err: fmt.Errorf("no columns to parse")}
	}

	var columns []string
	var rows [][]string
	if opts.HasHeader {
		columns = records[0]
		rows = records[1:]
	} else {
		columns = positionalColumns(len(records[0]))
		rows = records
	}

	return &Table{
		File:            filename,
		OriginalColumns: columns,
		Rows:            rows,
		Bytes:           len(data),
	}, nil
}

func parseGrid(data []byte, filename, capability string) (*Table, error) {
	dec, ok := decoder.Lookup(capability)
	if !ok {
		return nil, &DecoderUnavailableError{File: filename, Capability: capability}
	}

	grid, err := dec.Decode(data)
	if err != nil {
		return nil, &DecodeError{File: filename, Err: err}
	}
	if len(grid) == 0 {
		return nil, &DecodeError{File: filename, Err: fmt.Errorf("no columns to parse")}
	}

	// Decoders may return ragged rows (trailing empty cells trimmed); pad
	// everything to the widest row so each row aligns with the header.
	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range grid {
		for len(row) < width {
			row = append(row, "")
		}
		grid[i] = row
	}

	return &Table{
		File:            filename,
		OriginalColumns: grid[0],
		Rows:            grid[1:],
		Bytes:           len(data),
	}, nil
}

func positionalColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("COLUMN_%d", i+1)
	}
	return cols
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decodeCharset normalizes input text to UTF-8. UTF-16 input is detected by
// BOM and transformed; a UTF-8 BOM is stripped. Anything left that is not
// valid UTF-8 is an encoding error, surfaced to the caller rather than
// smuggled into the warehouse as mojibake.
func decodeCharset(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return nil, fmt.Errorf("decode utf-16: %w", err)
		}
		return out, nil
	}

	data = bytes.TrimPrefix(data, bomUTF8)
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("input is not valid UTF-8")
	}
	return data, nil
}

// normalizeQuoting rewrites backslash-escaped quotes into RFC 4180 doubled
// quotes and maps a non-default quote rune onto the double quote that
// encoding/csv understands. Returns the rewritten bytes and whether the
// reader should run with LazyQuotes (needed once quote runes were swapped,
// so pre-existing literal double quotes stay literal).
func normalizeQuoting(data []byte, quote rune) ([]byte, bool) {
	if quote == '"' && !bytes.Contains(data, []byte(`\"`)) {
		return data, false
	}

	var out bytes.Buffer
	out.Grow(len(data) + len(data)/16)

	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == '\\' {
			next, nsize := utf8.DecodeRune(data[i+size:])
			if next == quote {
				out.WriteString(`""`)
				i += size + nsize
				continue
			}
		}
		if r == quote && quote != '"' {
			out.WriteByte('"')
			i += size
			continue
		}
		out.WriteRune(r)
		i += size
	}

	return out.Bytes(), quote != '"'
}
