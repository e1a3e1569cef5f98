package flatfile

import (
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/chflat/internal/core"
)

type format int

const (
	formatDelimited format = iota
	formatXLSX
)

// detect picks the reader for ref from its extension. Delimited text other
// than .tsv needs an explicit delimiter; spreadsheets describe themselves.
func detect(op string, ref core.FileRef) (format, rune, error) {
	ext := strings.ToLower(filepath.Ext(ref.Name))
	switch ext {
	case ".csv", ".txt":
		if ref.Delimiter == 0 {
			return 0, 0, core.Invalid(op, "delimiter required for %s files", ext)
		}
		return formatDelimited, ref.Delimiter, nil
	case ".tsv":
		if ref.Delimiter == 0 {
			return formatDelimited, '\t', nil
		}
		return formatDelimited, ref.Delimiter, nil
	case ".xlsx":
		return formatXLSX, 0, nil
	default:
		return 0, 0, core.Invalid(op, "unsupported file type %q", ext)
	}
}

// outputDelimiter is the delimiter used when writing ref.
func outputDelimiter(op string, ref core.FileRef) (rune, error) {
	ext := strings.ToLower(filepath.Ext(ref.Name))
	switch ext {
	case ".csv", ".txt", "":
	case ".tsv":
		if ref.Delimiter == 0 {
			return '\t', nil
		}
	default:
		return 0, core.Invalid(op, "unsupported file type %q for output", ext)
	}
	if ref.Delimiter == 0 {
		return core.DefaultDelimiter, nil
	}
	return ref.Delimiter, nil
}
