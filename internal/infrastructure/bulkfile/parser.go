// Package bulkfile parses, validates, and reports on bulk operation files.
package bulkfile

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	bulkopsapp "github.com/commercesync/backend/internal/application/bulkops"
	"github.com/commercesync/backend/internal/domain/sync"
)

// CSVParser turns uploaded CSV files into engine rows keyed by mapped
// field names
type CSVParser struct {
	delimiter rune
}

// ParserOption configures a CSVParser
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// NewCSVParser creates a parser with the given options
func NewCSVParser(opts ...ParserOption) *CSVParser {
	p := &CSVParser{delimiter: ','}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse implements the bulk engine's RowParser. Headers are matched against
// the kind's field-mapping table, unknown columns are ignored, and rows come
// back keyed by entity field name.
func (p *CSVParser) Parse(r io.Reader, kind sync.EntityKind) ([]bulkopsapp.Row, error) {
	schema, err := SchemaFor(kind)
	if err != nil {
		return nil, err
	}

	buffered := bufio.NewReader(r)
	if err := stripBOM(buffered); err != nil {
		return nil, err
	}
	if err := validateUTF8(buffered); err != nil {
		return nil, err
	}

	reader := csv.NewReader(buffered)
	reader.Comma = p.delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("bulkfile: read header: %w", err)
	}

	// columnFields[i] holds the mapped field for column i, "" when ignored
	columnFields := make([]string, len(header))
	mapped := make(map[string]bool)
	for i, h := range header {
		field := schema.columnField(h)
		columnFields[i] = field
		if field != "" {
			mapped[field] = true
		}
	}

	var missing []string
	for _, field := range schema.requiredFields() {
		if !mapped[field] {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("bulkfile: missing required columns: %s", strings.Join(missing, ", "))
	}

	var rows []bulkopsapp.Row
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("bulkfile: malformed row on line %d: %w", line, err)
		}

		values := make(map[string]string, len(mapped))
		empty := true
		for i, field := range columnFields {
			if field == "" || i >= len(record) {
				continue
			}
			value := strings.TrimSpace(record[i])
			values[field] = value
			if value != "" {
				empty = false
			}
		}
		if empty {
			continue
		}

		rows = append(rows, bulkopsapp.Row{Index: len(rows), Values: values})
	}
	return rows, nil
}

// stripBOM discards a leading UTF-8 byte order mark
func stripBOM(r *bufio.Reader) error {
	head, err := r.Peek(3)
	if err != nil && err != io.EOF {
		return fmt.Errorf("bulkfile: read file: %w", err)
	}
	if len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return nil
}

// validateUTF8 rejects files that are not valid UTF-8. Only a prefix is
// checked, which catches the common case of latin-1 or UTF-16 exports.
func validateUTF8(r *bufio.Reader) error {
	const checkSize = 4096
	head, err := r.Peek(checkSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("bulkfile: read file: %w", err)
	}
	if len(head) == 0 {
		return ErrEmptyFile
	}
	// A multi-byte rune may be split at the peek boundary
	checked := head
	if len(head) == checkSize {
		for i := 0; i < utf8.UTFMax && len(checked) > 0; i++ {
			if r, _ := utf8.DecodeLastRune(checked); r != utf8.RuneError {
				break
			}
			checked = checked[:len(checked)-1]
		}
	}
	if !utf8.Valid(checked) {
		return ErrInvalidEncoding
	}
	return nil
}

// Ensure CSVParser implements RowParser
var _ bulkopsapp.RowParser = (*CSVParser)(nil)
