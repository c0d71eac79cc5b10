package bulkfile

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	bulkopsapp "github.com/commercesync/backend/internal/application/bulkops"
	"github.com/commercesync/backend/internal/domain/sync"
)

// FieldType is the expected value type of a mapped field
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInt     FieldType = "int"
	TypeDecimal FieldType = "decimal"
	TypeEmail   FieldType = "email"
	TypeBool    FieldType = "bool"
)

// FieldSpec maps CSV columns onto one entity field and carries its
// validation rules
type FieldSpec struct {
	// Field is the store field name the column maps to
	Field string
	// Aliases are additional accepted column headers besides Field
	Aliases []string
	Type    FieldType
	// Required fields must be present as columns and non-empty in every row
	Required  bool
	MaxLength int
	// Min and Max bound numeric fields when set
	Min *decimal.Decimal
	Max *decimal.Decimal
	// Unique fields may not repeat within one file
	Unique bool
}

// Schema is the field-mapping table for one entity kind
type Schema struct {
	Kind   sync.EntityKind
	Fields []FieldSpec
}

var zero = decimal.Zero

// kindSchemas holds the supported bulk file layouts. Orders are deliberately
// absent, they enter the system through sync only.
var kindSchemas = map[sync.EntityKind]*Schema{
	sync.EntityKindProduct: {
		Kind: sync.EntityKindProduct,
		Fields: []FieldSpec{
			{Field: "sku", Aliases: []string{"product_sku", "item_sku"}, Type: TypeString, Required: true, MaxLength: 64, Unique: true},
			{Field: "name", Aliases: []string{"title", "product_name"}, Type: TypeString, Required: true, MaxLength: 255},
			{Field: "description", Type: TypeString},
			{Field: "price", Aliases: []string{"unit_price"}, Type: TypeDecimal, Min: &zero},
			{Field: "currency", Type: TypeString, MaxLength: 3},
			{Field: "active", Aliases: []string{"enabled"}, Type: TypeBool},
		},
	},
	sync.EntityKindInventory: {
		Kind: sync.EntityKindInventory,
		Fields: []FieldSpec{
			{Field: "sku", Aliases: []string{"product_sku"}, Type: TypeString, Required: true, MaxLength: 64},
			{Field: "warehouse_code", Aliases: []string{"warehouse", "location"}, Type: TypeString, Required: true, MaxLength: 32},
			{Field: "quantity_on_hand", Aliases: []string{"on_hand", "quantity"}, Type: TypeInt, Required: true, Min: &zero},
			{Field: "quantity_reserved", Aliases: []string{"reserved"}, Type: TypeInt, Min: &zero},
			{Field: "reorder_point", Type: TypeInt, Min: &zero},
		},
	},
	sync.EntityKindCustomer: {
		Kind: sync.EntityKindCustomer,
		Fields: []FieldSpec{
			{Field: "email", Type: TypeEmail, Required: true, MaxLength: 255, Unique: true},
			{Field: "first_name", Aliases: []string{"firstname"}, Type: TypeString, MaxLength: 100},
			{Field: "last_name", Aliases: []string{"lastname"}, Type: TypeString, MaxLength: 100},
			{Field: "phone", Type: TypeString, MaxLength: 32},
		},
	},
	sync.EntityKindPrice: {
		Kind: sync.EntityKindPrice,
		Fields: []FieldSpec{
			{Field: "sku", Aliases: []string{"product_sku"}, Type: TypeString, Required: true, MaxLength: 64, Unique: true},
			{Field: "price", Aliases: []string{"unit_price"}, Type: TypeDecimal, Required: true, Min: &zero},
			{Field: "currency", Type: TypeString, MaxLength: 3},
		},
	},
}

// SchemaFor returns the field-mapping table for a kind
func SchemaFor(kind sync.EntityKind) (*Schema, error) {
	schema, ok := kindSchemas[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEntityKind, kind)
	}
	return schema, nil
}

// columnField resolves a normalized CSV header to a field name, or "" when
// the column is not part of the schema
func (s *Schema) columnField(header string) string {
	normalized := normalizeHeader(header)
	for _, f := range s.Fields {
		if normalized == f.Field {
			return f.Field
		}
		for _, alias := range f.Aliases {
			if normalized == alias {
				return f.Field
			}
		}
	}
	return ""
}

// requiredFields lists the fields every file must provide as columns
func (s *Schema) requiredFields() []string {
	var required []string
	for _, f := range s.Fields {
		if f.Required {
			required = append(required, f.Field)
		}
	}
	return required
}

func normalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

// ---------------------------------------------------------------------------
// Converter
// ---------------------------------------------------------------------------

// SchemaConverter validates rows against the kind's schema and converts
// string values to typed store fields. It tracks in-file uniqueness, so one
// instance covers exactly one file.
type SchemaConverter struct {
	seen map[string]map[string]int
}

// NewSchemaConverter creates a converter for one bulk file
func NewSchemaConverter() *SchemaConverter {
	return &SchemaConverter{seen: make(map[string]map[string]int)}
}

// Convert implements the bulk engine's RowConverter
func (c *SchemaConverter) Convert(kind sync.EntityKind, row bulkopsapp.Row) (map[string]any, error) {
	schema, err := SchemaFor(kind)
	if err != nil {
		return nil, err
	}

	line := row.Index + 2 // header occupies line 1
	var rowErrs RowErrors
	fields := make(map[string]any, len(row.Values))

	for _, spec := range schema.Fields {
		value, present := row.Values[spec.Field]
		if spec.Required && (!present || value == "") {
			rowErrs = append(rowErrs, RowError{
				Line:    line,
				Field:   spec.Field,
				Code:    ErrCodeRequiredField,
				Message: fmt.Sprintf("field '%s' is required", spec.Field),
			})
			continue
		}
		if !present || value == "" {
			continue
		}

		if spec.MaxLength > 0 && len(value) > spec.MaxLength {
			rowErrs = append(rowErrs, RowError{
				Line:    line,
				Field:   spec.Field,
				Code:    ErrCodeInvalidLength,
				Message: fmt.Sprintf("length must be at most %d", spec.MaxLength),
				Value:   value,
			})
			continue
		}

		typed, convErr := convertValue(value, spec.Type)
		if convErr != nil {
			rowErrs = append(rowErrs, RowError{
				Line:    line,
				Field:   spec.Field,
				Code:    ErrCodeInvalidType,
				Message: fmt.Sprintf("expected %s", spec.Type),
				Value:   value,
			})
			continue
		}

		if err := checkRange(value, spec); err != nil {
			rowErrs = append(rowErrs, RowError{
				Line:    line,
				Field:   spec.Field,
				Code:    ErrCodeInvalidRange,
				Message: err.Error(),
				Value:   value,
			})
			continue
		}

		if spec.Unique {
			if c.seen[spec.Field] == nil {
				c.seen[spec.Field] = make(map[string]int)
			}
			if firstLine, dup := c.seen[spec.Field][value]; dup {
				rowErrs = append(rowErrs, RowError{
					Line:    line,
					Field:   spec.Field,
					Code:    ErrCodeDuplicateInFile,
					Message: fmt.Sprintf("duplicate value '%s' (first seen on line %d)", value, firstLine),
					Value:   value,
				})
				continue
			}
			c.seen[spec.Field][value] = line
		}

		fields[spec.Field] = typed
	}

	if len(rowErrs) > 0 {
		return nil, rowErrs
	}
	return fields, nil
}

// convertValue turns the raw string into its typed representation
func convertValue(value string, fieldType FieldType) (any, error) {
	switch fieldType {
	case TypeString:
		return value, nil
	case TypeInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, err
		}
		return n, nil
	case TypeDecimal:
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, err
		}
		// Store the canonical string so JSON round trips keep precision
		return d.String(), nil
	case TypeEmail:
		if _, err := mail.ParseAddress(value); err != nil {
			return nil, err
		}
		return value, nil
	case TypeBool:
		switch strings.ToLower(value) {
		case "true", "1", "yes", "y":
			return true, nil
		case "false", "0", "no", "n":
			return false, nil
		}
		return nil, fmt.Errorf("invalid boolean value: %s", value)
	}
	return value, nil
}

// checkRange enforces Min/Max on numeric specs
func checkRange(value string, spec FieldSpec) error {
	if spec.Min == nil && spec.Max == nil {
		return nil
	}
	if spec.Type != TypeInt && spec.Type != TypeDecimal {
		return nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return err
	}
	if spec.Min != nil && d.LessThan(*spec.Min) {
		return fmt.Errorf("value must be at least %s", spec.Min.String())
	}
	if spec.Max != nil && d.GreaterThan(*spec.Max) {
		return fmt.Errorf("value must be at most %s", spec.Max.String())
	}
	return nil
}

// Ensure SchemaConverter implements RowConverter
var _ bulkopsapp.RowConverter = (*SchemaConverter)(nil)
