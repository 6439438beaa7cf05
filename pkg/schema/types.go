package schema

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DataType is the declared type of a field.
type DataType string

const (
	DataTypeText      DataType = "text"
	DataTypeInteger   DataType = "integer"
	DataTypeDecimal   DataType = "decimal"
	DataTypeCurrency  DataType = "currency"
	DataTypeDate      DataType = "date"
	DataTypeBoolean   DataType = "boolean"
	DataTypeEmail     DataType = "email"
	DataTypePhone     DataType = "phone"
	DataTypeAddress   DataType = "address"
	DataTypeEnum      DataType = "enum"
	DataTypeSignature DataType = "signature"
)

// DataTypes lists every supported data type.
var DataTypes = []DataType{
	DataTypeText, DataTypeInteger, DataTypeDecimal, DataTypeCurrency, DataTypeDate,
	DataTypeBoolean, DataTypeEmail, DataTypePhone, DataTypeAddress, DataTypeEnum,
	DataTypeSignature,
}

// ParseDataType parses a catalog data type. "string" is accepted as an alias
// for text.
func ParseDataType(s string) (DataType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "string" {
		return DataTypeText, nil
	}
	for _, dt := range DataTypes {
		if string(dt) == v {
			return dt, nil
		}
	}
	return "", fmt.Errorf("unknown data type %q", s)
}

// IsNumeric reports whether values of this type are numbers.
func (d DataType) IsNumeric() bool {
	return d == DataTypeInteger || d == DataTypeDecimal || d == DataTypeCurrency
}

// IsTextual reports whether length and regex constraints apply.
func (d DataType) IsTextual() bool {
	switch d {
	case DataTypeText, DataTypeEmail, DataTypePhone, DataTypeAddress:
		return true
	}
	return false
}

// Category groups document types in the back office.
type Category string

const (
	CategoryCommercial     Category = "commercial"
	CategoryLegal          Category = "legal"
	CategoryAdministrative Category = "administrative"
	CategoryTechnical      Category = "technical"
	CategoryPhotos         Category = "photos"
)

// FieldSchema describes one typed field of a document type.
//
// Constraints only apply to the data types they make sense for. A MaxLength on
// a currency field is ignored rather than rejected.
type FieldSchema struct {
	InternalName        string
	DisplayName         string
	DataType            DataType
	Required            bool
	ConfidenceThreshold float64

	MaxLength       *int
	ValidationRegex string
	MinValue        *float64
	MaxValue        *float64
	EnumValues      []string

	// CrossReferenceFields lists related field paths. Informational only.
	CrossReferenceFields []string
	FieldGroup           string
	ExtractionHints      []string

	regex *regexp.Regexp
}

// DocumentType is a named category of document with an ordered field list.
type DocumentType struct {
	Code        string
	Name        string
	Category    Category
	Description string
	IsSystem    bool
	IsActive    bool
	Fields      []*FieldSchema

	byName map[string]*FieldSchema
}

// Field returns the field with the given internal name.
func (d *DocumentType) Field(name string) (*FieldSchema, bool) {
	if d.byName != nil {
		f, ok := d.byName[name]
		return f, ok
	}
	for _, f := range d.Fields {
		if f.InternalName == name {
			return f, true
		}
	}
	return nil, false
}

// PathCode returns the lower-cased code used in field paths.
func (d *DocumentType) PathCode() string {
	return NormalizeCode(d.Code)
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2006-01-02T15:04:05Z07:00", "02-01-2006"}

// Coerce converts a raw extracted string into the field's typed value.
// When the raw value cannot be converted the trimmed string is returned.
func (f *FieldSchema) Coerce(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}

	switch f.DataType {
	case DataTypeInteger:
		if n, err := strconv.ParseInt(stripNumber(s), 10, 64); err == nil {
			return n
		}
	case DataTypeDecimal, DataTypeCurrency:
		if n, err := ParseNumber(s); err == nil {
			return n
		}
	case DataTypeBoolean:
		if b, ok := parseBool(s); ok {
			return b
		}
	case DataTypeDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	return s
}

// CheckConstraints returns the constraint violations of v. Constraints that
// do not match the field's data type are skipped.
func (f *FieldSchema) CheckConstraints(v any) []string {
	var violations []string

	switch {
	case f.DataType.IsTextual():
		s, ok := v.(string)
		if !ok {
			break
		}
		if f.MaxLength != nil && len([]rune(s)) > *f.MaxLength {
			violations = append(violations, fmt.Sprintf("length %d exceeds max_length %d", len([]rune(s)), *f.MaxLength))
		}
		if re := f.compiledRegex(); re != nil && s != "" && !re.MatchString(s) {
			violations = append(violations, fmt.Sprintf("value does not match %s", f.ValidationRegex))
		}

	case f.DataType.IsNumeric():
		var n float64
		switch x := v.(type) {
		case int64:
			n = float64(x)
		case float64:
			n = x
		default:
			return []string{fmt.Sprintf("value %v is not a number", v)}
		}
		if f.MinValue != nil && n < *f.MinValue {
			violations = append(violations, fmt.Sprintf("value %v below min_value %v", n, *f.MinValue))
		}
		if f.MaxValue != nil && n > *f.MaxValue {
			violations = append(violations, fmt.Sprintf("value %v above max_value %v", n, *f.MaxValue))
		}

	case f.DataType == DataTypeEnum:
		s, ok := v.(string)
		if !ok || len(f.EnumValues) == 0 || s == "" {
			break
		}
		found := false
		for _, e := range f.EnumValues {
			if e == s {
				found = true
				break
			}
		}
		if !found {
			violations = append(violations, fmt.Sprintf("value %q not in enum %v", s, f.EnumValues))
		}
	}

	return violations
}

func (f *FieldSchema) compiledRegex() *regexp.Regexp {
	if f.regex != nil || f.ValidationRegex == "" {
		return f.regex
	}
	re, err := regexp.Compile(f.ValidationRegex)
	if err != nil {
		return nil
	}
	return re
}

// ParseNumber parses a number written with either '.' or ',' as decimal
// separator and optional spaces or currency signs. Only finite decimal
// notation is accepted: "inf", "NaN" and hexadecimal floats are not numbers.
func ParseNumber(s string) (float64, error) {
	stripped := stripNumber(s)
	if stripped == "" || strings.IndexFunc(stripped, notDecimalRune) >= 0 {
		return 0, fmt.Errorf("%q is not a decimal number", s)
	}
	n, err := strconv.ParseFloat(stripped, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return n, nil
}

func notDecimalRune(r rune) bool {
	return (r < '0' || r > '9') && r != '-' && r != '+' && r != '.' && r != 'e' && r != 'E'
}

func stripNumber(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '-', r == '+', r == '.', r == 'e', r == 'E':
			sb.WriteRune(r)
		case r == ',':
			sb.WriteRune('.')
		case r == ' ', r == '\u00a0', r == '\u202f', r == '€':
		default:
			// Unexpected rune; keep it so parsing fails.
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "oui", "yes", "1", "vrai":
		return true, true
	case "false", "non", "no", "0", "faux":
		return false, true
	}
	return false, false
}
