package parser

import (
	"gopkg.in/yaml.v3"
)

// yamlCatalog mirrors a catalog file before it is turned into model types.
type yamlCatalog struct {
	DocumentTypes []yamlDocumentType `yaml:"document_types"`
	Processes     []yamlProcess      `yaml:"processes"`
	Rules         []yamlRule         `yaml:"rules"`
}

type position struct {
	line, column int
	node         *yaml.Node
}

func (p *position) capture(n *yaml.Node) {
	p.line, p.column, p.node = n.Line, n.Column, n
}

type yamlDocumentType struct {
	Code        string      `yaml:"code"`
	Name        string      `yaml:"name"`
	Category    string      `yaml:"category"`
	Description string      `yaml:"description"`
	System      bool        `yaml:"system"`
	Active      *bool       `yaml:"active"`
	Fields      []yamlField `yaml:"fields"`

	pos position
}

func (d *yamlDocumentType) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlDocumentType
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	d.pos.capture(n)
	return nil
}

type yamlField struct {
	InternalName         string   `yaml:"internal_name"`
	DisplayName          string   `yaml:"display_name"`
	DataType             string   `yaml:"data_type"`
	Required             bool     `yaml:"required"`
	ConfidenceThreshold  *float64 `yaml:"confidence_threshold"`
	MaxLength            *int     `yaml:"max_length"`
	ValidationRegex      string   `yaml:"validation_regex"`
	MinValue             *float64 `yaml:"min_value"`
	MaxValue             *float64 `yaml:"max_value"`
	EnumValues           []string `yaml:"enum_values"`
	CrossReferenceFields []string `yaml:"cross_reference_fields"`
	FieldGroup           string   `yaml:"field_group"`
	ExtractionHints      []string `yaml:"extraction_hints"`

	pos position
}

func (f *yamlField) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlField
	if err := n.Decode((*plain)(f)); err != nil {
		return err
	}
	f.pos.capture(n)
	return nil
}

type yamlProcess struct {
	ID                    string                    `yaml:"id"`
	Code                  string                    `yaml:"code"`
	Name                  string                    `yaml:"name"`
	Category              string                    `yaml:"category"`
	Active                *bool                     `yaml:"active"`
	AutoApprovalThreshold *float64                  `yaml:"auto_approval_threshold"`
	RequiredDocuments     []yamlDocumentRequirement `yaml:"required_documents"`

	pos position
}

func (p *yamlProcess) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlProcess
	if err := n.Decode((*plain)(p)); err != nil {
		return err
	}
	p.pos.capture(n)
	return nil
}

type yamlDocumentRequirement struct {
	DocumentType string `yaml:"document_type"`
	Required     bool   `yaml:"required"`
	MinCount     int    `yaml:"min_count"`
	MaxCount     int    `yaml:"max_count"`
}

type yamlRule struct {
	ID           string    `yaml:"id"`
	Code         string    `yaml:"code"`
	Name         string    `yaml:"name"`
	Description  string    `yaml:"description"`
	Type         string    `yaml:"type"`
	Severity     string    `yaml:"severity"`
	AutoReject   bool      `yaml:"auto_reject"`
	Active       *bool     `yaml:"active"`
	CanOverride  *bool     `yaml:"can_override"`
	AppliesTo    yamlScope `yaml:"applies_to"`
	Condition    yaml.Node `yaml:"condition"`
	Expression   string    `yaml:"expression"`
	ErrorMessage string    `yaml:"error_message"`

	pos position
}

func (r *yamlRule) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlRule
	if err := n.Decode((*plain)(r)); err != nil {
		return err
	}
	r.pos.capture(n)
	return nil
}

type yamlScope struct {
	DocumentTypes []string `yaml:"document_types"`
	ProcessTypes  []string `yaml:"process_types"`
}

type yamlAtom struct {
	Field     string `yaml:"field"`
	Operator  string `yaml:"operator"`
	ValueType string `yaml:"value_type"`
	Value     any    `yaml:"value"`

	pos position
}

func (a *yamlAtom) UnmarshalYAML(n *yaml.Node) error {
	type plain yamlAtom
	if err := n.Decode((*plain)(a)); err != nil {
		return err
	}
	a.pos.capture(n)
	return nil
}

// mappingKeys returns the keys of a mapping node with their nodes.
func mappingKeys(n *yaml.Node) []*yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]*yaml.Node, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i])
	}
	return keys
}
