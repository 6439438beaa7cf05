package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"ceeval-hq/verdict/pkg/rules"
	rerrors "ceeval-hq/verdict/pkg/rules/errors"
	"ceeval-hq/verdict/pkg/schema"
)

var (
	ruleKeys = []string{
		"id", "code", "name", "description", "type", "severity", "auto_reject", "active",
		"can_override", "applies_to", "condition", "expression", "error_message",
	}
	atomKeys = []string{"field", "operator", "value_type", "value"}
)

// builder converts decoded YAML into model types, collecting diagnostics.
type builder struct {
	source string
	errors *rerrors.List
}

func newBuilder(source string) *builder {
	return &builder{source: source, errors: rerrors.NewList()}
}

func (b *builder) loc(p position) rules.Location {
	return rules.Location{File: b.source, Line: p.line, Column: p.column}
}

func (b *builder) nodeLoc(n *yaml.Node) rules.Location {
	if n == nil {
		return rules.Location{File: b.source}
	}
	return rules.Location{File: b.source, Line: n.Line, Column: n.Column}
}

func (b *builder) build(doc *yamlCatalog) *Catalog {
	cat := &Catalog{Source: b.source}

	for i := range doc.DocumentTypes {
		if dt := b.buildDocumentType(&doc.DocumentTypes[i]); dt != nil {
			cat.DocumentTypes = append(cat.DocumentTypes, dt)
		}
	}
	for i := range doc.Processes {
		if p := b.buildProcess(&doc.Processes[i]); p != nil {
			cat.Processes = append(cat.Processes, p)
		}
	}
	for i := range doc.Rules {
		if r := b.buildRule(&doc.Rules[i]); r != nil {
			cat.Rules = append(cat.Rules, r)
		}
	}
	return cat
}

func (b *builder) buildDocumentType(yd *yamlDocumentType) *schema.DocumentType {
	if yd.Code == "" {
		b.errors.Add(rerrors.Structural, "document type is missing 'code'", b.loc(yd.pos))
		return nil
	}

	dt := &schema.DocumentType{
		Code:        yd.Code,
		Name:        yd.Name,
		Category:    schema.Category(strings.ToLower(yd.Category)),
		Description: yd.Description,
		IsSystem:    yd.System,
		IsActive:    yd.Active == nil || *yd.Active,
	}

	for i := range yd.Fields {
		yf := &yd.Fields[i]
		if yf.InternalName == "" {
			b.errors.Add(rerrors.Structural, fmt.Sprintf("field %d of %s is missing 'internal_name'", i, yd.Code), b.loc(yf.pos))
			continue
		}
		dataType := schema.DataTypeText
		if yf.DataType != "" {
			parsed, err := schema.ParseDataType(yf.DataType)
			if err != nil {
				b.errors.Add(rerrors.Structural, err.Error(), b.loc(yf.pos)).
					WithSuggestion(rerrors.SuggestName(yf.DataType, dataTypeNames()))
				continue
			}
			dataType = parsed
		}
		f := &schema.FieldSchema{
			InternalName:         yf.InternalName,
			DisplayName:          yf.DisplayName,
			DataType:             dataType,
			Required:             yf.Required,
			MaxLength:            yf.MaxLength,
			ValidationRegex:      yf.ValidationRegex,
			MinValue:             yf.MinValue,
			MaxValue:             yf.MaxValue,
			EnumValues:           yf.EnumValues,
			CrossReferenceFields: yf.CrossReferenceFields,
			FieldGroup:           yf.FieldGroup,
			ExtractionHints:      yf.ExtractionHints,
		}
		if yf.ConfidenceThreshold != nil {
			f.ConfidenceThreshold = *yf.ConfidenceThreshold
		}
		if f.DisplayName == "" {
			f.DisplayName = f.InternalName
		}
		dt.Fields = append(dt.Fields, f)
	}
	return dt
}

func (b *builder) buildProcess(yp *yamlProcess) *rules.Process {
	if yp.ID == "" {
		b.errors.Add(rerrors.Structural, "process is missing 'id'", b.loc(yp.pos))
		return nil
	}
	p := &rules.Process{
		ID:                    yp.ID,
		Code:                  yp.Code,
		Name:                  yp.Name,
		Category:              yp.Category,
		IsActive:              yp.Active == nil || *yp.Active,
		AutoApprovalThreshold: yp.AutoApprovalThreshold,
		Location:              b.loc(yp.pos),
	}
	for _, req := range yp.RequiredDocuments {
		p.RequiredDocuments = append(p.RequiredDocuments, rules.DocumentRequirement{
			DocumentType: schema.NormalizeCode(req.DocumentType),
			Required:     req.Required,
			MinCount:     req.MinCount,
			MaxCount:     req.MaxCount,
		})
	}
	if err := p.Validate(); err != nil {
		b.errors.Add(rerrors.Structural, err.Error(), b.loc(yp.pos))
		return nil
	}
	return p
}

func (b *builder) buildRule(yr *yamlRule) *rules.Rule {
	loc := b.loc(yr.pos)
	b.checkKeys(yr.pos.node, ruleKeys, "rule")

	if yr.Code == "" {
		b.errors.Add(rerrors.Structural, "rule is missing 'code'", loc)
		return nil
	}

	r := &rules.Rule{
		ID:           yr.ID,
		Code:         yr.Code,
		Name:         yr.Name,
		Description:  yr.Description,
		AutoReject:   yr.AutoReject,
		IsActive:     yr.Active == nil || *yr.Active,
		CanOverride:  yr.CanOverride == nil || *yr.CanOverride,
		ErrorMessage: yr.ErrorMessage,
		AppliesTo: rules.Scope{
			DocumentTypes: normalizeCodes(yr.AppliesTo.DocumentTypes),
			ProcessTypes:  yr.AppliesTo.ProcessTypes,
		},
		Location: loc,
	}

	ok := true
	r.Type = b.ruleType(yr, r.AppliesTo)
	if r.Type == "" {
		ok = false
	}
	r.Severity = rules.SeverityError
	if yr.Severity != "" {
		r.Severity = rules.Severity(strings.ToLower(yr.Severity))
		if !r.Severity.Valid() {
			b.errors.Add(rerrors.Structural, fmt.Sprintf("rule %s: unknown severity %q", yr.Code, yr.Severity), loc).
				WithSuggestion(rerrors.SuggestName(yr.Severity, []string{"error", "warning", "info"}))
			ok = false
		}
	}

	hasCondition := !yr.Condition.IsZero()
	hasExpression := strings.TrimSpace(yr.Expression) != ""
	switch {
	case hasCondition && hasExpression:
		b.errors.Add(rerrors.Structural, fmt.Sprintf("rule %s: 'condition' and 'expression' are mutually exclusive", yr.Code), loc)
		ok = false
	case hasExpression:
		r.Condition = rules.Expression(yr.Expression)
	case hasCondition:
		atoms, condOK := b.buildAtoms(yr.Code, &yr.Condition)
		if !condOK {
			ok = false
		}
		r.Condition = rules.Structured(atoms...)
	default:
		b.errors.Add(rerrors.Structural, fmt.Sprintf("rule %s has neither 'condition' nor 'expression'", yr.Code), loc)
		ok = false
	}

	if !ok {
		return nil
	}
	if err := r.Validate(); err != nil {
		b.errors.Add(rerrors.Structural, err.Error(), loc)
		return nil
	}
	return r
}

func (b *builder) ruleType(yr *yamlRule, scope rules.Scope) rules.RuleType {
	if yr.Type == "" {
		if len(scope.DocumentTypes) == 0 {
			return rules.TypeGlobal
		}
		return rules.TypeDocument
	}
	t := rules.RuleType(strings.ToLower(yr.Type))
	if !t.Valid() {
		b.errors.Add(rerrors.Structural, fmt.Sprintf("rule %s: unknown type %q", yr.Code, yr.Type), b.loc(yr.pos)).
			WithSuggestion(rerrors.SuggestName(yr.Type, []string{"document", "cross_document", "global"}))
		return ""
	}
	return t
}

// buildAtoms accepts either a list of atoms or a mapping {all: [atoms]}.
func (b *builder) buildAtoms(code string, n *yaml.Node) ([]rules.Atom, bool) {
	list := n
	if n.Kind == yaml.MappingNode {
		list = nil
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Value != "all" {
				b.errors.Add(rerrors.Structural, fmt.Sprintf("rule %s: unsupported condition key %q", code, key.Value), b.nodeLoc(key)).
					WithSuggestion("conditions are conjunctions; use 'all' or a plain list")
				return nil, false
			}
			list = n.Content[i+1]
		}
	}
	if list == nil || list.Kind != yaml.SequenceNode || len(list.Content) == 0 {
		b.errors.Add(rerrors.Structural, fmt.Sprintf("rule %s: condition must be a non-empty list of atoms", code), b.nodeLoc(n))
		return nil, false
	}

	atoms := make([]rules.Atom, 0, len(list.Content))
	ok := true
	for _, item := range list.Content {
		var ya yamlAtom
		if err := item.Decode(&ya); err != nil {
			b.errors.Add(rerrors.Structural, fmt.Sprintf("rule %s: invalid atom: %v", code, err), b.nodeLoc(item))
			ok = false
			continue
		}
		b.checkKeys(item, atomKeys, "condition atom")
		a, atomOK := b.buildAtom(code, &ya)
		if !atomOK {
			ok = false
			continue
		}
		atoms = append(atoms, a)
	}
	return atoms, ok
}

func (b *builder) buildAtom(code string, ya *yamlAtom) (rules.Atom, bool) {
	loc := b.loc(ya.pos)
	a := rules.Atom{
		Field:     strings.TrimSpace(ya.Field),
		Operator:  rules.Operator(strings.ToLower(strings.TrimSpace(ya.Operator))),
		ValueType: rules.ValueStatic,
		Value:     ya.Value,
		Location:  loc,
	}
	if a.Field == "" {
		b.errors.Add(rerrors.Structural, fmt.Sprintf("rule %s: atom is missing 'field'", code), loc)
		return a, false
	}
	if !a.Operator.Valid() {
		b.errors.Add(rerrors.Structural, fmt.Sprintf("rule %s: unknown operator %q", code, ya.Operator), loc).
			WithSuggestion(rerrors.SuggestName(ya.Operator, operatorNames()))
		return a, false
	}
	if ya.ValueType != "" {
		a.ValueType = rules.ValueType(strings.ToLower(ya.ValueType))
		if a.ValueType != rules.ValueStatic && a.ValueType != rules.ValueField {
			b.errors.Add(rerrors.Structural, fmt.Sprintf("rule %s: unknown value_type %q", code, ya.ValueType), loc).
				WithSuggestion("use 'static' or 'field'")
			return a, false
		}
	}
	if a.Operator.IsUnary() {
		a.Value = nil
	}
	return a, true
}

func (b *builder) checkKeys(n *yaml.Node, allowed []string, what string) {
	for _, key := range mappingKeys(n) {
		known := false
		for _, k := range allowed {
			if key.Value == k {
				known = true
				break
			}
		}
		if !known {
			b.errors.Warn(rerrors.Structural, fmt.Sprintf("unknown %s key %q is ignored", what, key.Value), b.nodeLoc(key)).
				WithSuggestion(rerrors.SuggestName(key.Value, allowed))
		}
	}
}

func normalizeCodes(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = schema.NormalizeCode(c)
	}
	return out
}

func operatorNames() []string {
	out := make([]string, len(rules.Operators))
	for i, op := range rules.Operators {
		out[i] = string(op)
	}
	return out
}

func dataTypeNames() []string {
	out := make([]string, len(schema.DataTypes))
	for i, dt := range schema.DataTypes {
		out[i] = string(dt)
	}
	return out
}
