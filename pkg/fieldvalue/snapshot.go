package fieldvalue

import (
	"time"

	"ceeval-hq/verdict/pkg/schema"
)

// Snapshot is an immutable view of one dossier's values at a version.
type Snapshot struct {
	dossierID string
	version   uint64
	asOf      time.Time
	instances []DocumentInstance
	values    map[schema.FieldPath][]FieldValue
}

// DossierID returns the dossier the snapshot belongs to.
func (s *Snapshot) DossierID() string { return s.dossierID }

// Version is the dossier version the snapshot was taken at. It grows with
// every instance added and every value recorded.
func (s *Snapshot) Version() uint64 { return s.version }

// AsOf is the time of the last change included in the snapshot.
func (s *Snapshot) AsOf() time.Time { return s.asOf }

// Instances returns the document instances in submission order.
func (s *Snapshot) Instances() []DocumentInstance {
	out := make([]DocumentInstance, len(s.instances))
	copy(out, s.instances)
	return out
}

// DocumentTypes returns the distinct document type codes present, in order
// of first submission.
func (s *Snapshot) DocumentTypes() []string {
	seen := make(map[string]bool, len(s.instances))
	var out []string
	for _, inst := range s.instances {
		if !seen[inst.DocumentType] {
			seen[inst.DocumentType] = true
			out = append(out, inst.DocumentType)
		}
	}
	return out
}

// HasDocumentType reports whether at least one instance of code is present.
func (s *Snapshot) HasDocumentType(code string) bool {
	code = schema.NormalizeCode(code)
	for _, inst := range s.instances {
		if inst.DocumentType == code {
			return true
		}
	}
	return false
}

// CountDocumentType returns the number of instances of code.
func (s *Snapshot) CountDocumentType(code string) int {
	code = schema.NormalizeCode(code)
	n := 0
	for _, inst := range s.instances {
		if inst.DocumentType == code {
			n++
		}
	}
	return n
}

// ValuesFor returns one resolved value per instance, in submission order.
func (s *Snapshot) ValuesFor(path schema.FieldPath) []FieldValue {
	vals := s.values[path]
	out := make([]FieldValue, len(vals))
	copy(out, vals)
	return out
}

// Latest returns the resolved value of the first instance having path.
func (s *Snapshot) Latest(path schema.FieldPath) (FieldValue, bool) {
	vals := s.values[path]
	if len(vals) == 0 {
		return FieldValue{}, false
	}
	return vals[0], true
}

// ValueOn returns the resolved value of path on one instance.
func (s *Snapshot) ValueOn(instanceID string, path schema.FieldPath) (FieldValue, bool) {
	for _, v := range s.values[path] {
		if v.DocumentInstanceID == instanceID {
			return v, true
		}
	}
	return FieldValue{}, false
}
