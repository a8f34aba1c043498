package model

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed fields.yaml
var fieldsYAML []byte

// Field describes one extracted policy field.
type Field struct {
	// Key is the name the field is stored under in aiData.
	Key string `yaml:"key"`
	// ProposalKey is the name the extraction model uses in its JSON output.
	ProposalKey string `yaml:"proposal_key"`
	// Tracked marks the fields that feed confidence and accuracy metrics.
	Tracked bool `yaml:"tracked"`
	// Date marks fields whose values are reformatted to DD-MM-YYYY.
	Date bool `yaml:"date"`
	// RawKey, for date fields, stores the unparsed string from the document.
	RawKey string `yaml:"raw_key"`
	// List marks fields whose value is a list of strings rather than a scalar.
	List bool `yaml:"list"`
}

// ConfidenceKey returns the aiData key holding this field's confidence score.
func (f Field) ConfidenceKey() string {
	return f.Key + "_confidence"
}

// Schema is the indexed set of policy fields.
type Schema struct {
	Fields  []Field
	byKey   map[string]*Field
	tracked []string
}

type schemaFile struct {
	Fields []Field `yaml:"fields"`
}

// NewSchema indexes a field list.
func NewSchema(fields []Field) *Schema {
	s := &Schema{
		Fields: fields,
		byKey:  make(map[string]*Field, len(fields)),
	}
	for i := range s.Fields {
		f := &s.Fields[i]
		s.byKey[f.Key] = f
		if f.Tracked {
			s.tracked = append(s.tracked, f.Key)
		}
	}
	return s
}

// ByKey returns the field with the given stored key, or nil.
func (s *Schema) ByKey(key string) *Field {
	return s.byKey[key]
}

// Tracked returns the tracked field keys in declaration order.
func (s *Schema) Tracked() []string {
	return s.tracked
}

var defaultSchema = mustLoadSchema()

func mustLoadSchema() *Schema {
	var sf schemaFile
	if err := yaml.Unmarshal(fieldsYAML, &sf); err != nil {
		panic("model: parse fields.yaml: " + err.Error())
	}
	return NewSchema(sf.Fields)
}

// DefaultSchema returns the built-in policy field schema.
func DefaultSchema() *Schema {
	return defaultSchema
}

// TrackedFields returns the tracked field keys of the built-in schema in
// declaration order: name, contractAmount, issueDate.
func TrackedFields() []string {
	return defaultSchema.Tracked()
}
