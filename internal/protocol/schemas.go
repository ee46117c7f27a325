package protocol

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaSet holds the compiled wire schemas. Inbound messages are
// validated before any per-op decoding; outbound shapes are covered by
// tests only.
type SchemaSet struct {
	hello *jsonschema.Schema
	act   *jsonschema.Schema
}

// LoadSchemas compiles the message schemas from dir.
func LoadSchemas(dir string) (*SchemaSet, error) {
	compile := func(name string) (*jsonschema.Schema, error) {
		s, err := jsonschema.Compile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		return s, nil
	}
	hello, err := compile("hello.schema.json")
	if err != nil {
		return nil, err
	}
	act, err := compile("act.schema.json")
	if err != nil {
		return nil, err
	}
	return &SchemaSet{hello: hello, act: act}, nil
}

// A nil set validates nothing; per-op decoding still applies.
func (s *SchemaSet) ValidateHello(raw []byte) error {
	if s == nil {
		return nil
	}
	return validateRaw(s.hello, raw)
}

func (s *SchemaSet) ValidateAct(raw []byte) error {
	if s == nil {
		return nil
	}
	return validateRaw(s.act, raw)
}

func validateRaw(schema *jsonschema.Schema, raw []byte) error {
	if schema == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}
