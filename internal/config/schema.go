//go:generate go run ../../build/gen-config-schema.go ../../driversync.schema.json

package config

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	schemareflector "github.com/swaggest/jsonschema-go"
)

var rootSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	bs, err := ReflectSchema()
	if err != nil {
		return nil, err
	}

	js, err := jsonschema.UnmarshalJSON(bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft2020)
	if err := compiler.AddResource("schema.json", js); err != nil {
		return nil, err
	}

	return compiler.Compile("schema.json")
})

// ReflectSchema returns the JSON schema of the configuration file, derived
// from the Root type.
func ReflectSchema() ([]byte, error) {
	reflector := schemareflector.Reflector{}

	s, err := reflector.Reflect(Root{})
	if err != nil {
		return nil, err
	}

	return json.MarshalIndent(s, "", "  ")
}
