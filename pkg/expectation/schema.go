package expectation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/expectation.schema.json
var schemaJSON string

const schemaURL = "expectation.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	return compiler.Compile(schemaURL)
})

// SchemaError lists the places where a document breaks the expectation
// schema.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "expectation does not match schema: " + strings.Join(e.Problems, "; ")
}

// ValidateSchema checks the JSON form of one expectation or an array of
// them. Structural checks beyond the schema are left to Validate.
func ValidateSchema(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &SchemaError{Problems: []string{"invalid JSON: " + err.Error()}}
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &SchemaError{Problems: []string{err.Error()}}
	}
	out := &SchemaError{}
	collectProblems(verr, out)
	return out
}

func collectProblems(err *jsonschema.ValidationError, out *SchemaError) {
	if len(err.Causes) == 0 {
		loc := strings.ReplaceAll(strings.TrimPrefix(err.InstanceLocation, "/"), "/", ".")
		if loc == "" {
			loc = "(root)"
		}
		out.Problems = append(out.Problems, loc+": "+err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectProblems(cause, out)
	}
}
