// Package codec converts command lists to and from their JSON text form.
//
// Decoding is strict: input is first parsed as generic JSON, then checked
// against the record schema, and only then mapped onto model.Command. A file
// that is valid JSON but the wrong shape is rejected instead of being coerced.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/kaptinlin/jsonschema"

	"quickroot/model"
)

// Stage identifies which decoding step rejected the input.
type Stage string

const (
	StageEncoding Stage = "encoding"
	StageSyntax   Stage = "syntax"
	StageSchema   Stage = "schema"
)

// DecodeError reports why a JSON document could not be turned into commands.
type DecodeError struct {
	Stage  Stage
	Detail string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.Stage, e.Detail)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// recordSchema describes the export file: an array of {id, name, script}.
// Identifiers are limited to the range a JSON number holds exactly.
const recordSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"properties": {
			"id": {"type": "integer", "minimum": -9007199254740991, "maximum": 9007199254740991},
			"name": {"type": "string", "minLength": 1},
			"script": {"type": "string"}
		},
		"required": ["id", "name", "script"],
		"additionalProperties": false
	}
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.NewCompiler().Compile([]byte(recordSchema))
})

// Encode returns the compact JSON form used for persistence. A nil list
// encodes as an empty array.
func Encode(list []model.Command) ([]byte, error) {
	if list == nil {
		list = []model.Command{}
	}
	return json.Marshal(list)
}

// EncodeIndent returns the human-readable JSON form used for export files.
func EncodeIndent(list []model.Command) ([]byte, error) {
	if list == nil {
		list = []model.Command{}
	}
	return json.MarshalIndent(list, "", "  ")
}

// Decode parses data as a UTF-8 JSON array of command records. Any failure
// is returned as a *DecodeError.
func Decode(data []byte) ([]model.Command, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return nil, &DecodeError{Stage: StageEncoding, Detail: "input is not valid UTF-8"}
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &DecodeError{Stage: StageSyntax, Detail: err.Error(), Err: err}
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	result := schema.Validate(doc)
	if !result.IsValid() {
		return nil, &DecodeError{Stage: StageSchema, Detail: fmt.Sprint(result.Error())}
	}

	var list []model.Command
	if err := json.Unmarshal(data, &list); err != nil {
		// e.g. an integral id that overflows int64
		return nil, &DecodeError{Stage: StageSchema, Detail: err.Error(), Err: err}
	}
	if list == nil {
		list = []model.Command{}
	}
	return list, nil
}
