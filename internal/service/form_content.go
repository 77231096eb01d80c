package service

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gorm.io/datatypes"

	"github.com/noah-isme/docflow-api/pkg/apperror"
)

//go:embed schemas/form_content.schema.json
var formContentSchema string

const formContentKey = "errors.validation.form_content"

type formGrid struct {
	Columns []string        `json:"columns,omitempty"`
	Rows    [][]interface{} `json:"rows"`
}

// FormContentNormalizer validates a form's cell grid and strips markup from its text cells.
type FormContentNormalizer struct {
	schema    *jsonschema.Schema
	sanitizer *bluemonday.Policy
}

// NewFormContentNormalizer compiles the embedded cell grid schema.
func NewFormContentNormalizer() (*FormContentNormalizer, error) {
	schema, err := jsonschema.CompileString("form_content.schema.json", formContentSchema)
	if err != nil {
		return nil, fmt.Errorf("compile form content schema: %w", err)
	}
	return &FormContentNormalizer{schema: schema, sanitizer: bluemonday.StrictPolicy()}, nil
}

// Normalize returns the sanitised grid ready to persist.
func (n *FormContentNormalizer) Normalize(raw json.RawMessage) (datatypes.JSON, error) {
	var document interface{}
	if err := decodeNumbers(raw, &document); err != nil {
		return nil, invalidContent(err.Error())
	}
	if err := n.schema.Validate(document); err != nil {
		return nil, invalidContent(err.Error())
	}

	var grid formGrid
	if err := decodeNumbers(raw, &grid); err != nil {
		return nil, invalidContent(err.Error())
	}

	for i, column := range grid.Columns {
		grid.Columns[i] = n.clean(column)
	}
	for _, row := range grid.Rows {
		for i, cell := range row {
			if text, ok := cell.(string); ok {
				row[i] = n.clean(text)
			}
		}
	}
	if grid.Rows == nil {
		grid.Rows = [][]interface{}{}
	}

	var encoded bytes.Buffer
	encoder := json.NewEncoder(&encoded)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(grid); err != nil {
		return nil, err
	}
	return datatypes.JSON(bytes.TrimSpace(encoded.Bytes())), nil
}

func (n *FormContentNormalizer) clean(value string) string {
	return plainText(n.sanitizer, value)
}

func decodeNumbers(raw []byte, target interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	return decoder.Decode(target)
}

func invalidContent(reason string) error {
	return &apperror.ValidationError{Field: "content", Reason: reason, Key: formContentKey}
}
