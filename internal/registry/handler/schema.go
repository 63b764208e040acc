package handler

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	dErrors "docverify/pkg/domain-errors"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

var (
	doctorSchema = mustLoadSchema("schemas/doctor.json")
	reportSchema = mustLoadSchema("schemas/report.json")
)

func mustLoadSchema(name string) *gojsonschema.Schema {
	raw, err := schemaFiles.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("read schema %s: %v", name, err))
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

// checkSchema validates the raw body shape. Required fields are left to the
// request's Validate so callers get one "x is required" message per field.
func checkSchema(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid JSON body")
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return dErrors.New(dErrors.CodeValidation, strings.Join(msgs, "; "))
}
