package metadata

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "propls-metadata.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// Decode validates data against the metadata schema and decodes it.
func Decode(data []byte) (*ProjectMetadata, error) {
	sch, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile metadata schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	var md ProjectMetadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &md, nil
}

// FileProvider serves metadata read from a JSON file. The file is read on
// every Fetch; the Cache in front of it deduplicates requests.
type FileProvider struct {
	Path string
}

func (p FileProvider) Fetch(_ context.Context, req Request) (*ProjectMetadata, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, err
	}
	md, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Path, err)
	}
	if md.ProjectURI == "" {
		md.ProjectURI = string(req.Key)
	}
	return md, nil
}
