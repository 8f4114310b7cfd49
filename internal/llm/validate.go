package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compiledSchemas holds compiled schemas by Schema.Name. Names are fixed per
// stage, so the cache never grows past a handful of entries.
var compiledSchemas = struct {
	sync.Mutex
	byName map[string]*jsonschema.Schema
}{byName: make(map[string]*jsonschema.Schema)}

// validateResponse checks raw against schema and returns the JSON to hand
// back to the caller. A markdown code fence around the object is removed
// first; some models add one even in JSON mode. A nil schema passes raw
// through untouched.
func validateResponse(schema *Schema, raw json.RawMessage) (json.RawMessage, error) {
	if schema == nil {
		return raw, nil
	}
	invalid := func(err error) error {
		return &ErrInvalidResponse{Schema: schema.Name, Content: raw, Err: err}
	}

	body := stripCodeFence(raw)
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, invalid(fmt.Errorf("not JSON: %w", err))
	}

	sch, err := compiledSchema(schema)
	if err != nil {
		return nil, invalid(err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, invalid(err)
	}
	return json.RawMessage(body), nil
}

func compiledSchema(schema *Schema) (*jsonschema.Schema, error) {
	compiledSchemas.Lock()
	defer compiledSchemas.Unlock()

	if sch, ok := compiledSchemas.byName[schema.Name]; ok {
		return sch, nil
	}

	// The compiler wants the decoded-JSON shape (json.Number, []any), not
	// the Go literals the schema was declared with.
	def, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %q: %w", schema.Name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(def))
	if err != nil {
		return nil, fmt.Errorf("decode schema %q: %w", schema.Name, err)
	}

	url := "mem://schemas/" + schema.Name + ".json"
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft2020)
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema %q: %w", schema.Name, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", schema.Name, err)
	}
	compiledSchemas.byName[schema.Name] = sch
	return sch, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(raw []byte) []byte {
	s := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(s, []byte("```")) || !bytes.HasSuffix(s, []byte("```")) || len(s) < 6 {
		return s
	}
	s = s[3 : len(s)-3]
	if nl := bytes.IndexByte(s, '\n'); nl >= 0 && !bytes.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	return bytes.TrimSpace(s)
}
