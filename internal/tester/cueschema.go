package tester

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaVal  cue.Value
)

func compiledSchema() (cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		schemaVal = schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
	})
	if err := schemaVal.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compiling document schema: %w", err)
	}
	return schemaVal, nil
}

// validateDocument unifies a YAML document with the named schema definition
// and reports the first constraint violation.
func validateDocument(path string, raw []byte, definition string) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	file, err := cueyaml.Extract(path, raw)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	doc := schemaCtx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("building %s: %w", path, err)
	}

	def := schema.LookupPath(cue.ParsePath(definition))
	if err := def.Err(); err != nil {
		return fmt.Errorf("looking up %s: %w", definition, err)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(false), cue.Final()); err != nil {
		return fmt.Errorf("validating %s: %w", path, err)
	}
	return nil
}
