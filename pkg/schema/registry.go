// Package schema validates event payloads against JSON Schemas registered
// per event_type, so malformed payloads are rejected at append time rather
// than discovered downstream by a receipt or replay consumer.
package schema

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func toReader(doc string) io.Reader {
	return strings.NewReader(doc)
}

const schemaURLPrefix = "https://openagents.schemas.local/runtime/"

// Registry compiles and caches JSON Schemas keyed by event_type.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

// NewRegistry returns an empty Registry. Event types with no registered
// schema are accepted unconditionally by Validate.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*jsonschema.Schema)}
}

// Register compiles schemaDoc (a JSON Schema document, Draft 2020-12) and
// associates it with eventType. A second call for the same eventType
// replaces the prior schema.
func (r *Registry) Register(eventType string, schemaDoc string) error {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	url := schemaURLPrefix + eventType + ".schema.json"
	if err := compiler.AddResource(url, toReader(schemaDoc)); err != nil {
		return fmt.Errorf("add schema resource for event_type %q: %w", eventType, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("compile schema for event_type %q: %w", eventType, err)
	}

	r.mu.Lock()
	r.schemas[eventType] = compiled
	r.mu.Unlock()
	return nil
}

// Validate checks payload against the schema registered for eventType. If
// no schema is registered for eventType, Validate returns nil.
func (r *Registry) Validate(eventType string, payload interface{}) error {
	r.mu.RLock()
	compiled, ok := r.schemas[eventType]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := compiled.Validate(payload); err != nil {
		return err
	}
	return nil
}

// Registered reports whether eventType has a schema registered.
func (r *Registry) Registered(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.schemas[eventType]
	return ok
}
