// Package registry holds the static catalog of block types available in the
// flow builder: display metadata, default configuration, and the JSON Schema
// each node type's config is checked against at authoring time.
package registry

import (
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/botflowhq/botflow/pkg/schema"
)

// Block describes one entry in the catalog. Pure data; behavior lives in the
// execution engine.
type Block struct {
	Type          schema.NodeType `json:"type"`
	Label         string          `json:"label"`
	Icon          string          `json:"icon"`
	Category      string          `json:"category"`
	DefaultConfig map[string]any  `json:"default_config,omitempty"`

	// HasInput / HasOutput drive which connector affordances the renderer
	// draws. The start node has no input; terminal nodes have no output.
	HasInput  bool `json:"has_input"`
	HasOutput bool `json:"has_output"`

	// configSchema is the JSON Schema source for this type's config.
	// Empty means any object is acceptable.
	configSchema string
}

// Block categories, in palette order.
const (
	CategoryMessages     = "messages"
	CategoryInputs       = "inputs"
	CategoryLogic        = "logic"
	CategoryIntegrations = "integrations"
	CategoryEndings      = "endings"
)

// Registry is the thread-safe block catalog with lazily compiled config schemas.
type Registry struct {
	blocks map[schema.NodeType]*Block
	order  []schema.NodeType

	mu       sync.Mutex
	compiled map[schema.NodeType]*jsonschema.Schema
}

// New builds the catalog with every supported block type registered.
func New() *Registry {
	r := &Registry{
		blocks:   make(map[schema.NodeType]*Block, len(catalog)),
		compiled: make(map[schema.NodeType]*jsonschema.Schema),
	}
	for i := range catalog {
		b := &catalog[i]
		r.blocks[b.Type] = b
		r.order = append(r.order, b.Type)
	}
	return r
}

// Get returns the block for a node type.
func (r *Registry) Get(t schema.NodeType) (*Block, error) {
	b, ok := r.blocks[t]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "unknown block type %q", t)
	}
	return b, nil
}

// Has reports whether a node type exists in the catalog.
func (r *Registry) Has(t schema.NodeType) bool {
	_, ok := r.blocks[t]
	return ok
}

// List returns all blocks in palette order.
func (r *Registry) List() []*Block {
	out := make([]*Block, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.blocks[t])
	}
	return out
}

// DefaultLabel returns the catalog label for a type, or the type itself for
// unknown types so callers always get something displayable.
func (r *Registry) DefaultLabel(t schema.NodeType) string {
	if b, ok := r.blocks[t]; ok {
		return b.Label
	}
	return string(t)
}

// DefaultConfig returns a fresh copy of the default config for a type.
func (r *Registry) DefaultConfig(t schema.NodeType) map[string]any {
	b, ok := r.blocks[t]
	if !ok || b.DefaultConfig == nil {
		return map[string]any{}
	}
	cfg := make(map[string]any, len(b.DefaultConfig))
	for k, v := range b.DefaultConfig {
		cfg[k] = v
	}
	return cfg
}

// ValidateConfig checks a node's config against its type's JSON Schema.
// Issues come back as warnings only: incomplete configs never block authoring,
// the preview engine substitutes fallbacks at run time.
func (r *Registry) ValidateConfig(t schema.NodeType, config map[string]any) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	b, ok := r.blocks[t]
	if !ok {
		result.AddWarning("type", schema.ErrCodeValidation, fmt.Sprintf("unknown block type %q", t))
		return result
	}
	if b.configSchema == "" {
		return result
	}

	compiled, err := r.schemaFor(b)
	if err != nil {
		result.AddWarning("config", schema.ErrCodeValidation,
			fmt.Sprintf("config schema for %q unavailable: %s", t, err.Error()))
		return result
	}

	doc := make(map[string]any, len(config))
	for k, v := range config {
		doc[k] = v
	}
	if err := compiled.Validate(doc); err != nil {
		result.AddWarning("config", schema.ErrCodeValidation, err.Error())
	}
	return result
}

// schemaFor compiles (or fetches from cache) the JSON Schema for a block.
func (r *Registry) schemaFor(b *Block) (*jsonschema.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.compiled[b.Type]; ok {
		return s, nil
	}

	c := jsonschema.NewCompiler()
	c.AssertFormat()

	url := fmt.Sprintf("https://botflow.dev/schemas/blocks/%s.json", b.Type)
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(b.configSchema))
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s config schema: %w", b.Type, err)
	}
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add %s config schema: %w", b.Type, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s config schema: %w", b.Type, err)
	}

	r.compiled[b.Type] = s
	return s, nil
}
