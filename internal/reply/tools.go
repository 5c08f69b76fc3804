package reply

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
	"google.golang.org/genai"
)

// Capability is one named operation the generator may invoke instead of,
// or alongside, free text. Params is a JSON Schema document; arguments
// are validated against it before a tool call is surfaced.
type Capability struct {
	Name        string
	Description string
	Params      string

	schema *gojsonschema.Schema
	decl   *genai.FunctionDeclaration
}

type Toolset struct {
	caps  map[string]*Capability
	order []string
}

func NewToolset(caps ...Capability) (*Toolset, error) {
	t := &Toolset{caps: make(map[string]*Capability, len(caps))}
	for i := range caps {
		c := caps[i]
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(c.Params))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", c.Name, err)
		}
		c.schema = schema
		c.decl = declarationFor(&c)
		t.caps[c.Name] = &c
		t.order = append(t.order, c.Name)
	}
	return t, nil
}

// Validate checks a proposed tool invocation and returns its arguments in
// wire form. Unknown names and schema violations are both rejected.
func (t *Toolset) Validate(name string, args map[string]any) (json.RawMessage, error) {
	c, ok := t.caps[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}

	if args == nil {
		args = map[string]any{}
	}

	result, err := c.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return nil, fmt.Errorf("validate %s args: %w", name, err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("invalid %s args: %s", name, result.Errors()[0].String())
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", name, err)
	}
	return raw, nil
}

func (t *Toolset) Names() []string {
	return append([]string(nil), t.order...)
}

// Declarations renders the capability set in the form the Gemini API
// consumes.
func (t *Toolset) Declarations() []*genai.Tool {
	if len(t.order) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(t.order))
	for _, name := range t.order {
		decls = append(decls, t.caps[name].decl)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func declarationFor(c *Capability) *genai.FunctionDeclaration {
	var doc struct {
		Properties map[string]struct {
			Type        string   `json:"type"`
			Description string   `json:"description"`
			Enum        []string `json:"enum"`
			Minimum     *float64 `json:"minimum"`
			Maximum     *float64 `json:"maximum"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	// Params compiled above, so this cannot fail with valid capabilities.
	_ = json.Unmarshal([]byte(c.Params), &doc)

	props := make(map[string]*genai.Schema, len(doc.Properties))
	for name, p := range doc.Properties {
		s := &genai.Schema{Description: p.Description}
		switch p.Type {
		case "string":
			s.Type = genai.TypeString
		case "number":
			s.Type = genai.TypeNumber
		case "integer":
			s.Type = genai.TypeInteger
		case "boolean":
			s.Type = genai.TypeBoolean
		default:
			s.Type = genai.TypeString
		}
		s.Enum = p.Enum
		s.Minimum = p.Minimum
		s.Maximum = p.Maximum
		props[name] = s
	}

	return &genai.FunctionDeclaration{
		Name:        c.Name,
		Description: c.Description,
		Parameters: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
			Required:   doc.Required,
		},
	}
}

// DefaultCapabilities is the activity set the mentor can launch in-app.
func DefaultCapabilities() []Capability {
	return []Capability{
		{
			Name:        "breathing.start",
			Description: "Start a guided breathing exercise for the user.",
			Params: `{
				"type": "object",
				"properties": {
					"mode": {"type": "string", "enum": ["478", "box", "paced"], "description": "Breathing pattern to guide."},
					"duration_sec": {"type": "number", "minimum": 30, "maximum": 600, "description": "Exercise length in seconds."}
				},
				"required": ["mode", "duration_sec"],
				"additionalProperties": false
			}`,
		},
		{
			Name:        "journaling.prompt",
			Description: "Open the journal with a reflective writing prompt.",
			Params: `{
				"type": "object",
				"properties": {
					"topic": {"type": "string", "description": "Theme the prompt should explore."},
					"seed": {"type": "string", "description": "Optional opening line to seed the entry."}
				},
				"required": ["topic"],
				"additionalProperties": false
			}`,
		},
		{
			Name:        "focus.start",
			Description: "Start a short focus sprint timer.",
			Params: `{
				"type": "object",
				"properties": {
					"minutes": {"type": "number", "minimum": 1, "maximum": 30, "description": "Sprint length in minutes."}
				},
				"required": ["minutes"],
				"additionalProperties": false
			}`,
		},
		{
			Name:        "break.start",
			Description: "Start a restorative break timer.",
			Params: `{
				"type": "object",
				"properties": {
					"minutes": {"type": "number", "minimum": 1, "maximum": 10, "description": "Break length in minutes."}
				},
				"required": ["minutes"],
				"additionalProperties": false
			}`,
		},
	}
}

func DefaultToolset() *Toolset {
	t, err := NewToolset(DefaultCapabilities()...)
	if err != nil {
		panic("default toolset schemas invalid: " + err.Error())
	}
	return t
}
