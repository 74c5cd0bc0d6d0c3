package tool

// Fragment is a minimal JSON Schema document tree shaped to match what
// invopop/jsonschema emits for a *jsonschema.Schema, so the Endpoint
// Synthesizer can drop a tool's compiled schema straight into an OpenAPI
// "schema" field without a second translation layer.
type Fragment struct {
	Type                 string               `json:"type,omitempty"`
	Properties           map[string]*Fragment `json:"properties,omitempty"`
	Required             []string             `json:"required,omitempty"`
	Items                *Fragment            `json:"items,omitempty"`
	Enum                 []any                `json:"enum,omitempty"`
	AnyOf                []*Fragment          `json:"anyOf,omitempty"`
	AdditionalProperties bool                 `json:"additionalProperties"`
}

// Fragment renders the schema's root node as an invopop/jsonschema-shaped
// document, using the stored (underscore-stripped) field names so the
// synthesized OpenAPI document matches what chat-catalog tool calls see.
func (s *Schema) Fragment() *Fragment {
	return renderNode(s.arena, s.root, s.aliasOf)
}

// aliasOf maps a wire field name to its stored name, defaulting to the
// wire name itself when no alias applies.
func (s *Schema) aliasOf(wireName string) string {
	for _, a := range s.aliases {
		if a.WireName == wireName {
			return a.StoredName
		}
	}
	return wireName
}

func renderNode(arena []Node, idx int, alias func(string) string) *Fragment {
	if idx < 0 || idx >= len(arena) {
		return &Fragment{}
	}
	n := arena[idx]
	switch n.Kind {
	case KindRef:
		return renderNode(arena, n.RefIndex, alias)

	case KindPrim:
		return &Fragment{Type: jsonSchemaType(n.Prim)}

	case KindEnum:
		return &Fragment{Type: jsonSchemaType(n.EnumBase), Enum: n.EnumVals}

	case KindUnion:
		alts := make([]*Fragment, 0, len(n.Alts))
		for _, a := range n.Alts {
			alts = append(alts, renderNode(arena, a, alias))
		}
		return &Fragment{AnyOf: alts}

	case KindObj:
		props := make(map[string]*Fragment, len(n.Fields))
		for name, fieldIdx := range n.Fields {
			props[alias(name)] = renderNode(arena, fieldIdx, alias)
		}
		required := make([]string, len(n.Required))
		for i, r := range n.Required {
			required[i] = alias(r)
		}
		return &Fragment{Type: "object", Properties: props, Required: required}

	case KindArr:
		items := &Fragment{}
		if n.Items >= 0 {
			items = renderNode(arena, n.Items, alias)
		}
		return &Fragment{Type: "array", Items: items}

	default: // KindAny
		return &Fragment{AdditionalProperties: true}
	}
}

func jsonSchemaType(p Prim) string {
	switch p {
	case PrimInteger:
		return "integer"
	case PrimNumber:
		return "number"
	case PrimBoolean:
		return "boolean"
	case PrimNull:
		return "null"
	default:
		return "string"
	}
}
