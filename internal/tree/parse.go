package tree

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// maxDecodedNodes bounds alias expansion while converting a YAML document.
const maxDecodedNodes = 1 << 20

// ErrTooLarge is returned when a document expands past maxDecodedNodes.
var ErrTooLarge = errors.New("document expands to too many nodes")

// Document is a template paired with the data it renders against.
type Document struct {
	Template any
	Data     any
}

// Parse decodes YAML or JSON into the template model. Mappings become
// *Object, sequences []any, and scalars string, int, float64, bool, or nil.
func Parse(src []byte) (any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(src, &root); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	c := &converter{}

	return c.convert(&root)
}

// ParseDocument decodes src and splits off the optional self-contained
// {template, data} wrapper. Without the wrapper the whole value is the
// template and Data is nil.
func ParseDocument(src []byte) (Document, error) {
	v, err := Parse(src)
	if err != nil {
		return Document{}, err
	}

	return Split(v), nil
}

// Split applies the {template, data} wrapper convention to an already
// decoded value.
func Split(v any) Document {
	if obj, ok := AsObject(v); ok {
		if tmpl, ok := obj.Get("template"); ok {
			data, _ := obj.Get("data")
			return Document{Template: tmpl, Data: data}
		}
	}

	return Document{Template: v}
}

type converter struct {
	count int
}

func (c *converter) convert(n *yaml.Node) (any, error) {
	c.count++
	if c.count > maxDecodedNodes {
		return nil, ErrTooLarge
	}

	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return c.convert(n.Content[0])
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, nil
		}
		return c.convert(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, child := range n.Content {
			v, err := c.convert(child)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		obj := NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.Kind == yaml.AliasNode && keyNode.Alias != nil {
				keyNode = keyNode.Alias
			}
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", keyNode.Line)
			}
			v, err := c.convert(valNode)
			if err != nil {
				return nil, err
			}
			if keyNode.Tag == "!!merge" {
				if merged, ok := v.(*Object); ok {
					for _, k := range merged.Keys() {
						if !obj.Has(k) {
							mv, _ := merged.Get(k)
							obj.Set(k, mv)
						}
					}
				}
				continue
			}
			obj.Set(keyNode.Value, v)
		}
		return obj, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}

	return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
}
