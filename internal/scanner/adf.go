package scanner

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags the variant held by a Node.
type Kind int

const (
	KindScalar Kind = iota
	KindObject
	KindArray
)

// Node is one value of a parsed Atlassian document.
type Node struct {
	Kind   Kind
	Object map[string]*Node
	Array  []*Node
	Scalar any
}

const (
	// maxWalkDepth bounds the document walk for extension nodes.
	maxWalkDepth = 512
	// maxKeySearchDepth bounds the fallback search for a diagramName key.
	maxKeySearchDepth = 12
)

var extensionTypes = map[string]bool{
	"extension":       true,
	"bodiedExtension": true,
	"inlineExtension": true,
}

// ParseADF decodes a document body into a Node tree.
func ParseADF(data []byte) (*Node, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse adf: %w", err)
	}
	return toNode(raw), nil
}

func toNode(v any) *Node {
	switch t := v.(type) {
	case map[string]any:
		n := &Node{Kind: KindObject, Object: make(map[string]*Node, len(t))}
		for k, child := range t {
			n.Object[k] = toNode(child)
		}
		return n
	case []any:
		n := &Node{Kind: KindArray, Array: make([]*Node, len(t))}
		for i, child := range t {
			n.Array[i] = toNode(child)
		}
		return n
	default:
		return &Node{Kind: KindScalar, Scalar: t}
	}
}

// Get returns the child under key, or nil when n is not an object.
func (n *Node) Get(key string) *Node {
	if n == nil || n.Kind != KindObject {
		return nil
	}
	return n.Object[key]
}

// Path follows keys through nested objects.
func (n *Node) Path(keys ...string) *Node {
	cur := n
	for _, k := range keys {
		cur = cur.Get(k)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// String returns the scalar string value, or "" for any other node.
func (n *Node) String() string {
	if n == nil || n.Kind != KindScalar {
		return ""
	}
	s, _ := n.Scalar.(string)
	return s
}

// textValue accepts either a string or a {"value": string} object.
func (n *Node) textValue() string {
	if n == nil {
		return ""
	}
	if n.Kind == KindObject {
		return strings.TrimSpace(n.Get("value").String())
	}
	return strings.TrimSpace(n.String())
}

func matchesMacroKey(key string) bool {
	return key == MacroKey ||
		strings.HasSuffix(key, "/"+MacroKey) ||
		strings.HasSuffix(key, ":"+MacroKey)
}

// adfVisitor accumulates the names of diagram extensions found in a tree.
type adfVisitor struct {
	names map[string]struct{}
	found bool
}

func (v *adfVisitor) visit(n *Node, depth int) {
	if n == nil || depth > maxWalkDepth {
		return
	}
	switch n.Kind {
	case KindArray:
		for _, child := range n.Array {
			v.visit(child, depth+1)
		}
	case KindObject:
		if extensionTypes[n.Get("type").String()] && matchesMacroKey(n.Path("attrs", "extensionKey").String()) {
			v.found = true
			if name := extensionDiagramName(n.Path("attrs", "parameters")); name != "" {
				v.names[name] = struct{}{}
			}
		}
		for _, child := range n.Object {
			v.visit(child, depth+1)
		}
	}
}

// extensionDiagramName reads the diagram name from an extension's parameter
// bag, trying the known locations before a bounded key search.
func extensionDiagramName(params *Node) string {
	if params == nil {
		return ""
	}
	candidates := []*Node{
		params.Path("guestParams", NameParam),
		params.Path("macroParams", NameParam),
		params.Get(NameParam),
		params.Get("diagram-name"),
		params.Get("diagram_name"),
	}
	for _, c := range candidates {
		if name := c.textValue(); name != "" {
			return name
		}
	}
	return findKey(params, NameParam, 0)
}

func findKey(n *Node, key string, depth int) string {
	if n == nil || depth > maxKeySearchDepth {
		return ""
	}
	switch n.Kind {
	case KindObject:
		if name := n.Get(key).textValue(); name != "" {
			return name
		}
		for _, child := range n.Object {
			if name := findKey(child, key, depth+1); name != "" {
				return name
			}
		}
	case KindArray:
		for _, child := range n.Array {
			if name := findKey(child, key, depth+1); name != "" {
				return name
			}
		}
	}
	return ""
}

// scanADF collects diagram names from a parsed document.
func scanADF(doc *Node, names map[string]struct{}) (found bool) {
	v := &adfVisitor{names: names}
	v.visit(doc, 0)
	return v.found
}
