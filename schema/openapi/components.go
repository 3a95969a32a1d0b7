package openapi

import (
	"regexp"
	"strconv"
	"strings"
)

const componentPrefix = "#/components/schemas/"

// componentRegistry decides which schemas are published under
// #/components/schemas. A first pass counts every object, array and oneOf
// schema by digest; a schema used twice (or forced) becomes a component and
// every use of it renders as a $ref. Digests include the explicit markers, so
// an explicit and an implicit value of the same type stay separate.
type componentRegistry struct {
	byDigest map[string]*component
	names    map[string]bool
}

type component struct {
	name   string
	node   *schemaNode
	uses   int
	forced bool
}

func (c *component) published() bool { return c.forced || c.uses >= 2 }

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		byDigest: map[string]*component{},
		names:    map[string]bool{},
	}
}

func shareable(node *schemaNode) bool {
	return node != nil && (node.Type == "object" || node.Type == "array" || len(node.OneOf) > 0)
}

// collect counts node and everything below it. Component names come from the
// overlay type when it has one, else from the property path.
func (r *componentRegistry) collect(node *schemaNode, hint string) {
	if !shareable(node) {
		if node != nil {
			r.collectChildren(node, hint)
		}
		return
	}
	r.use(node, hint, false)
	r.collectChildren(node, hint)
}

func (r *componentRegistry) collectChildren(node *schemaNode, hint string) {
	node.render(hint, func(child *schemaNode, childHint string) map[string]any {
		r.collect(child, childHint)
		return nil
	})
}

// force publishes node under name regardless of how often it is used.
func (r *componentRegistry) force(node *schemaNode, name string) string {
	entry := r.use(node, name, true)
	if entry == nil {
		return ""
	}
	return componentPrefix + entry.name
}

func (r *componentRegistry) use(node *schemaNode, hint string, force bool) *component {
	digest := node.Digest()
	if digest == "" {
		return nil
	}
	entry, ok := r.byDigest[digest]
	if !ok {
		if node.title != "" && !force {
			hint = node.title
		}
		entry = &component{name: r.reserve(hint), node: node}
		r.byDigest[digest] = entry
	}
	entry.uses++
	entry.forced = entry.forced || force
	return entry
}

// ref returns the reference for node once it is published.
func (r *componentRegistry) ref(node *schemaNode) string {
	if !shareable(node) {
		return ""
	}
	entry := r.byDigest[node.Digest()]
	if entry == nil || !entry.published() {
		return ""
	}
	return componentPrefix + entry.name
}

func (r *componentRegistry) reserve(hint string) string {
	base := sanitizeComponentName(hint)
	if base == "" {
		base = "Schema"
	}
	name := base
	for i := 1; r.names[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	r.names[name] = true
	return name
}

// schemas renders every published component through render so nested
// components appear as references.
func (r *componentRegistry) schemas(render func(*schemaNode, string) map[string]any) map[string]any {
	out := map[string]any{}
	for _, entry := range r.byDigest {
		if entry.published() {
			out[entry.name] = entry.node.render(entry.name, render)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var componentNameRegexp = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func sanitizeComponentName(name string) string {
	name = strings.Trim(componentNameRegexp.ReplaceAllString(name, "_"), "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

func combineComponentName(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		return "Schema"
	}
	return strings.Join(kept, "_")
}
