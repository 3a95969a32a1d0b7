package overlay

import (
	"fmt"
	"strings"
)

// Names every engine binds before the snapshot keys. A snapshot key with one
// of these names is shadowed.
const (
	bindingNow          = "now"
	bindingArgs         = "args"
	bindingMetadata     = "metadata"
	bindingScope        = "scope"
	bindingExplicit     = "explicit"
	bindingCall         = "call"
	helperIsExplicit    = "isExplicit"
	helperExplicitUnder = "explicitUnder"
)

var reservedBindings = map[string]bool{
	bindingNow:          true,
	bindingArgs:         true,
	bindingMetadata:     true,
	bindingScope:        true,
	bindingExplicit:     true,
	bindingCall:         true,
	helperIsExplicit:    true,
	helperExplicitUnder: true,
}

// isExplicit reports whether path was supplied by a document rather than
// filled from defaults.
func (ctx RuleContext) isExplicit(path string) bool {
	return ctx.Explicit[path]
}

// explicitUnder reports whether path or any path below it is explicit. An
// empty prefix matches any explicit path.
func (ctx RuleContext) explicitUnder(prefix string) bool {
	for path, explicit := range ctx.Explicit {
		if explicit && pathUnder(path, prefix) {
			return true
		}
	}
	return false
}

func pathUnder(path, prefix string) bool {
	if prefix == "" || path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+".")
}

// bindings returns the variables visible to a rule: the top-level snapshot
// keys overlaid with the reserved context names.
func (ctx RuleContext) bindings() map[string]any {
	snapshot := snapshotAsMap(ctx.Snapshot)
	env := make(map[string]any, len(snapshot)+len(reservedBindings))
	for key, value := range snapshot {
		if reservedBindings[key] {
			continue
		}
		env[key] = value
	}
	env[bindingNow] = ctx.timestamp()
	env[bindingArgs] = ctx.Args
	env[bindingMetadata] = ctx.Metadata
	env[bindingExplicit] = ctx.explicitBinding()
	scope := ctx.scopeBinding()
	if scope == nil {
		scope = map[string]any{}
	}
	env[bindingScope] = scope
	return env
}

// helpers adds the explicitness functions bound to ctx.
func (ctx RuleContext) helpers(env map[string]any) map[string]any {
	env[helperIsExplicit] = ctx.isExplicit
	env[helperExplicitUnder] = ctx.explicitUnder
	return env
}

func snapshotAsMap(value any) map[string]any {
	if m, ok := value.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

// bind adds call(name, args...) and one entry per registered function.
func (r *FunctionRegistry) bind(env map[string]any) map[string]any {
	if r == nil {
		return env
	}
	env[bindingCall] = func(name string, arguments ...any) (any, error) {
		return r.Call(name, arguments...)
	}
	for _, name := range r.Names() {
		if reservedBindings[name] {
			continue
		}
		env[name] = r.caller(name)
	}
	return env
}

func (r *FunctionRegistry) caller(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return r.Call(name, arguments...)
	}
}

// ruleFunc adapts an engine's run step into a CompiledRule.
type ruleFunc func(RuleContext) (any, error)

func (f ruleFunc) Evaluate(ctx RuleContext) (any, error) {
	if f == nil {
		return nil, fmt.Errorf("overlay: compiled rule is empty")
	}
	return f(ctx.withDefaults())
}

func requireExpression(engine, expression string) error {
	if strings.TrimSpace(expression) == "" {
		return wrapEvaluationError(engine, expression, "", errEmptyExpression)
	}
	return nil
}
