package overlay

import (
	"reflect"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common"
	"github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
// Registered functions are reachable as call("name", [args...]).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

const celExplicitUnder = "explicit_under"

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
//
// isExplicit(path) and explicitUnder(prefix) are macros over the `explicit`
// map, so a cached program reads whichever paths the activation carries.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

// Compile defers the CEL compile to the first evaluation: the environment
// declares every top-level snapshot key, which is only known then.
func (e *celEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if err := requireExpression("cel", expression); err != nil {
		return nil, err
	}
	return ruleFunc(func(ctx RuleContext) (any, error) {
		env := ctx.bindings()
		program, err := e.program(expression, env)
		if err != nil {
			return nil, wrapEvaluationError("cel", expression, ctx.scopeLabel(), err)
		}
		out, _, err := program.Eval(env)
		if err != nil {
			return nil, wrapEvaluationError("cel", expression, ctx.scopeLabel(), err)
		}
		return out.Value(), nil
	}), nil
}

// program caches per expression and variable set.
func (e *celEvaluator) program(expression string, env map[string]any) (celgo.Program, error) {
	names := sortedKeys(env)
	cacheKey := expression + "|" + strings.Join(names, ",")
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}
	celEnv, err := e.environment(names)
	if err != nil {
		return nil, err
	}
	checked, issues := celEnv.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := celEnv.Program(checked)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(cacheKey, program)
	}
	return program, nil
}

func (e *celEvaluator) environment(names []string) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable(bindingNow, celgo.TimestampType),
		celgo.Variable(bindingExplicit, celgo.MapType(celgo.StringType, celgo.BoolType)),
		celgo.Macros(
			celgo.GlobalMacro(helperIsExplicit, 1, expandIsExplicit),
			celgo.GlobalMacro(helperExplicitUnder, 1, expandExplicitUnder),
		),
		celgo.Function(celExplicitUnder,
			celgo.Overload("explicit_under_map_string",
				[]*celgo.Type{celgo.MapType(celgo.StringType, celgo.BoolType), celgo.StringType},
				celgo.BoolType,
				celgo.BinaryBinding(explicitUnderBinding),
			),
		),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function(bindingCall,
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(e.callBinding),
			),
		))
	}
	for _, name := range names {
		if name == bindingNow || name == bindingExplicit {
			continue
		}
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	return celgo.NewEnv(opts...)
}

// isExplicit(path) becomes `path in explicit`.
func expandIsExplicit(eh celgo.MacroExprFactory, _ ast.Expr, args []ast.Expr) (ast.Expr, *common.Error) {
	return eh.NewCall(operators.In, args[0], eh.NewIdent(bindingExplicit)), nil
}

// explicitUnder(prefix) becomes `explicit_under(explicit, prefix)`.
func expandExplicitUnder(eh celgo.MacroExprFactory, _ ast.Expr, args []ast.Expr) (ast.Expr, *common.Error) {
	return eh.NewCall(celExplicitUnder, eh.NewIdent(bindingExplicit), args[0]), nil
}

func explicitUnderBinding(explicitVal, prefixVal ref.Val) ref.Val {
	prefix, ok := prefixVal.Value().(string)
	if !ok {
		return types.NewErr("overlay: explicitUnder prefix must be string")
	}
	native, err := explicitVal.ConvertToNative(anyMapType)
	if err != nil {
		return types.NewErr("overlay: explicit paths: %v", err)
	}
	for path, value := range native.(map[string]any) {
		if value == true && pathUnder(path, prefix) {
			return types.True
		}
	}
	return types.False
}

var anySliceType = reflect.TypeOf([]any{})

func (e *celEvaluator) callBinding(nameVal, argsVal ref.Val) ref.Val {
	name, ok := nameVal.Value().(string)
	if !ok {
		return types.NewErr("overlay: call name must be string")
	}
	native, err := argsVal.ConvertToNative(anySliceType)
	if err != nil {
		return types.NewErr("overlay: call arguments: %v", err)
	}
	args, _ := native.([]any)
	for i, arg := range args {
		if val, ok := arg.(ref.Val); ok {
			args[i] = val.Value()
		}
	}
	result, err := e.registry.Call(name, args...)
	if err != nil {
		return types.NewErr("%v", err)
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
