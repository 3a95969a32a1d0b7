package overlay

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr evaluator.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// exprEvaluator runs rules with github.com/expr-lang/expr. Programs are
// compiled against the helper signatures and run against the snapshot, so one
// program serves every document.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if err := requireExpression("expr", expression); err != nil {
		return nil, err
	}
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	return ruleFunc(func(ctx RuleContext) (any, error) {
		result, err := exprlang.Run(program, e.registry.bind(ctx.helpers(ctx.bindings())))
		if err != nil {
			return nil, wrapEvaluationError("expr", expression, ctx.scopeLabel(), err)
		}
		return result, nil
	}), nil
}

func (e *exprEvaluator) program(expression string) (*exprvm.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	program, err := exprlang.Compile(expression, e.compileOptions()...)
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

// compileOptions declares the helper signatures with typed nil values; the
// run step supplies the functions bound to the rule context.
func (e *exprEvaluator) compileOptions() []exprlang.Option {
	env := map[string]any{
		helperIsExplicit:    (func(string) bool)(nil),
		helperExplicitUnder: (func(string) bool)(nil),
	}
	var functions []exprlang.Option
	if e.registry != nil {
		env[bindingCall] = (func(string, ...any) (any, error))(nil)
		for _, name := range e.registry.Names() {
			if reservedBindings[name] {
				continue
			}
			functions = append(functions, exprlang.Function(name, e.registry.caller(name)))
		}
	}
	return append([]exprlang.Option{
		exprlang.Env(env),
		exprlang.AllowUndefinedVariables(),
	}, functions...)
}
