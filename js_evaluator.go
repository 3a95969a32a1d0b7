//go:build js_eval

package overlay

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	jsEvaluatorConfig
}

// NewJSEvaluator constructs an Evaluator backed by goja. Every evaluation
// gets a fresh runtime holding the rule bindings, the explicitness helpers
// and the registered functions.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	return &jsEvaluator{applyJSEvaluatorOptions(opts)}
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if err := requireExpression("js", expression); err != nil {
		return nil, err
	}
	program, err := e.program(expression)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, "", err)
	}
	return ruleFunc(func(ctx RuleContext) (any, error) {
		vm := goja.New()
		for name, value := range e.registry.bind(ctx.helpers(ctx.bindings())) {
			if err := vm.Set(name, value); err != nil {
				return nil, wrapEvaluationError("js", expression, ctx.scopeLabel(), err)
			}
		}
		value, err := vm.RunProgram(program)
		if err != nil {
			return nil, wrapEvaluationError("js", expression, ctx.scopeLabel(), err)
		}
		return value.Export(), nil
	}), nil
}

func (e *jsEvaluator) program(expression string) (*goja.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", fmt.Sprintf("(function(){ return (%s); })()", expression), false)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

// JSEvaluatorAvailable reports whether the binary was built with js_eval.
func JSEvaluatorAvailable() bool {
	return true
}

func isJSEvaluator(e Evaluator) bool {
	_, ok := e.(*jsEvaluator)
	return ok
}
