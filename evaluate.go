package overlay

import (
	"errors"
	"time"
)

var ErrNoEvaluator = errors.New("overlay: evaluator not configured")

// Evaluate executes expr against the overlay snapshot. Every top-level key of
// the snapshot is bound as a variable. `explicit` maps explicit paths to true,
// and the isExplicit(path) and explicitUnder(prefix) helpers tell supplied
// values from defaults.
func (o *Overlay[T]) Evaluate(expr string) (Response[any], error) {
	return o.EvaluateWith(RuleContext{}, expr)
}

// EvaluateWith executes expr using ctx, filling the snapshot, explicit paths
// and scope from the overlay when ctx leaves them empty.
func (o *Overlay[T]) EvaluateWith(ctx RuleContext, expr string) (Response[any], error) {
	if expr == "" {
		return Response[any]{}, errEmptyExpression
	}
	evaluator, err := o.resolveEvaluator()
	if err != nil {
		return Response[any]{}, err
	}
	if ctx.Snapshot == nil {
		snapshot, err := o.Snapshot()
		if err != nil {
			return Response[any]{}, err
		}
		ctx.Snapshot = snapshot
	}
	if ctx.Explicit == nil {
		ctx.Explicit = make(map[string]bool)
		for _, path := range o.ExplicitPaths() {
			ctx.Explicit[path] = true
		}
	}
	ctx = ctx.withDefaults().withDefaultScope(o.cfg.scope)
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapEvaluationError(engine, expr, ctx.scopeLabel(), evalErr)
	o.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Scope:    ctx.scopeLabel(),
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return Response[any]{}, evalErr
	}
	return Response[any]{Value: value}, nil
}

func (o *Overlay[T]) resolveEvaluator() (Evaluator, error) {
	if o.cfg.evaluator != nil {
		return o.cfg.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if cache := o.cfg.programCache; cache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cache))
	}
	if registry := o.cfg.functions; registry != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(registry))
	}
	defaultEvaluator := NewExprEvaluator(exprOpts...)
	if defaultEvaluator == nil {
		return nil, ErrNoEvaluator
	}
	o.cfg.evaluator = defaultEvaluator
	return defaultEvaluator, nil
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	}
	if isJSEvaluator(e) {
		return "js"
	}
	return "custom"
}
