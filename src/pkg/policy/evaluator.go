package policy

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/open-policy-agent/opa/rego"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "policy")

const (
	// Query is the rule every sudo policy module must define.
	Query = "data.cargo_container.sudo.deny"

	defaultPolicyName = "default.rego"
)

//go:embed default.rego
var defaultPolicy string

var (
	// ErrDenied indicates the privileged script violates the policy.
	ErrDenied = errors.New("privileged script denied by policy")
)

// Input is the document a policy is evaluated against.
type Input struct {
	Commands []string `json:"commands"`
	Packages []string `json:"packages"`
	OS       string   `json:"os"`
}

// Evaluator gates privileged scripts through a rego policy. An empty policy
// path selects the embedded default policy.
type Evaluator struct {
	policyPath string
	prepared   *rego.PreparedEvalQuery
}

func NewEvaluator(policyPath string) *Evaluator {
	return &Evaluator{policyPath: policyPath}
}

// LoadAndValidate reads and compiles the policy.
func (e *Evaluator) LoadAndValidate(ctx context.Context) error {
	name, src := defaultPolicyName, defaultPolicy
	if e.policyPath != "" {
		data, err := os.ReadFile(e.policyPath)
		if err != nil {
			return fmt.Errorf("failed to read sudo policy: %w", err)
		}
		name, src = e.policyPath, string(data)
	}

	pq, err := rego.New(
		rego.Query(Query),
		rego.Module(name, src),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to compile sudo policy %s: %w", name, err)
	}
	e.prepared = &pq
	logger.WithField("policy", name).Debug("Loaded sudo policy")
	return nil
}

// Evaluate returns the policy's deny messages for input, sorted.
func (e *Evaluator) Evaluate(ctx context.Context, input Input) ([]string, error) {
	if e.prepared == nil {
		if err := e.LoadAndValidate(ctx); err != nil {
			return nil, err
		}
	}

	rs, err := e.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate sudo policy: %w", err)
	}

	var msgs []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			values, ok := expr.Value.([]interface{})
			if !ok {
				return nil, fmt.Errorf("sudo policy: %s must be a set of strings, got %T", Query, expr.Value)
			}
			for _, v := range values {
				msgs = append(msgs, fmt.Sprint(v))
			}
		}
	}
	sort.Strings(msgs)
	return msgs, nil
}

// Check evaluates input and wraps ErrDenied with every violation.
func (e *Evaluator) Check(ctx context.Context, input Input) error {
	msgs, err := e.Evaluate(ctx, input)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	for _, msg := range msgs {
		logger.WithField("violation", msg).Error("Sudo policy violation")
	}
	return fmt.Errorf("%w: %v", ErrDenied, msgs)
}
