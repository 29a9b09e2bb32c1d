// Package cedarlocal evaluates the bookstore's Cedar policies in process. It
// answers the same questions as the hosted policy store, from a YAML file, so
// the service can run without AWS.
package cedarlocal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/cedar-policy/cedar-go"
	"gopkg.in/yaml.v3"

	"bookstore/internal/domain"
)

// PolicyDoc is one policy of the store file.
type PolicyDoc struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Statement   string `yaml:"statement"`
}

type storeFile struct {
	Policies []PolicyDoc `yaml:"policies"`
}

// Engine implements the decision service and the policy registry.
type Engine struct {
	policies *cedar.PolicySet
	descs    map[string]string
	order    map[cedar.PolicyID]int
	logger   *slog.Logger
}

// Load reads a policy store file.
func Load(path string, logger *slog.Logger) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy store: %w", err)
	}
	return Parse(data, logger)
}

// Parse builds an engine from policy store YAML.
func Parse(data []byte, logger *slog.Logger) (*Engine, error) {
	var f storeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding policy store: %w", err)
	}
	return New(f.Policies, logger)
}

// New compiles docs. Policy ids must be unique and every statement must hold
// exactly one Cedar policy.
func New(docs []PolicyDoc, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(docs) == 0 {
		return nil, errors.New("policy store has no policies")
	}

	e := &Engine{
		policies: cedar.NewPolicySet(),
		descs:    make(map[string]string, len(docs)),
		order:    make(map[cedar.PolicyID]int, len(docs)),
		logger:   logger,
	}
	for i, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("policy %d: missing id", i)
		}
		if _, dup := e.descs[d.ID]; dup {
			return nil, fmt.Errorf("policy %q: duplicate id", d.ID)
		}
		var p cedar.Policy
		if err := p.UnmarshalCedar([]byte(d.Statement)); err != nil {
			return nil, fmt.Errorf("policy %q: %w", d.ID, err)
		}
		e.policies.Add(cedar.PolicyID(d.ID), &p)
		e.descs[d.ID] = d.Description
		e.order[cedar.PolicyID(d.ID)] = i
	}
	return e, nil
}

// Evaluate answers a single query.
func (e *Engine) Evaluate(ctx context.Context, q domain.Query) (domain.DecisionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.DecisionResult{}, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	entities := cedar.EntityMap{}
	addUser(entities, q.Principal, q.PrincipalAttrs)
	if q.Resource.Owner != "" && !q.Resource.IsWildcard() {
		addBook(entities, domain.ResourceOwner{ResourceID: q.Resource.ID, Owner: q.Resource.Owner})
	}
	return e.authorize(entities, q), nil
}

// EvaluateBatch answers every query against one shared entity graph.
func (e *Engine) EvaluateBatch(ctx context.Context, b domain.BatchQuery) ([]domain.DecisionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	entities := cedar.EntityMap{}
	addUser(entities, b.Principal, nil)
	for _, o := range b.Owners {
		addBook(entities, o)
	}

	results := make([]domain.DecisionResult, 0, len(b.Queries))
	for _, q := range b.Queries {
		res := e.authorize(entities, q)
		res.Resource = q.Resource.ID
		results = append(results, res)
	}
	return results, nil
}

// DescribePolicy returns the description recorded for policyID.
func (e *Engine) DescribePolicy(_ context.Context, policyID string) (string, bool, error) {
	d, ok := e.descs[policyID]
	if !ok || d == "" {
		return "", false, nil
	}
	return d, true, nil
}

func (e *Engine) authorize(entities cedar.EntityMap, q domain.Query) domain.DecisionResult {
	req := cedar.Request{
		Principal: userUID(q.Principal.Username),
		Action:    cedar.NewEntityUID(cedar.EntityType(domain.EntityTypeAction), cedar.String(q.Action.String())),
		Resource:  bookUID(q.Resource.ID),
		Context:   contextRecord(q.Context),
	}

	decision, diag := cedar.Authorize(e.policies, entities, req)
	for _, de := range diag.Errors {
		e.logger.Debug("policy evaluation error", "policy_id", string(de.PolicyID), "error", de.Message)
	}

	res := domain.DecisionResult{Decision: domain.DecisionDeny, PolicyID: e.determining(diag)}
	if decision == cedar.Allow {
		res.Decision = domain.DecisionAllow
	}
	return res
}

// determining picks the first determining policy in store file order, so the
// answer does not depend on policy set iteration order.
func (e *Engine) determining(diag cedar.Diagnostic) string {
	best, bestPos := "", -1
	for _, r := range diag.Reasons {
		pos := e.order[r.PolicyID]
		if bestPos == -1 || pos < bestPos {
			best, bestPos = string(r.PolicyID), pos
		}
	}
	return best
}

func addUser(entities cedar.EntityMap, id domain.Identity, attrs map[string]int) {
	rec := cedar.RecordMap{}
	for k, v := range attrs {
		rec[cedar.String(k)] = cedar.Long(v)
	}
	role := cedar.NewEntityUID(cedar.EntityType(domain.EntityTypeRole), cedar.String(id.Role.String()))
	uid := userUID(id.Username)
	entities[uid] = cedar.Entity{
		UID:        uid,
		Parents:    cedar.NewEntityUIDSet(role),
		Attributes: cedar.NewRecord(rec),
	}
	entities[role] = cedar.Entity{
		UID:        role,
		Parents:    cedar.NewEntityUIDSet(),
		Attributes: cedar.NewRecord(nil),
	}
}

func addBook(entities cedar.EntityMap, o domain.ResourceOwner) {
	uid := bookUID(o.ResourceID)
	entities[uid] = cedar.Entity{
		UID:        uid,
		Parents:    cedar.NewEntityUIDSet(),
		Attributes: cedar.NewRecord(cedar.RecordMap{cedar.String(domain.AttrOwner): userUID(o.Owner)}),
	}
}

func userUID(username string) cedar.EntityUID {
	return cedar.NewEntityUID(cedar.EntityType(domain.EntityTypeUser), cedar.String(username))
}

func bookUID(id string) cedar.EntityUID {
	return cedar.NewEntityUID(cedar.EntityType(domain.EntityTypeBook), cedar.String(id))
}

func contextRecord(ctx map[string]string) cedar.Record {
	rec := make(cedar.RecordMap, len(ctx))
	for k, v := range ctx {
		rec[cedar.String(k)] = cedar.String(v)
	}
	return cedar.NewRecord(rec)
}
