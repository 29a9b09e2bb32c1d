// Package avp implements the decision service and policy registry on top of
// Amazon Verified Permissions.
package avp

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/verifiedpermissions"
	"github.com/aws/aws-sdk-go-v2/service/verifiedpermissions/types"
	"github.com/aws/smithy-go"

	"bookstore/internal/domain"
)

// API is the subset of the Verified Permissions client the adapter uses.
type API interface {
	IsAuthorized(ctx context.Context, in *verifiedpermissions.IsAuthorizedInput, optFns ...func(*verifiedpermissions.Options)) (*verifiedpermissions.IsAuthorizedOutput, error)
	BatchIsAuthorized(ctx context.Context, in *verifiedpermissions.BatchIsAuthorizedInput, optFns ...func(*verifiedpermissions.Options)) (*verifiedpermissions.BatchIsAuthorizedOutput, error)
	GetPolicy(ctx context.Context, in *verifiedpermissions.GetPolicyInput, optFns ...func(*verifiedpermissions.Options)) (*verifiedpermissions.GetPolicyOutput, error)
}

// Client evaluates queries against one policy store.
type Client struct {
	api     API
	storeID string
}

// New wraps an existing API client.
func New(api API, policyStoreID string) *Client {
	return &Client{api: api, storeID: policyStoreID}
}

// NewFromConfig builds a client from the default AWS credential chain.
// maxAttempts bounds the SDK retryer; zero keeps the SDK default.
func NewFromConfig(ctx context.Context, region, policyStoreID string, maxAttempts int) (*Client, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if maxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(maxAttempts))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return New(verifiedpermissions.NewFromConfig(cfg), policyStoreID), nil
}

// Evaluate sends q as a single IsAuthorized call.
func (c *Client) Evaluate(ctx context.Context, q domain.Query) (domain.DecisionResult, error) {
	entities := []types.EntityItem{userEntity(q.Principal, q.PrincipalAttrs)}
	if q.Resource.Owner != "" && !q.Resource.IsWildcard() {
		entities = append(entities, bookEntity(domain.ResourceOwner{ResourceID: q.Resource.ID, Owner: q.Resource.Owner}))
	}
	out, err := c.api.IsAuthorized(ctx, &verifiedpermissions.IsAuthorizedInput{
		PolicyStoreId: aws.String(c.storeID),
		Principal:     userID(q.Principal.Username),
		Action:        actionID(q.Action),
		Resource:      bookID(q.Resource.ID),
		Context:       contextMap(q.Context),
		Entities:      &types.EntitiesDefinitionMemberEntityList{Value: entities},
	})
	if err != nil {
		return domain.DecisionResult{}, serviceError("IsAuthorized", err)
	}
	return domain.DecisionResult{
		Decision: domain.ParseDecision(string(out.Decision)),
		PolicyID: firstPolicy(out.DeterminingPolicies),
	}, nil
}

// EvaluateBatch sends every query of b in one BatchIsAuthorized call. Results
// are matched to resources through the request echoed in each result.
func (c *Client) EvaluateBatch(ctx context.Context, b domain.BatchQuery) ([]domain.DecisionResult, error) {
	if len(b.Queries) == 0 {
		return []domain.DecisionResult{}, nil
	}

	entities := make([]types.EntityItem, 0, len(b.Owners)+1)
	entities = append(entities, userEntity(b.Principal, nil))
	for _, o := range b.Owners {
		entities = append(entities, bookEntity(o))
	}

	requests := make([]types.BatchIsAuthorizedInputItem, 0, len(b.Queries))
	for _, q := range b.Queries {
		requests = append(requests, types.BatchIsAuthorizedInputItem{
			Principal: userID(q.Principal.Username),
			Action:    actionID(q.Action),
			Resource:  bookID(q.Resource.ID),
			Context:   contextMap(q.Context),
		})
	}

	out, err := c.api.BatchIsAuthorized(ctx, &verifiedpermissions.BatchIsAuthorizedInput{
		PolicyStoreId: aws.String(c.storeID),
		Entities:      &types.EntitiesDefinitionMemberEntityList{Value: entities},
		Requests:      requests,
	})
	if err != nil {
		return nil, serviceError("BatchIsAuthorized", err)
	}

	results := make([]domain.DecisionResult, 0, len(out.Results))
	for _, r := range out.Results {
		res := domain.DecisionResult{
			Decision: domain.ParseDecision(string(r.Decision)),
			PolicyID: firstPolicy(r.DeterminingPolicies),
		}
		if r.Request != nil && r.Request.Resource != nil {
			res.Resource = aws.ToString(r.Request.Resource.EntityId)
		}
		results = append(results, res)
	}
	return results, nil
}

// DescribePolicy returns the description of a static policy. Unknown
// policies and template-linked policies have no description.
func (c *Client) DescribePolicy(ctx context.Context, policyID string) (string, bool, error) {
	out, err := c.api.GetPolicy(ctx, &verifiedpermissions.GetPolicyInput{
		PolicyStoreId: aws.String(c.storeID),
		PolicyId:      aws.String(policyID),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", false, nil
		}
		return "", false, serviceError("GetPolicy", err)
	}

	static, ok := out.Definition.(*types.PolicyDefinitionDetailMemberStatic)
	if !ok || static.Value.Description == nil {
		return "", false, nil
	}
	return aws.ToString(static.Value.Description), true, nil
}

func serviceError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("verified permissions %s: %w: %s: %s", op, domain.ErrServiceUnavailable, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return fmt.Errorf("verified permissions %s: %w: %v", op, domain.ErrServiceUnavailable, err)
}

func firstPolicy(items []types.DeterminingPolicyItem) string {
	if len(items) == 0 {
		return ""
	}
	return aws.ToString(items[0].PolicyId)
}
