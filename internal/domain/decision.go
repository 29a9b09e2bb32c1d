package domain

// Action is the operation a query asks about.
type Action int

const (
	ActionView Action = iota
	ActionViewWithPremiumOffers
)

func (a Action) String() string {
	if a == ActionViewWithPremiumOffers {
		return "ViewWithPremiumOffers"
	}
	return "View"
}

// WildcardResource is the resource id meaning "every catalog item".
const WildcardResource = "*"

// Resource names either one catalog item or, with WildcardResource, all of them.
// Owner, when set, is declared to the decision service as the item's owner.
type Resource struct {
	ID    string
	Owner string
}

// AllResources is the wildcard resource.
var AllResources = Resource{ID: WildcardResource}

// IsWildcard reports whether r stands for the whole catalog.
func (r Resource) IsWildcard() bool {
	return r.ID == WildcardResource
}

// Context attribute keys.
const (
	ContextRegion = "region"
)

// Principal attribute keys.
const (
	AttrYearsAsMember = "yearsAsMember"
)

// Query is a single authorization question for the decision service.
// PrincipalAttrs carries typed principal attributes; tenure is an int so
// policies can compare it numerically.
type Query struct {
	Principal      Identity
	PrincipalAttrs map[string]int
	Action         Action
	Resource       Resource
	Context        map[string]string
}

// BatchQuery is one batched evaluation: the entity graph declaring who owns
// each resource, plus one query per resource.
type BatchQuery struct {
	Principal Identity
	Owners    []ResourceOwner
	Queries   []Query
}

// Decision is the verdict returned by the decision service.
type Decision int

const (
	// DecisionNone means the response carried no decision at all.
	DecisionNone Decision = iota
	DecisionAllow
	DecisionDeny
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "ALLOW"
	case DecisionDeny:
		return "DENY"
	default:
		return "none"
	}
}

// ParseDecision maps a wire decision to a Decision.
func ParseDecision(s string) Decision {
	switch s {
	case "ALLOW":
		return DecisionAllow
	case "DENY":
		return DecisionDeny
	default:
		return DecisionNone
	}
}

// DecisionResult is one verdict. PolicyID is the determining policy, empty when
// the service cited none. Resource is set for batch results only and names the
// resource the verdict belongs to.
type DecisionResult struct {
	Decision Decision
	PolicyID string
	Resource string
}

// RuleKind is the semantic meaning of a determining policy.
type RuleKind int

const (
	RuleNone RuleKind = iota
	RulePublishersView
	RulePublisherAccessToSpecificBook
	RulePremiumOffersAllowed
	RulePremiumOffersDenied
)

func (k RuleKind) String() string {
	switch k {
	case RulePublishersView:
		return "publishers_view"
	case RulePublisherAccessToSpecificBook:
		return "publisher_access_to_specific_book"
	case RulePremiumOffersAllowed:
		return "premium_offers_allowed"
	case RulePremiumOffersDenied:
		return "premium_offers_denied"
	default:
		return "none"
	}
}
