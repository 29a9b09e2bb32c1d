package avp

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/verifiedpermissions/types"

	"bookstore/internal/domain"
)

func userID(username string) *types.EntityIdentifier {
	return &types.EntityIdentifier{
		EntityType: aws.String(domain.EntityTypeUser),
		EntityId:   aws.String(username),
	}
}

func bookID(id string) *types.EntityIdentifier {
	return &types.EntityIdentifier{
		EntityType: aws.String(domain.EntityTypeBook),
		EntityId:   aws.String(id),
	}
}

func actionID(a domain.Action) *types.ActionIdentifier {
	return &types.ActionIdentifier{
		ActionType: aws.String(domain.EntityTypeAction),
		ActionId:   aws.String(a.String()),
	}
}

// userEntity declares the caller as a member of their role, with any typed
// attributes the query carries.
func userEntity(id domain.Identity, attrs map[string]int) types.EntityItem {
	values := make(map[string]types.AttributeValue, len(attrs))
	for k, v := range attrs {
		values[k] = &types.AttributeValueMemberLong{Value: int64(v)}
	}
	return types.EntityItem{
		Identifier: userID(id.Username),
		Attributes: values,
		Parents: []types.EntityIdentifier{{
			EntityType: aws.String(domain.EntityTypeRole),
			EntityId:   aws.String(id.Role.String()),
		}},
	}
}

func bookEntity(o domain.ResourceOwner) types.EntityItem {
	return types.EntityItem{
		Identifier: bookID(o.ResourceID),
		Attributes: map[string]types.AttributeValue{
			domain.AttrOwner: &types.AttributeValueMemberEntityIdentifier{Value: *userID(o.Owner)},
		},
		Parents: []types.EntityIdentifier{},
	}
}

func contextMap(ctx map[string]string) types.ContextDefinition {
	values := make(map[string]types.AttributeValue, len(ctx))
	for k, v := range ctx {
		values[k] = &types.AttributeValueMemberString{Value: v}
	}
	return &types.ContextDefinitionMemberContextMap{Value: values}
}
