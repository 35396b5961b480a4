package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"ddbstream/domain/changelog"
)

// DynamoDBAPI is the part of *dynamodb.Client the store uses.
type DynamoDBAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// ItemStore resolves and writes items in a DynamoDB table keyed by a
// string attribute.
type ItemStore struct {
	api       DynamoDBAPI
	table     string
	keyAttr   string
	valueAttr string
}

func NewItemStore(api DynamoDBAPI, table, keyAttr, valueAttr string) *ItemStore {
	return &ItemStore{api: api, table: table, keyAttr: keyAttr, valueAttr: valueAttr}
}

var errIDNotString = errors.New("key attribute missing or not a string")

// GetItem queries the partition for key and projects the last item
// returned.
func (s *ItemStore) GetItem(ctx context.Context, key string) (changelog.Item, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("#k = :k"),
		ExpressionAttributeNames: map[string]string{
			"#k": s.keyAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k": &types.AttributeValueMemberS{Value: key},
		},
		Select: types.SelectAllAttributes,
	})
	if err != nil {
		return changelog.Item{}, connectivity("dynamodb query", err)
	}
	if len(out.Items) == 0 {
		return changelog.Item{}, changelog.Lookup("dynamodb query", fmt.Errorf("%w: %q", changelog.ErrNotFound, key))
	}
	return s.project(out.Items[len(out.Items)-1])
}

// project maps a raw item onto changelog.Item. Value is absent when the
// attribute is missing or not numeric.
func (s *ItemStore) project(raw map[string]types.AttributeValue) (changelog.Item, error) {
	id, ok := raw[s.keyAttr].(*types.AttributeValueMemberS)
	if !ok {
		return changelog.Item{}, changelog.Parse("project item", fmt.Errorf("%w: %q", errIDNotString, s.keyAttr))
	}

	item := changelog.Item{ID: id.Value}
	if n, ok := raw[s.valueAttr].(*types.AttributeValueMemberN); ok {
		var v float64
		if err := attributevalue.Unmarshal(n, &v); err == nil {
			item.Value = &v
		}
	}
	return item, nil
}

// PutItem writes item, replacing any existing one with the same key.
func (s *ItemStore) PutItem(ctx context.Context, item changelog.Item) error {
	doc := map[string]any{s.keyAttr: item.ID}
	if item.Value != nil {
		doc[s.valueAttr] = *item.Value
	}

	av, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return changelog.Parse("encode item", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return connectivity("dynamodb put item", err)
	}
	return nil
}
