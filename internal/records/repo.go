// Package records provides the repository for client and order records
// stored in a single DynamoDB table.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mzieba/client-manager/internal/models"
)

// IDIndex is the GSI projecting records by their id attribute. The worker
// locates clients through it instead of a direct key read so a change in key
// shape cannot strand enrichment jobs.
const IDIndex = "id-index"

const clientProfileSK = "PROFILE"

var (
	// ErrNotFound is returned when no record matches the given id.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a conditional write loses a race.
	ErrVersionConflict = errors.New("record version conflict")
)

// API is the subset of the DynamoDB client used by the repository.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Repo wraps a DynamoDB client and table name for record operations.
type Repo struct {
	DB    API
	Table string
}

// MakeClientKeys constructs the partition and sort key for a client record.
func MakeClientKeys(id string) (pk, sk string) {
	return fmt.Sprintf("CLIENT#%s", id), clientProfileSK
}

// MakeOrderKeys constructs the partition and sort key for an order record.
func MakeOrderKeys(id string) (pk, sk string) {
	return fmt.Sprintf("ORDER#%s", id), "ORDER"
}

// NowISO returns the current time in ISO8601 format.
func NowISO() string { return time.Now().UTC().Format(time.RFC3339) }

// CreateClient inserts a new client record, ensuring no duplicate exists.
func (r *Repo) CreateClient(ctx context.Context, c models.Client) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate client: %w", err)
	}
	c.PK, c.SK = MakeClientKeys(c.ID)
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return err
	}
	_, err = r.DB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.Table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("client %s: %w", c.ID, ErrVersionConflict)
	}
	return err
}

// GetClient reads a client record by id via a direct key lookup.
func (r *Repo) GetClient(ctx context.Context, id string) (*models.Client, error) {
	pk, sk := MakeClientKeys(id)
	out, err := r.DB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.Table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	var c models.Client
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindClientByID locates a client record by its id attribute through the id
// GSI rather than a key read.
func (r *Repo) FindClientByID(ctx context.Context, id string) (*models.Client, error) {
	out, err := r.DB.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.Table),
		IndexName:              aws.String(IDIndex),
		KeyConditionExpression: aws.String("id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: id},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	var c models.Client
	if err := attributevalue.UnmarshalMap(out.Items[0], &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ReplaceClient writes the full record back, conditioned on the stored version
// matching expectedVersion. The written record carries expectedVersion+1.
func (r *Repo) ReplaceClient(ctx context.Context, c models.Client, expectedVersion int64) error {
	c.Version = expectedVersion + 1
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate client: %w", err)
	}
	c.PK, c.SK = MakeClientKeys(c.ID)
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return err
	}
	_, err = r.DB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.Table),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(PK) AND version = :v"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expectedVersion)},
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("client %s: %w", c.ID, ErrVersionConflict)
	}
	return err
}

// DeleteClient removes a client record.
func (r *Repo) DeleteClient(ctx context.Context, id string) error {
	pk, sk := MakeClientKeys(id)
	_, err := r.DB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.Table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	return err
}

// scanBySK pages through the table collecting items whose SK matches sk,
// until limit matching items are gathered or the table is exhausted. A Scan
// Limit would cap items before the filter runs, so the cap is applied here,
// on matches.
func (r *Repo) scanBySK(ctx context.Context, sk string, limit int32) ([]map[string]types.AttributeValue, error) {
	items := make([]map[string]types.AttributeValue, 0, limit)
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.DB.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(r.Table),
			FilterExpression: aws.String("SK = :sk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":sk": &types.AttributeValueMemberS{Value: sk},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			items = append(items, item)
			if int32(len(items)) >= limit {
				return items, nil
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// ListClients returns up to limit client records, following scan pagination
// so records beyond the first page are not dropped.
func (r *Repo) ListClients(ctx context.Context, limit int32) ([]models.Client, error) {
	items, err := r.scanBySK(ctx, clientProfileSK, limit)
	if err != nil {
		return nil, err
	}
	clients := make([]models.Client, 0, len(items))
	for _, item := range items {
		var c models.Client
		if err := attributevalue.UnmarshalMap(item, &c); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, nil
}

// CreateOrder inserts a new order record.
func (r *Repo) CreateOrder(ctx context.Context, o models.Order) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("validate order: %w", err)
	}
	o.PK, o.SK = MakeOrderKeys(o.ID)
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return err
	}
	_, err = r.DB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.Table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	return err
}

// ListOrders returns up to limit order records, following scan pagination.
func (r *Repo) ListOrders(ctx context.Context, limit int32) ([]models.Order, error) {
	items, err := r.scanBySK(ctx, "ORDER", limit)
	if err != nil {
		return nil, err
	}
	orders := make([]models.Order, 0, len(items))
	for _, item := range items {
		var o models.Order
		if err := attributevalue.UnmarshalMap(item, &o); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func isConditionFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	return errors.As(err, &cfe)
}
