package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"

	"github.com/suporte-sac/zendesk-etl/internal/config"
	"github.com/suporte-sac/zendesk-etl/internal/models"
)

// DynamoDBStatusStore implements StatusStore using AWS DynamoDB, keyed on the
// entity name so each pipeline keeps exactly one "last run" record.
type DynamoDBStatusStore struct {
	client    *dynamodb.DynamoDB
	tableName string
}

// NewDynamoDBStatusStore creates a new DynamoDB status store instance.
func NewDynamoDBStatusStore(cfg config.StorageConfig) (*DynamoDBStatusStore, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	// For local testing with DynamoDB Local
	if cfg.DynamoEndpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.DynamoEndpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	store := &DynamoDBStatusStore{
		client:    dynamodb.New(sess),
		tableName: cfg.StatusTable,
	}

	// Create table if it doesn't exist (for local testing)
	if err := store.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure status table exists: %w", err)
	}

	return store, nil
}

// ensureTable creates the status table if it doesn't exist
func (d *DynamoDBStatusStore) ensureTable() error {
	_, err := d.client.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})

	if err == nil {
		return nil // Table already exists
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(d.tableName),
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("entity"),
				KeyType:       aws.String("HASH"),
			},
		},
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("entity"),
				AttributeType: aws.String("S"),
			},
		},
		BillingMode: aws.String("PAY_PER_REQUEST"),
	}

	if _, err := d.client.CreateTable(input); err != nil {
		return fmt.Errorf("failed to create status table: %w", err)
	}

	return d.client.WaitUntilTableExists(&dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
}

// PutRunStatus overwrites the entity's last-run record.
func (d *DynamoDBStatusStore) PutRunStatus(ctx context.Context, status models.RunStatus) error {
	item, err := dynamodbattribute.MarshalMap(status)
	if err != nil {
		return fmt.Errorf("failed to marshal run status: %w", err)
	}

	_, err = d.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store run status for %s: %w", status.Entity, err)
	}

	return nil
}

// GetRunStatus retrieves the entity's last-run record, or nil when the entity
// has never run.
func (d *DynamoDBStatusStore) GetRunStatus(ctx context.Context, entity string) (*models.RunStatus, error) {
	result, err := d.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"entity": {
				S: aws.String(entity),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get run status for %s: %w", entity, err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var status models.RunStatus
	if err := dynamodbattribute.UnmarshalMap(result.Item, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run status: %w", err)
	}

	return &status, nil
}

// Close closes the DynamoDB connection
func (d *DynamoDBStatusStore) Close() error {
	// DynamoDB client doesn't need explicit closing
	return nil
}
