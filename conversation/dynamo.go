package conversation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamoAPI is the minimal DynamoDB surface required by DynamoStore.
// Defined here for testability.
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore implements Store against a DynamoDB table with partition key
// phoneNumber and sort key conversationId.
type DynamoStore struct {
	api       dynamoAPI
	tableName string
}

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(api dynamoAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("conversation: dynamo api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("conversation: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName}, nil
}

func recordKey(phoneNumber, conversationID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"phoneNumber":    &types.AttributeValueMemberS{Value: phoneNumber},
		"conversationId": &types.AttributeValueMemberS{Value: conversationID},
	}
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// Create writes the record with a conditional put so a redelivered booking
// cannot overwrite an existing conversation.
func (s *DynamoStore) Create(ctx context.Context, record *Record) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("conversation: Create marshal: %w", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(phoneNumber) AND attribute_not_exists(conversationId)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("conversation: Create: %w", err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, phoneNumber, conversationID string) (*Record, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            recordKey(phoneNumber, conversationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: Get: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	record := &Record{}
	if err := attributevalue.UnmarshalMap(out.Item, record); err != nil {
		return nil, fmt.Errorf("conversation: Get unmarshal: %w", err)
	}
	return record, nil
}

// Latest reads the newest conversation for a phone number. Conversation ids
// sort by time, so newest-first with limit 1 is a plain descending query.
func (s *DynamoStore) Latest(ctx context.Context, phoneNumber string) (*Record, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("phoneNumber = :phone"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":phone": &types.AttributeValueMemberS{Value: phoneNumber},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
		ConsistentRead:   aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: Latest query: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}

	record := &Record{}
	if err := attributevalue.UnmarshalMap(out.Items[0], record); err != nil {
		return nil, fmt.Errorf("conversation: Latest unmarshal: %w", err)
	}
	return record, nil
}

func (s *DynamoStore) MarkInitialSent(ctx context.Context, phoneNumber, conversationID string, at time.Time) error {
	ts := at.UTC().Format(time.RFC3339)
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              recordKey(phoneNumber, conversationID),
		UpdateExpression: aws.String("SET initialMessageSent = :sent, initialMessageSentAt = :at, updatedAt = :at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sent": &types.AttributeValueMemberBOOL{Value: true},
			":at":   &types.AttributeValueMemberS{Value: ts},
		},
	})
	if err != nil {
		return fmt.Errorf("conversation: MarkInitialSent: %w", err)
	}
	return nil
}

// ClaimFollowUp is the conditional write that closes the timer-vs-reply
// race. It only succeeds while the record is still waiting on the client.
func (s *DynamoStore) ClaimFollowUp(ctx context.Context, phoneNumber, conversationID string, at time.Time) error {
	ts := at.UTC().Format(time.RFC3339)
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key:       recordKey(phoneNumber, conversationID),
		UpdateExpression: aws.String(
			"SET followUpMessageSent = :sent, followUpMessageSentAt = :at, #status = :followUpSent, updatedAt = :at"),
		ConditionExpression: aws.String(
			"clientResponded = :notResponded AND followUpMessageSent = :notSent AND #status IN (:awaiting, :initial, :scheduled)"),
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sent":         &types.AttributeValueMemberBOOL{Value: true},
			":notSent":      &types.AttributeValueMemberBOOL{Value: false},
			":notResponded": &types.AttributeValueMemberBOOL{Value: false},
			":at":           &types.AttributeValueMemberS{Value: ts},
			":followUpSent": &types.AttributeValueMemberS{Value: string(StatusFollowUpSent)},
			":awaiting":     &types.AttributeValueMemberS{Value: string(StatusAwaitingResponse)},
			":initial":      &types.AttributeValueMemberS{Value: string(StatusInitialSent)},
			":scheduled":    &types.AttributeValueMemberS{Value: string(StatusFollowUpScheduled)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("conversation: ClaimFollowUp: %w", err)
	}
	return nil
}

// ReleaseFollowUp reverts a claim whose SMS send failed. The record drops
// back to AWAITING_RESPONSE; every status the claim accepts gates the
// follow-up identically, so the retry path is unaffected by the collapse.
func (s *DynamoStore) ReleaseFollowUp(ctx context.Context, phoneNumber, conversationID string) error {
	ts := time.Now().UTC().Format(time.RFC3339)
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key:       recordKey(phoneNumber, conversationID),
		UpdateExpression: aws.String(
			"SET followUpMessageSent = :notSent, #status = :awaiting, updatedAt = :at REMOVE followUpMessageSentAt"),
		ConditionExpression:      aws.String("clientResponded = :notResponded"),
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":notSent":      &types.AttributeValueMemberBOOL{Value: false},
			":notResponded": &types.AttributeValueMemberBOOL{Value: false},
			":awaiting":     &types.AttributeValueMemberS{Value: string(StatusAwaitingResponse)},
			":at":           &types.AttributeValueMemberS{Value: ts},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("conversation: ReleaseFollowUp: %w", err)
	}
	return nil
}

func (s *DynamoStore) MarkResponded(ctx context.Context, phoneNumber, conversationID string, at time.Time, responseText string) error {
	ts := at.UTC().Format(time.RFC3339)
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key:       recordKey(phoneNumber, conversationID),
		UpdateExpression: aws.String(
			"SET clientResponded = :responded, clientResponseAt = :at, clientResponseText = :text, #status = :clientResponded, updatedAt = :at"),
		ConditionExpression:      aws.String("clientResponded = :notResponded AND #status <> :completed"),
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":responded":       &types.AttributeValueMemberBOOL{Value: true},
			":notResponded":    &types.AttributeValueMemberBOOL{Value: false},
			":at":              &types.AttributeValueMemberS{Value: ts},
			":text":            &types.AttributeValueMemberS{Value: responseText},
			":clientResponded": &types.AttributeValueMemberS{Value: string(StatusClientResponded)},
			":completed":       &types.AttributeValueMemberS{Value: string(StatusCompleted)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("conversation: MarkResponded: %w", err)
	}
	return nil
}

// AppendAdminReply appends to the adminReplies list without touching status
// or any automated flag.
func (s *DynamoStore) AppendAdminReply(ctx context.Context, phoneNumber, conversationID string, reply AdminReply) error {
	replyAttr, err := attributevalue.Marshal(reply)
	if err != nil {
		return fmt.Errorf("conversation: AppendAdminReply marshal: %w", err)
	}

	_, err = s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key:       recordKey(phoneNumber, conversationID),
		UpdateExpression: aws.String(
			"SET adminReplies = list_append(if_not_exists(adminReplies, :empty), :reply), updatedAt = :at"),
		ConditionExpression: aws.String("attribute_exists(phoneNumber)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":reply": &types.AttributeValueMemberL{Value: []types.AttributeValue{replyAttr}},
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":at":    &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("conversation: AppendAdminReply: %w", err)
	}
	return nil
}

// List scans the table page by page. The cursor is the base64-encoded
// primary key of the last record on the previous page.
func (s *DynamoStore) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	in := &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	}
	if opts.Limit > 0 {
		in.Limit = aws.Int32(opts.Limit)
	}
	if opts.Status != "" {
		in.FilterExpression = aws.String("#status = :status")
		in.ExpressionAttributeNames = map[string]string{"#status": "status"}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(opts.Status)},
		}
	}
	if opts.Cursor != "" {
		startKey, err := decodeCursor(opts.Cursor)
		if err != nil {
			return nil, fmt.Errorf("conversation: List cursor: %w", err)
		}
		in.ExclusiveStartKey = startKey
	}

	out, err := s.api.Scan(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("conversation: List scan: %w", err)
	}

	result := &ListResult{Records: make([]Record, 0, len(out.Items))}
	for _, item := range out.Items {
		record := Record{}
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			return nil, fmt.Errorf("conversation: List unmarshal: %w", err)
		}
		result.Records = append(result.Records, record)
	}
	if len(out.LastEvaluatedKey) > 0 {
		cursor, err := encodeCursor(out.LastEvaluatedKey)
		if err != nil {
			return nil, fmt.Errorf("conversation: List cursor: %w", err)
		}
		result.NextCursor = cursor
	}
	return result, nil
}

type cursorKey struct {
	PhoneNumber    string `json:"p"`
	ConversationID string `json:"c"`
}

func encodeCursor(key map[string]types.AttributeValue) (string, error) {
	ck := cursorKey{}
	if v, ok := key["phoneNumber"].(*types.AttributeValueMemberS); ok {
		ck.PhoneNumber = v.Value
	}
	if v, ok := key["conversationId"].(*types.AttributeValueMemberS); ok {
		ck.ConversationID = v.Value
	}
	raw, err := json.Marshal(ck)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, err
	}
	ck := cursorKey{}
	if err := json.Unmarshal(raw, &ck); err != nil {
		return nil, err
	}
	return recordKey(ck.PhoneNumber, ck.ConversationID), nil
}
