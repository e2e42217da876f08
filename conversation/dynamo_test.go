package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	getOut      *dynamodb.GetItemOutput
	getErr      error
	putErr      error
	updateErr   error
	queryOut    *dynamodb.QueryOutput
	queryErr    error
	scanOut     *dynamodb.ScanOutput
	scanErr     error
	lastGetIn   *dynamodb.GetItemInput
	lastPutIn   *dynamodb.PutItemInput
	lastUpdate  *dynamodb.UpdateItemInput
	lastQueryIn *dynamodb.QueryInput
	lastScanIn  *dynamodb.ScanInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetIn = in
	if f.getOut == nil {
		return &dynamodb.GetItemOutput{}, f.getErr
	}
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutIn = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdate = in
	return &dynamodb.UpdateItemOutput{}, f.updateErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQueryIn = in
	if f.queryOut == nil {
		return &dynamodb.QueryOutput{}, f.queryErr
	}
	return f.queryOut, f.queryErr
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.lastScanIn = in
	if f.scanOut == nil {
		return &dynamodb.ScanOutput{}, f.scanErr
	}
	return f.scanOut, f.scanErr
}

func mustNewStore(t *testing.T, db *fakeDynamo) *DynamoStore {
	t.Helper()
	s, err := NewDynamoStore(db, "conversations-test")
	require.NoError(t, err)
	return s
}

func testRecordItem(phone, id string, status Status) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"phoneNumber":         &types.AttributeValueMemberS{Value: phone},
		"conversationId":      &types.AttributeValueMemberS{Value: id},
		"clientName":          &types.AttributeValueMemberS{Value: "John Doe"},
		"status":              &types.AttributeValueMemberS{Value: string(status)},
		"initialMessageSent":  &types.AttributeValueMemberBOOL{Value: true},
		"followUpMessageSent": &types.AttributeValueMemberBOOL{Value: false},
		"clientResponded":     &types.AttributeValueMemberBOOL{Value: false},
	}
}

func TestNewDynamoStore_Validation(t *testing.T) {
	_, err := NewDynamoStore(nil, "table")
	require.Error(t, err)

	_, err = NewDynamoStore(&fakeDynamo{}, "  ")
	require.Error(t, err)
}

func TestCreate_ConditionalPut(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewStore(t, db)

	record := &Record{
		PhoneNumber:    "+12345678900",
		ConversationID: "2026-08-30T12:00:00Z#EVT123",
		Status:         StatusAwaitingResponse,
	}
	require.NoError(t, s.Create(context.Background(), record))
	require.NotNil(t, db.lastPutIn)
	require.Contains(t, *db.lastPutIn.ConditionExpression, "attribute_not_exists(phoneNumber)")
	require.Contains(t, *db.lastPutIn.ConditionExpression, "attribute_not_exists(conversationId)")
}

func TestCreate_Duplicate(t *testing.T) {
	db := &fakeDynamo{putErr: &types.ConditionalCheckFailedException{}}
	s := mustNewStore(t, db)

	err := s.Create(context.Background(), &Record{PhoneNumber: "+12345678900", ConversationID: "c1"})
	require.ErrorIs(t, err, ErrDuplicateConversation)
}

func TestGet_NotFound(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	s := mustNewStore(t, db)

	record, err := s.Get(context.Background(), "+12345678900", "c1")
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestGet_HappyPath(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{
		Item: testRecordItem("+12345678900", "c1", StatusAwaitingResponse),
	}}
	s := mustNewStore(t, db)

	record, err := s.Get(context.Background(), "+12345678900", "c1")
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "+12345678900", record.PhoneNumber)
	require.Equal(t, StatusAwaitingResponse, record.Status)
	require.Equal(t, "John Doe", record.ClientName)
}

func TestLatest_DescendingLimitOne(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{
			testRecordItem("+12345678900", "2026-08-30T12:00:00Z#EVT123", StatusFollowUpSent),
		},
	}}
	s := mustNewStore(t, db)

	record, err := s.Latest(context.Background(), "+12345678900")
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "2026-08-30T12:00:00Z#EVT123", record.ConversationID)

	require.NotNil(t, db.lastQueryIn)
	require.False(t, *db.lastQueryIn.ScanIndexForward)
	require.Equal(t, int32(1), *db.lastQueryIn.Limit)
}

func TestLatest_NoConversations(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{}}
	s := mustNewStore(t, db)

	record, err := s.Latest(context.Background(), "+12345678900")
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestClaimFollowUp_ConditionExpression(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewStore(t, db)

	require.NoError(t, s.ClaimFollowUp(context.Background(), "+12345678900", "c1", time.Now()))
	require.NotNil(t, db.lastUpdate)
	cond := *db.lastUpdate.ConditionExpression
	require.Contains(t, cond, "clientResponded = :notResponded")
	require.Contains(t, cond, "followUpMessageSent = :notSent")
	require.Contains(t, cond, "#status IN")
}

func TestClaimFollowUp_ConditionFailed(t *testing.T) {
	db := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{}}
	s := mustNewStore(t, db)

	err := s.ClaimFollowUp(context.Background(), "+12345678900", "c1", time.Now())
	require.ErrorIs(t, err, ErrConditionFailed)
}

func TestMarkResponded_ConditionFailed(t *testing.T) {
	db := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{}}
	s := mustNewStore(t, db)

	err := s.MarkResponded(context.Background(), "+12345678900", "c1", time.Now(), "yes")
	require.ErrorIs(t, err, ErrConditionFailed)
}

func TestMarkResponded_SetsResponseFields(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewStore(t, db)

	require.NoError(t, s.MarkResponded(context.Background(), "+12345678900", "c1", time.Now(), "yes, still good"))
	require.NotNil(t, db.lastUpdate)
	require.Contains(t, *db.lastUpdate.UpdateExpression, "clientResponseText")
	require.Contains(t, *db.lastUpdate.ConditionExpression, "#status <> :completed")

	text, ok := db.lastUpdate.ExpressionAttributeValues[":text"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	require.Equal(t, "yes, still good", text.Value)
}

func TestAppendAdminReply_ListAppend(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewStore(t, db)

	reply := AdminReply{Message: "hello", SentAt: "2026-08-30T12:00:00Z", SentBy: "ops"}
	require.NoError(t, s.AppendAdminReply(context.Background(), "+12345678900", "c1", reply))
	require.NotNil(t, db.lastUpdate)
	require.Contains(t, *db.lastUpdate.UpdateExpression, "list_append")
	// Status must never appear in the manual-reply write.
	require.NotContains(t, *db.lastUpdate.UpdateExpression, "status")
}

func TestList_StatusFilterAndCursor(t *testing.T) {
	db := &fakeDynamo{scanOut: &dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{
			testRecordItem("+12345678900", "c1", StatusAwaitingResponse),
		},
		LastEvaluatedKey: recordKey("+12345678900", "c1"),
	}}
	s := mustNewStore(t, db)

	result, err := s.List(context.Background(), ListOptions{Status: StatusAwaitingResponse, Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.NotEmpty(t, result.NextCursor)
	require.NotNil(t, db.lastScanIn.FilterExpression)

	// Feed the cursor back; the scan must resume from the returned key.
	db.scanOut = &dynamodb.ScanOutput{}
	_, err = s.List(context.Background(), ListOptions{Cursor: result.NextCursor})
	require.NoError(t, err)
	require.NotNil(t, db.lastScanIn.ExclusiveStartKey)
	phone := db.lastScanIn.ExclusiveStartKey["phoneNumber"].(*types.AttributeValueMemberS)
	require.Equal(t, "+12345678900", phone.Value)
}

func TestList_BadCursor(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewStore(t, db)

	_, err := s.List(context.Background(), ListOptions{Cursor: "not base64 !!!"})
	require.Error(t, err)
}

func TestStoreErrors_Wrapped(t *testing.T) {
	boom := errors.New("boom")
	db := &fakeDynamo{getErr: boom, queryErr: boom, scanErr: boom, updateErr: boom, putErr: boom}
	s := mustNewStore(t, db)
	ctx := context.Background()

	_, err := s.Get(ctx, "+12345678900", "c1")
	require.ErrorIs(t, err, boom)

	_, err = s.Latest(ctx, "+12345678900")
	require.ErrorIs(t, err, boom)

	require.ErrorIs(t, s.Create(ctx, &Record{PhoneNumber: "+12345678900", ConversationID: "c1"}), boom)
	require.ErrorIs(t, s.MarkInitialSent(ctx, "+12345678900", "c1", time.Now()), boom)
	require.ErrorIs(t, s.ClaimFollowUp(ctx, "+12345678900", "c1", time.Now()), boom)

	_, err = s.List(ctx, ListOptions{})
	require.ErrorIs(t, err, boom)
}
