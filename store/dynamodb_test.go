package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/relaycrm/automation"
)

// mockDynamoDBClient records the last input of each call and returns canned
// outputs.
type mockDynamoDBClient struct {
	putItemInput    *dynamodb.PutItemInput
	getItemInput    *dynamodb.GetItemInput
	queryInput      *dynamodb.QueryInput
	updateItemInput *dynamodb.UpdateItemInput

	getItemOutput *dynamodb.GetItemOutput
	queryOutput   *dynamodb.QueryOutput
	updateItemErr error
}

func (m *mockDynamoDBClient) PutItem(ctx context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putItemInput = input
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamoDBClient) GetItem(ctx context.Context, input *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.getItemInput = input
	if m.getItemOutput != nil {
		return m.getItemOutput, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockDynamoDBClient) Query(ctx context.Context, input *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.queryInput = input
	if m.queryOutput != nil {
		return m.queryOutput, nil
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockDynamoDBClient) UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.updateItemInput = input
	if m.updateItemErr != nil {
		return nil, m.updateItemErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockDynamoDBClient) DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return &dynamodb.DeleteItemOutput{}, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	av, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return av.Value
}

func TestDynamoDBStore_GetWorkflow_Keys(t *testing.T) {
	mock := &mockDynamoDBClient{}
	s := NewDynamoDBStore(mock, "automation-table")

	_, err := s.GetWorkflow(context.Background(), "tenant-1", "wf-1")
	if !errors.Is(err, automation.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty item, got %v", err)
	}

	if got := *mock.getItemInput.TableName; got != "automation-table" {
		t.Errorf("unexpected table name %q", got)
	}
	if got := stringAttr(mock.getItemInput.Key, AttrPK); got != "TENANT#tenant-1#WF#wf-1" {
		t.Errorf("unexpected PK %q", got)
	}
	if got := stringAttr(mock.getItemInput.Key, AttrSK); got != "META" {
		t.Errorf("unexpected SK %q", got)
	}
}

func TestDynamoDBStore_PutWorkflowStep_ZeroPaddedOrder(t *testing.T) {
	mock := &mockDynamoDBClient{}
	s := NewDynamoDBStore(mock, "automation-table")

	err := s.PutWorkflowStep(context.Background(), &automation.WorkflowStep{
		ID: "step-1", WorkflowID: "wf-1", TenantID: "tenant-1",
		StepOrder: 12, StepType: "create_task",
	})
	if err != nil {
		t.Fatalf("PutWorkflowStep: %v", err)
	}

	item := mock.putItemInput.Item
	if got := stringAttr(item, AttrPK); got != "TENANT#tenant-1#WF#wf-1" {
		t.Errorf("unexpected PK %q", got)
	}
	if got := stringAttr(item, AttrSK); got != "STEP#00012#step-1" {
		t.Errorf("unexpected SK %q", got)
	}
	if got := stringAttr(item, AttrEntityType); got != EntityTypeWorkflowStep {
		t.Errorf("unexpected entity_type %q", got)
	}
}

func TestDynamoDBStore_PutRun_SparseDelayIndex(t *testing.T) {
	mock := &mockDynamoDBClient{}
	s := NewDynamoDBStore(mock, "automation-table")
	resumeAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	run := &automation.WorkflowRun{
		ID: "run-1", TenantID: "tenant-1",
		Status:   automation.RunStatusWaitingDelay,
		ResumeAt: &resumeAt,
	}
	if err := s.UpdateRun(context.Background(), run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	item := mock.putItemInput.Item
	if got := stringAttr(item, AttrGSI1PK); got != "TENANT#tenant-1#RUNSTATUS#waiting_delay" {
		t.Errorf("unexpected GSI1PK %q", got)
	}
	if got := stringAttr(item, AttrGSI1SK); got != "2025-03-10T12:00:00Z" {
		t.Errorf("unexpected GSI1SK %q", got)
	}

	// Leaving waiting_delay drops the run off the scheduler index.
	run.Status = automation.RunStatusCompleted
	run.ResumeAt = nil
	if err := s.UpdateRun(context.Background(), run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}
	item = mock.putItemInput.Item
	if _, exists := item[AttrGSI1PK]; exists {
		t.Error("expected GSI1PK absent on completed run")
	}
	if _, exists := item[AttrGSI1SK]; exists {
		t.Error("expected GSI1SK absent on completed run")
	}
}

func TestDynamoDBStore_ListActiveWorkflows_QueriesTriggerIndex(t *testing.T) {
	mock := &mockDynamoDBClient{}
	s := NewDynamoDBStore(mock, "automation-table")

	workflows, err := s.ListActiveWorkflows(context.Background(), "tenant-1", automation.TriggerLeadCreated)
	if err != nil {
		t.Fatalf("ListActiveWorkflows: %v", err)
	}
	if len(workflows) != 0 {
		t.Fatalf("expected no workflows, got %d", len(workflows))
	}

	if got := *mock.queryInput.IndexName; got != IndexTriggerIndex {
		t.Errorf("unexpected index %q", got)
	}
	pk := mock.queryInput.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	if pk != "TENANT#tenant-1#TRIGGER#lead_created#STATUS#active" {
		t.Errorf("unexpected GSI1PK condition %q", pk)
	}
}

func TestDynamoDBStore_ListRunsWaitingDelay_BoundsByResumeAt(t *testing.T) {
	mock := &mockDynamoDBClient{}
	s := NewDynamoDBStore(mock, "automation-table")
	before := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)

	if _, err := s.ListRunsWaitingDelay(context.Background(), "tenant-1", before); err != nil {
		t.Fatalf("ListRunsWaitingDelay: %v", err)
	}

	if got := *mock.queryInput.KeyConditionExpression; got != "GSI1PK = :pk AND GSI1SK <= :before" {
		t.Errorf("unexpected key condition %q", got)
	}
	bound := mock.queryInput.ExpressionAttributeValues[":before"].(*types.AttributeValueMemberS).Value
	if bound != "2025-03-10T12:30:00Z" {
		t.Errorf("unexpected upper bound %q", bound)
	}
}

func TestDynamoDBStore_GetIntegration_InactiveIsNotFound(t *testing.T) {
	mock := &mockDynamoDBClient{
		getItemOutput: &dynamodb.GetItemOutput{
			Item: map[string]types.AttributeValue{
				"tenant_id": &types.AttributeValueMemberS{Value: "tenant-1"},
				"provider":  &types.AttributeValueMemberS{Value: "slack"},
				"is_active": &types.AttributeValueMemberBOOL{Value: false},
			},
		},
	}
	s := NewDynamoDBStore(mock, "automation-table")

	_, err := s.GetIntegration(context.Background(), "tenant-1", "slack")
	if !errors.Is(err, automation.ErrNotFound) {
		t.Errorf("expected ErrNotFound for inactive integration, got %v", err)
	}
}

func TestDynamoDBStore_UpdateEntity_MissingRowIsZeroRows(t *testing.T) {
	mock := &mockDynamoDBClient{
		updateItemErr: &types.ConditionalCheckFailedException{},
	}
	s := NewDynamoDBStore(mock, "automation-table")

	n, err := s.UpdateEntity(context.Background(), "tenant-1", "tasks", "t-1", map[string]interface{}{
		"status": "done",
	})
	if err != nil {
		t.Fatalf("UpdateEntity: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows affected, got %d", n)
	}

	if got := *mock.updateItemInput.ConditionExpression; got != "attribute_exists(PK)" {
		t.Errorf("unexpected condition expression %q", got)
	}
	if got := stringAttr(mock.updateItemInput.Key, AttrPK); got != "TENANT#tenant-1#ENTITY#tasks" {
		t.Errorf("unexpected PK %q", got)
	}
	if got := stringAttr(mock.updateItemInput.Key, AttrSK); got != "ID#t-1" {
		t.Errorf("unexpected SK %q", got)
	}
}
