package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/relaycrm/automation"
)

// DynamoDBStore implements automation.Store using AWS DynamoDB
type DynamoDBStore struct {
	client    DynamoDBClient
	tableName string
}

var _ automation.Store = (*DynamoDBStore)(nil)

// NewDynamoDBStore creates a new DynamoDB-backed automation store
func NewDynamoDBStore(client DynamoDBClient, tableName string) *DynamoDBStore {
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
	}
}

// Workflow definition operations

func (s *DynamoDBStore) GetWorkflow(ctx context.Context, tenantID, workflowID string) (*automation.Workflow, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: workflowPK(tenantID, workflowID)},
			AttrSK: &types.AttributeValueMemberS{Value: metaSK()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if result.Item == nil {
		return nil, automation.ErrNotFound
	}

	var wf automation.Workflow
	if err := attributevalue.UnmarshalMap(result.Item, &wf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}

	return &wf, nil
}

func (s *DynamoDBStore) PutWorkflow(ctx context.Context, wf *automation.Workflow) error {
	item, err := attributevalue.MarshalMap(wf)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: workflowPK(wf.TenantID, wf.ID)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: metaSK()}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeWorkflow}
	item[AttrGSI1PK] = &types.AttributeValueMemberS{
		Value: workflowGSI1PK(wf.TenantID, string(wf.TriggerType), string(wf.Status)),
	}
	item[AttrGSI1SK] = &types.AttributeValueMemberS{
		Value: workflowGSI1SK(wf.CreatedAt.Format(time.RFC3339)),
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put workflow: %w", err)
	}

	return nil
}

func (s *DynamoDBStore) ListActiveWorkflows(ctx context.Context, tenantID string, trigger automation.TriggerType) ([]*automation.Workflow, error) {
	var workflows []*automation.Workflow
	var lastEvaluatedKey map[string]types.AttributeValue

	for {
		queryInput := &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			IndexName:              aws.String(IndexTriggerIndex),
			KeyConditionExpression: aws.String("GSI1PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{
					Value: workflowGSI1PK(tenantID, string(trigger), string(automation.WorkflowStatusActive)),
				},
			},
		}

		if lastEvaluatedKey != nil {
			queryInput.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := s.client.Query(ctx, queryInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list active workflows: %w", err)
		}

		for _, item := range result.Items {
			var wf automation.Workflow
			if err := attributevalue.UnmarshalMap(item, &wf); err != nil {
				return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
			}
			workflows = append(workflows, &wf)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	return workflows, nil
}

func (s *DynamoDBStore) PutWorkflowStep(ctx context.Context, step *automation.WorkflowStep) error {
	item, err := attributevalue.MarshalMap(step)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow step: %w", err)
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: workflowStepPK(step.TenantID, step.WorkflowID)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: workflowStepSK(step.StepOrder, step.ID)}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeWorkflowStep}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put workflow step: %w", err)
	}

	return nil
}

func (s *DynamoDBStore) ListWorkflowSteps(ctx context.Context, tenantID, workflowID string) ([]*automation.WorkflowStep, error) {
	// The zero-padded order in SK makes the native sort the execution order.
	var steps []*automation.WorkflowStep
	var lastEvaluatedKey map[string]types.AttributeValue

	for {
		queryInput := &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: workflowStepPK(tenantID, workflowID)},
				":sk": &types.AttributeValueMemberS{Value: stepPrefix()},
			},
		}

		if lastEvaluatedKey != nil {
			queryInput.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := s.client.Query(ctx, queryInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list workflow steps: %w", err)
		}

		for _, item := range result.Items {
			var step automation.WorkflowStep
			if err := attributevalue.UnmarshalMap(item, &step); err != nil {
				return nil, fmt.Errorf("failed to unmarshal workflow step: %w", err)
			}
			steps = append(steps, &step)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	return steps, nil
}

// Workflow run operations

func (s *DynamoDBStore) CreateRun(ctx context.Context, run *automation.WorkflowRun) error {
	return s.putRun(ctx, run, "failed to create workflow run")
}

func (s *DynamoDBStore) UpdateRun(ctx context.Context, run *automation.WorkflowRun) error {
	return s.putRun(ctx, run, "failed to update workflow run")
}

func (s *DynamoDBStore) putRun(ctx context.Context, run *automation.WorkflowRun, failMsg string) error {
	item, err := attributevalue.MarshalMap(run)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow run: %w", err)
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: workflowRunPK(run.TenantID, run.ID)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: metaSK()}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeWorkflowRun}

	// Sparse index: only runs parked for the delay scheduler carry GSI keys.
	if run.Status == automation.RunStatusWaitingDelay && run.ResumeAt != nil {
		item[AttrGSI1PK] = &types.AttributeValueMemberS{
			Value: workflowRunGSI1PK(run.TenantID, string(run.Status)),
		}
		item[AttrGSI1SK] = &types.AttributeValueMemberS{
			Value: workflowRunGSI1SK(run.ResumeAt.UTC().Format(time.RFC3339)),
		}
	} else {
		delete(item, AttrGSI1PK)
		delete(item, AttrGSI1SK)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", failMsg, err)
	}

	return nil
}

func (s *DynamoDBStore) GetRun(ctx context.Context, tenantID, runID string) (*automation.WorkflowRun, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: workflowRunPK(tenantID, runID)},
			AttrSK: &types.AttributeValueMemberS{Value: metaSK()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow run: %w", err)
	}

	if result.Item == nil {
		return nil, automation.ErrNotFound
	}

	var run automation.WorkflowRun
	if err := attributevalue.UnmarshalMap(result.Item, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow run: %w", err)
	}

	return &run, nil
}

func (s *DynamoDBStore) ListRunsWaitingDelay(ctx context.Context, tenantID string, before time.Time) ([]*automation.WorkflowRun, error) {
	var runs []*automation.WorkflowRun
	var lastEvaluatedKey map[string]types.AttributeValue

	for {
		queryInput := &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			IndexName:              aws.String(IndexTriggerIndex),
			KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK <= :before"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{
					Value: workflowRunGSI1PK(tenantID, string(automation.RunStatusWaitingDelay)),
				},
				":before": &types.AttributeValueMemberS{
					Value: before.UTC().Format(time.RFC3339),
				},
			},
		}

		if lastEvaluatedKey != nil {
			queryInput.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := s.client.Query(ctx, queryInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs waiting on delay: %w", err)
		}

		for _, item := range result.Items {
			var run automation.WorkflowRun
			if err := attributevalue.UnmarshalMap(item, &run); err != nil {
				return nil, fmt.Errorf("failed to unmarshal workflow run: %w", err)
			}
			runs = append(runs, &run)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	return runs, nil
}

// Step execution operations

func (s *DynamoDBStore) CreateStepExecution(ctx context.Context, exec *automation.StepExecution) error {
	return s.putStepExecution(ctx, exec, "failed to create step execution")
}

func (s *DynamoDBStore) UpdateStepExecution(ctx context.Context, exec *automation.StepExecution) error {
	return s.putStepExecution(ctx, exec, "failed to update step execution")
}

func (s *DynamoDBStore) putStepExecution(ctx context.Context, exec *automation.StepExecution, failMsg string) error {
	item, err := attributevalue.MarshalMap(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal step execution: %w", err)
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: stepExecutionPK(exec.TenantID, exec.RunID)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: stepExecutionSK(exec.StepOrder, exec.ID)}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeStepExecution}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", failMsg, err)
	}

	return nil
}

func (s *DynamoDBStore) ListStepExecutions(ctx context.Context, tenantID, runID string) ([]*automation.StepExecution, error) {
	var executions []*automation.StepExecution
	var lastEvaluatedKey map[string]types.AttributeValue

	for {
		queryInput := &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: stepExecutionPK(tenantID, runID)},
				":sk": &types.AttributeValueMemberS{Value: execPrefix()},
			},
		}

		if lastEvaluatedKey != nil {
			queryInput.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := s.client.Query(ctx, queryInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list step executions: %w", err)
		}

		for _, item := range result.Items {
			var exec automation.StepExecution
			if err := attributevalue.UnmarshalMap(item, &exec); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step execution: %w", err)
			}
			executions = append(executions, &exec)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	return executions, nil
}

// Approval and notification operations

func (s *DynamoDBStore) CreateApproval(ctx context.Context, approval *automation.Approval) error {
	item, err := attributevalue.MarshalMap(approval)
	if err != nil {
		return fmt.Errorf("failed to marshal approval: %w", err)
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: approvalPK(approval.TenantID, approval.ID)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: metaSK()}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeApproval}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to create approval: %w", err)
	}

	return nil
}

func (s *DynamoDBStore) CreateNotification(ctx context.Context, notification *automation.Notification) error {
	item, err := attributevalue.MarshalMap(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: notificationPK(notification.TenantID, notification.ID)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: metaSK()}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeNotification}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// Integration credential operations

func (s *DynamoDBStore) GetIntegration(ctx context.Context, tenantID, provider string) (*automation.IntegrationCredential, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: integrationPK(tenantID, provider)},
			AttrSK: &types.AttributeValueMemberS{Value: metaSK()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	if result.Item == nil {
		return nil, automation.ErrNotFound
	}

	var cred automation.IntegrationCredential
	if err := attributevalue.UnmarshalMap(result.Item, &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal integration: %w", err)
	}

	if !cred.IsActive {
		return nil, automation.ErrNotFound
	}

	return &cred, nil
}

func (s *DynamoDBStore) PutIntegration(ctx context.Context, cred *automation.IntegrationCredential) error {
	item, err := attributevalue.MarshalMap(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal integration: %w", err)
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: integrationPK(cred.TenantID, cred.Provider)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: metaSK()}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeIntegration}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put integration: %w", err)
	}

	return nil
}

// Domain entity operations

func (s *DynamoDBStore) InsertEntity(ctx context.Context, tenantID, table string, fields map[string]interface{}) (string, error) {
	id := uuid.New().String()

	item, err := attributevalue.MarshalMap(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entity fields: %w", err)
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: entityPK(tenantID, table)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: entitySK(id)}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeDomainRecord}
	item["id"] = &types.AttributeValueMemberS{Value: id}
	item["tenant_id"] = &types.AttributeValueMemberS{Value: tenantID}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert %s entity: %w", table, err)
	}

	return id, nil
}

func (s *DynamoDBStore) GetEntity(ctx context.Context, tenantID, table, id string) (map[string]interface{}, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: entityPK(tenantID, table)},
			AttrSK: &types.AttributeValueMemberS{Value: entitySK(id)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s entity: %w", table, err)
	}

	if result.Item == nil {
		return nil, automation.ErrNotFound
	}

	fields := make(map[string]interface{})
	if err := attributevalue.UnmarshalMap(result.Item, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s entity: %w", table, err)
	}

	delete(fields, AttrPK)
	delete(fields, AttrSK)
	delete(fields, AttrEntityType)

	return fields, nil
}

func (s *DynamoDBStore) UpdateEntity(ctx context.Context, tenantID, table, id string, fields map[string]interface{}) (int, error) {
	if len(fields) == 0 {
		return 0, nil
	}

	names := make(map[string]string, len(fields))
	values := make(map[string]types.AttributeValue, len(fields))
	expr := "SET "
	i := 0
	for key, value := range fields {
		av, err := attributevalue.Marshal(value)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal entity field %s: %w", key, err)
		}
		if i > 0 {
			expr += ", "
		}
		nameRef := fmt.Sprintf("#f%d", i)
		valueRef := fmt.Sprintf(":v%d", i)
		expr += nameRef + " = " + valueRef
		names[nameRef] = key
		values[valueRef] = av
		i++
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: entityPK(tenantID, table)},
			AttrSK: &types.AttributeValueMemberS{Value: entitySK(id)},
		},
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		// A missing row is not an error; the update simply touched nothing.
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to update %s entity: %w", table, err)
	}

	return 1, nil
}

// User profile operations

func (s *DynamoDBStore) GetUserProfile(ctx context.Context, tenantID, userID string) (*automation.UserProfile, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: userProfilePK(tenantID, userID)},
			AttrSK: &types.AttributeValueMemberS{Value: metaSK()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	if result.Item == nil {
		return nil, automation.ErrNotFound
	}

	var profile automation.UserProfile
	if err := attributevalue.UnmarshalMap(result.Item, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user profile: %w", err)
	}

	return &profile, nil
}
