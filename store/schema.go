package store

import "fmt"

// DynamoDB schema constants for single-table design
const (
	// Table attributes
	AttrPK         = "PK"
	AttrSK         = "SK"
	AttrGSI1PK     = "GSI1PK"
	AttrGSI1SK     = "GSI1SK"
	AttrEntityType = "entity_type"

	// Entity types
	EntityTypeWorkflow      = "Workflow"
	EntityTypeWorkflowStep  = "WorkflowStep"
	EntityTypeWorkflowRun   = "WorkflowRun"
	EntityTypeStepExecution = "StepExecution"
	EntityTypeApproval      = "Approval"
	EntityTypeNotification  = "Notification"
	EntityTypeIntegration   = "Integration"
	EntityTypeUserProfile   = "UserProfile"
	EntityTypeDomainRecord  = "DomainRecord"

	// Index names
	IndexTriggerIndex = "GSI1"
)

// Key builders for single-table design. Every partition key is prefixed
// with the tenant so one table serves all tenants.

func metaSK() string {
	return "META"
}

// Workflow keys: PK=TENANT#{tenant}#WF#{workflowID}, SK=META
func workflowPK(tenantID, workflowID string) string {
	return fmt.Sprintf("TENANT#%s#WF#%s", tenantID, workflowID)
}

// GSI1 serves trigger routing: all active workflows for a tenant and
// trigger type share a partition.
func workflowGSI1PK(tenantID, trigger, status string) string {
	return fmt.Sprintf("TENANT#%s#TRIGGER#%s#STATUS#%s", tenantID, trigger, status)
}

func workflowGSI1SK(createdAt string) string {
	return createdAt
}

// WorkflowStep keys: PK=TENANT#{tenant}#WF#{workflowID}, SK=STEP#{order}#{stepID}
// The zero-padded order makes the native SK sort the execution order.
func workflowStepPK(tenantID, workflowID string) string {
	return workflowPK(tenantID, workflowID)
}

func workflowStepSK(stepOrder int, stepID string) string {
	return fmt.Sprintf("STEP#%05d#%s", stepOrder, stepID)
}

// WorkflowRun keys: PK=TENANT#{tenant}#RUN#{runID}, SK=META
func workflowRunPK(tenantID, runID string) string {
	return fmt.Sprintf("TENANT#%s#RUN#%s", tenantID, runID)
}

// GSI1 serves the delay scheduler: runs in waiting_delay sort by resume_at.
func workflowRunGSI1PK(tenantID, status string) string {
	return fmt.Sprintf("TENANT#%s#RUNSTATUS#%s", tenantID, status)
}

func workflowRunGSI1SK(resumeAt string) string {
	return resumeAt
}

// StepExecution keys: PK=TENANT#{tenant}#RUN#{runID}, SK=EXEC#{order}#{execID}
func stepExecutionPK(tenantID, runID string) string {
	return workflowRunPK(tenantID, runID)
}

func stepExecutionSK(stepOrder int, execID string) string {
	return fmt.Sprintf("EXEC#%05d#%s", stepOrder, execID)
}

// Approval keys: PK=TENANT#{tenant}#APPROVAL#{approvalID}, SK=META
func approvalPK(tenantID, approvalID string) string {
	return fmt.Sprintf("TENANT#%s#APPROVAL#%s", tenantID, approvalID)
}

// Notification keys: PK=TENANT#{tenant}#NOTIF#{notificationID}, SK=META
func notificationPK(tenantID, notificationID string) string {
	return fmt.Sprintf("TENANT#%s#NOTIF#%s", tenantID, notificationID)
}

// Integration keys: PK=TENANT#{tenant}#INTEGRATION#{provider}, SK=META
func integrationPK(tenantID, provider string) string {
	return fmt.Sprintf("TENANT#%s#INTEGRATION#%s", tenantID, provider)
}

// UserProfile keys: PK=TENANT#{tenant}#USER#{userID}, SK=META
func userProfilePK(tenantID, userID string) string {
	return fmt.Sprintf("TENANT#%s#USER#%s", tenantID, userID)
}

// Domain entity keys: PK=TENANT#{tenant}#ENTITY#{table}, SK=ID#{id}
func entityPK(tenantID, table string) string {
	return fmt.Sprintf("TENANT#%s#ENTITY#%s", tenantID, table)
}

func entitySK(id string) string {
	return fmt.Sprintf("ID#%s", id)
}

// Prefixes for range queries
func stepPrefix() string {
	return "STEP#"
}

func execPrefix() string {
	return "EXEC#"
}
