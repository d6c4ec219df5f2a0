package documents

const (
	CategoryOnboarding  = "ONBOARDING"
	CategoryOperations  = "OPERATIONS"
	CategoryHRLifecycle = "HR_LIFECYCLE"
	CategoryOffboarding = "OFFBOARDING"
)

var categoryPrefixes = map[string]string{
	CategoryOnboarding:  "ON",
	CategoryOperations:  "OP",
	CategoryHRLifecycle: "HR",
	CategoryOffboarding: "OF",
}

const (
	StatusMissing         = "missing"
	StatusPendingApproval = "pending_approval"
	StatusActive          = "active"
	StatusExpired         = "expired"
)

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

const (
	JobStatusUploaded   = "uploaded"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	ItemStatusImported = "imported"
	ItemStatusSkipped  = "skipped"
	ItemStatusFailed   = "failed"
)

const (
	MatchAuto     = "auto"
	MatchUsername = "username"
	MatchEmail    = "email"
)

const (
	EncodingUTF8        = "utf-8"
	EncodingUTF8SIG     = "utf-8-sig"
	EncodingLatin1      = "latin-1"
	EncodingWindows1252 = "windows-1252"
)

const (
	EntityDocumentType     = "hr_document_type"
	EntityRequirement      = "hr_document_requirement"
	EntityEmployeeDocument = "hr_employee_document"
	EntityDocumentVersion  = "hr_document_version"
	EntityShareLink        = "hr_document_share_link"
	EntityImportJob        = "hr_document_import_job"

	ActionDocumentExpired     = "hr_document.expired"
	ActionDocumentReactivated = "hr_document.reactivated"

	ActionTypeCreated        = "hr_document_type.created"
	ActionTypeUpdated        = "hr_document_type.updated"
	ActionRequirementCreated = "hr_document_requirement.created"
	ActionRequirementUpdated = "hr_document_requirement.updated"
	ActionRequirementSynced  = "hr_document_requirement.synced"
	ActionVersionUploaded    = "hr_document_version.uploaded"
	ActionVersionApproved    = "hr_document_version.approved"
	ActionVersionRejected    = "hr_document_version.rejected"
	ActionShareLinkCreated   = "hr_document_share_link.created"
	ActionShareLinkRevoked   = "hr_document_share_link.deactivated"
	ActionImportCreated      = "hr_document_import.created"
	ActionImportProcessed    = "hr_document_import.processed"
)

// StoragePrefix is the root of every object key written by the engine.
const StoragePrefix = "hr-documents"

const (
	MetricVersionsCreated  = "hrdocs_versions_created"
	MetricVersionsApproved = "hrdocs_versions_approved"
	MetricVersionsRejected = "hrdocs_versions_rejected"
	MetricDocumentsExpired = "hrdocs_documents_expired"
	MetricDocsReactivated  = "hrdocs_documents_reactivated"
	MetricImportRows       = "hrdocs_import_rows_"
	MetricSyncCreated      = "hrdocs_sync_created"
)
