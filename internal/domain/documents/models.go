package documents

import (
	"encoding/json"
	"time"
)

type DocumentType struct {
	ID                      string          `json:"id"`
	Code                    string          `json:"code"`
	Name                    string          `json:"name"`
	Description             string          `json:"description,omitempty"`
	Category                string          `json:"category"`
	SequenceNo              int             `json:"sequenceNo"`
	FolderCode              string          `json:"folderCode"`
	RequiresApproval        bool            `json:"requiresApproval"`
	DefaultValidityDays     *int            `json:"defaultValidityDays,omitempty"`
	DefaultRenewBeforeDays  *int            `json:"defaultRenewBeforeDays,omitempty"`
	DefaultShareExpiryHours *int            `json:"defaultShareExpiryHours,omitempty"`
	MetadataSchema          json.RawMessage `json:"metadataSchema"`
	IsActive                bool            `json:"isActive"`
	CreatedAt               time.Time       `json:"createdAt"`
	UpdatedAt               time.Time       `json:"updatedAt"`
}

type DocumentRequirement struct {
	ID                      string     `json:"id"`
	DocumentTypeID          string     `json:"documentTypeId"`
	RoleID                  *string    `json:"roleId,omitempty"`
	DepartmentCode          *string    `json:"departmentCode,omitempty"`
	EmploymentType          *string    `json:"employmentType,omitempty"`
	IsMandatory             bool       `json:"isMandatory"`
	ValidityDaysOverride    *int       `json:"validityDaysOverride,omitempty"`
	RenewBeforeDaysOverride *int       `json:"renewBeforeDaysOverride,omitempty"`
	AppliesFrom             *time.Time `json:"appliesFrom,omitempty"`
	AppliesUntil            *time.Time `json:"appliesUntil,omitempty"`
	Notes                   string     `json:"notes,omitempty"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt"`
}

type EmployeeDocument struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	DocumentTypeID    string     `json:"documentTypeId"`
	DocumentTypeCode  string     `json:"documentTypeCode,omitempty"`
	RequirementID     *string    `json:"requirementId,omitempty"`
	Status            string     `json:"status"`
	ValidFrom         *time.Time `json:"validFrom,omitempty"`
	ValidUntil        *time.Time `json:"validUntil,omitempty"`
	CurrentVersionID  *string    `json:"currentVersionId,omitempty"`
	LastStatusCheckAt *time.Time `json:"lastStatusCheckAt,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type DocumentVersion struct {
	ID                 string          `json:"id"`
	EmployeeDocumentID string          `json:"employeeDocumentId"`
	FileID             string          `json:"fileId"`
	VersionNo          int             `json:"versionNo"`
	UploadedBy         *string         `json:"uploadedBy,omitempty"`
	UploadedAt         time.Time       `json:"uploadedAt"`
	ApprovalStatus     string          `json:"approvalStatus"`
	ApprovedBy         *string         `json:"approvedBy,omitempty"`
	ApprovedAt         *time.Time      `json:"approvedAt,omitempty"`
	ApprovalNote       string          `json:"approvalNote,omitempty"`
	Checksum           string          `json:"checksum,omitempty"`
	FileMetadata       json.RawMessage `json:"fileMetadata"`
	ValidFrom          *time.Time      `json:"validFrom,omitempty"`
	ValidUntil         *time.Time      `json:"validUntil,omitempty"`
}

type DocumentDetail struct {
	EmployeeDocument
	Versions []DocumentVersion `json:"versions"`
}

type FileRecord struct {
	ID           string    `json:"id"`
	Bucket       string    `json:"bucket"`
	ObjectKey    string    `json:"objectKey"`
	OriginalName string    `json:"originalName"`
	ContentType  string    `json:"contentType"`
	SizeBytes    int64     `json:"sizeBytes"`
	Checksum     string    `json:"checksum,omitempty"`
	UploadedBy   string    `json:"uploadedBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type ShareLink struct {
	ID                 string     `json:"id"`
	Token              string     `json:"token"`
	EmployeeDocumentID string     `json:"employeeDocumentId"`
	DocumentVersionID  *string    `json:"documentVersionId,omitempty"`
	ExpiresAt          time.Time  `json:"expiresAt"`
	MaxViews           *int       `json:"maxViews,omitempty"`
	ViewsCount         int        `json:"viewsCount"`
	AllowedRoles       []string   `json:"allowedRoles"`
	AllowedDepartments []string   `json:"allowedDepartments"`
	IsActive           bool       `json:"isActive"`
	CreatedBy          *string    `json:"createdBy,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	DeactivatedAt      *time.Time `json:"deactivatedAt,omitempty"`
	Usable             bool       `json:"usable"`
}

type ImportOptions struct {
	Delimiter     string `json:"delimiter"`
	Encoding      string `json:"encoding"`
	MatchStrategy string `json:"matchStrategy"`
}

type ImportJob struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	ManifestBucket string          `json:"manifestBucket"`
	ManifestKey    string          `json:"manifestKey"`
	ArchiveBucket  *string         `json:"archiveBucket,omitempty"`
	ArchiveKey     *string         `json:"archiveKey,omitempty"`
	Options        ImportOptions   `json:"options"`
	DryRun         bool            `json:"dryRun"`
	TotalRows      int             `json:"totalRows"`
	ProcessedRows  int             `json:"processedRows"`
	SuccessCount   int             `json:"successCount"`
	FailureCount   int             `json:"failureCount"`
	Summary        json.RawMessage `json:"summary"`
	ErrorLog       *string         `json:"errorLog,omitempty"`
	CreatedBy      *string         `json:"createdBy,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
}

type ImportJobDetail struct {
	ImportJob
	Items []ImportItem `json:"items"`
}

type ImportItem struct {
	ID                  string          `json:"id"`
	ImportJobID         string          `json:"importJobId"`
	LineNumber          int             `json:"lineNumber"`
	EmployeeIdentifier  string          `json:"employeeIdentifier"`
	DocumentTypeCode    string          `json:"documentTypeCode"`
	MatchedUserID       *string         `json:"matchedUserId,omitempty"`
	Status              string          `json:"status"`
	ErrorMessage        *string         `json:"errorMessage,omitempty"`
	GeneratedDocumentID *string         `json:"generatedDocumentId,omitempty"`
	GeneratedVersionID  *string         `json:"generatedVersionId,omitempty"`
	Metadata            json.RawMessage `json:"metadata"`
	CreatedAt           time.Time       `json:"createdAt"`
}

type SyncResult struct {
	RequirementID string `json:"requirementId"`
	Processed     int    `json:"processed"`
	Created       int    `json:"created"`
	Existing      int    `json:"existing"`
}

type ExpiryResult struct {
	ReferenceDate    string `json:"referenceDate"`
	ExpiredCount     int    `json:"expiredCount"`
	ReactivatedCount int    `json:"reactivatedCount"`
}

type ExpiringDocument struct {
	EmployeeDocument
	RenewBeforeDays int `json:"renewBeforeDays"`
	DaysRemaining   int `json:"daysRemaining"`
}
