package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// CreateImportJobInput points at a manifest, and optionally an archive, already in object storage.
type CreateImportJobInput struct {
	ManifestBucket string
	ManifestKey    string
	ArchiveBucket  *string
	ArchiveKey     *string
	Options        ImportOptions
	CreatedBy      string
}

func (in CreateImportJobInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.ManifestBucket, validation.Required),
		validation.Field(&in.ManifestKey, validation.Required),
		validation.Field(&in.ArchiveKey, validation.When(in.ArchiveBucket != nil, validation.Required), validation.NilOrNotEmpty),
	)
}

// StageImportInput carries raw uploads that are written to storage before the job is recorded.
type StageImportInput struct {
	ManifestName string
	ManifestData []byte
	ArchiveName  string
	ArchiveData  []byte
	Options      ImportOptions
	CreatedBy    string
}

// CreateImportJob records an uploaded job. Processing is a separate call.
func (s *Service) CreateImportJob(ctx context.Context, in CreateImportJobInput) (ImportJob, error) {
	if err := in.Validate(); err != nil {
		return ImportJob{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	opts, err := normalizeImportOptions(in.Options)
	if err != nil {
		return ImportJob{}, err
	}
	job := ImportJob{
		ManifestBucket: in.ManifestBucket,
		ManifestKey:    in.ManifestKey,
		ArchiveKey:     trimmedOrNil(in.ArchiveKey),
		Options:        opts,
	}
	if job.ArchiveKey != nil {
		bucket := in.ManifestBucket
		if in.ArchiveBucket != nil && strings.TrimSpace(*in.ArchiveBucket) != "" {
			bucket = strings.TrimSpace(*in.ArchiveBucket)
		}
		job.ArchiveBucket = &bucket
	}
	if in.CreatedBy != "" {
		job.CreatedBy = &in.CreatedBy
	}
	return s.Store.InsertImportJob(ctx, job)
}

// StageImportJob stores the manifest and archive under the import prefix and records the job.
func (s *Service) StageImportJob(ctx context.Context, in StageImportInput) (ImportJob, error) {
	if len(in.ManifestData) == 0 {
		return ImportJob{}, fmt.Errorf("%w: manifest is required", ErrValidation)
	}
	if _, err := normalizeImportOptions(in.Options); err != nil {
		return ImportJob{}, err
	}
	prefix := fmt.Sprintf("%s/imports/%s_%s", StoragePrefix, s.Now().Format("20060102T150405"), objectSuffix())
	if err := s.Storage.MakeFolder(ctx, s.Options.Bucket, prefix); err != nil {
		return ImportJob{}, fmt.Errorf("%w: %v", ErrExternalIO, err)
	}

	manifestKey := stagedKey(prefix, in.ManifestName, "manifest.csv")
	if err := s.Storage.PutObject(ctx, s.Options.Bucket, manifestKey, in.ManifestData, "text/csv"); err != nil {
		return ImportJob{}, fmt.Errorf("%w: %v", ErrExternalIO, err)
	}
	input := CreateImportJobInput{
		ManifestBucket: s.Options.Bucket,
		ManifestKey:    manifestKey,
		Options:        in.Options,
		CreatedBy:      in.CreatedBy,
	}
	if len(in.ArchiveData) > 0 {
		archiveKey := stagedKey(prefix, in.ArchiveName, "archive.zip")
		if err := s.Storage.PutObject(ctx, s.Options.Bucket, archiveKey, in.ArchiveData, "application/zip"); err != nil {
			return ImportJob{}, fmt.Errorf("%w: %v", ErrExternalIO, err)
		}
		bucket := s.Options.Bucket
		input.ArchiveBucket = &bucket
		input.ArchiveKey = &archiveKey
	}
	return s.CreateImportJob(ctx, input)
}

func stagedKey(prefix, name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return prefix + "/" + fallback
	}
	stem, ext := sanitizeBaseName(name)
	return prefix + "/" + stem + ext
}

func (s *Service) GetImportJob(ctx context.Context, id string) (ImportJobDetail, error) {
	if err := requireUUID("import job id", id); err != nil {
		return ImportJobDetail{}, err
	}
	job, err := s.Store.GetImportJob(ctx, id)
	if err != nil {
		return ImportJobDetail{}, err
	}
	items, err := s.Store.ListImportItems(ctx, id)
	if err != nil {
		return ImportJobDetail{}, err
	}
	if items == nil {
		items = []ImportItem{}
	}
	return ImportJobDetail{ImportJob: job, Items: items}, nil
}

func (s *Service) ListImportJobs(ctx context.Context, limit, offset int) ([]ImportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.Store.ListImportJobs(ctx, limit, offset)
}

type importSummary struct {
	TotalRows     int    `json:"totalRows"`
	Imported      int    `json:"imported"`
	Skipped       int    `json:"skipped"`
	Failed        int    `json:"failed"`
	DryRun        bool   `json:"dryRun"`
	MatchStrategy string `json:"matchStrategy"`
	Encoding      string `json:"encoding"`
	HasArchive    bool   `json:"hasArchive"`
	DurationMs    int64  `json:"durationMs"`
	Error         string `json:"error,omitempty"`
}

// ProcessImportJob claims the job and imports every manifest row in order. Row failures are
// recorded on their ImportItem and do not stop the run; failures loading the manifest or the
// archive mark the job failed and are returned.
func (s *Service) ProcessImportJob(ctx context.Context, jobID, initiator string, dryRun bool) (ImportJob, error) {
	if err := requireUUID("import job id", jobID); err != nil {
		return ImportJob{}, err
	}
	claimed, err := s.Store.ClaimImportJob(ctx, jobID, dryRun)
	if err != nil {
		return ImportJob{}, err
	}
	if !claimed {
		if _, err := s.Store.GetImportJob(ctx, jobID); err != nil {
			return ImportJob{}, err
		}
		return ImportJob{}, fmt.Errorf("%w: import job %s is already processing", ErrInvalidState, jobID)
	}

	started := time.Now()
	job, err := s.Store.GetImportJob(ctx, jobID)
	if err != nil {
		return ImportJob{}, err
	}
	summary := importSummary{
		DryRun:        dryRun,
		MatchStrategy: job.Options.MatchStrategy,
		Encoding:      job.Options.Encoding,
		HasArchive:    job.ArchiveKey != nil,
	}
	if err := s.Store.ClearImportItems(ctx, jobID); err != nil {
		return s.failImportJob(ctx, jobID, summary, err)
	}

	opts, err := normalizeImportOptions(job.Options)
	if err != nil {
		return s.failImportJob(ctx, jobID, summary, err)
	}
	manifest, err := s.Storage.GetObject(ctx, job.ManifestBucket, job.ManifestKey)
	if err != nil {
		return s.failImportJob(ctx, jobID, summary, fmt.Errorf("%w: load manifest: %v", ErrExternalIO, err))
	}
	rows, err := parseManifest(manifest, opts)
	if err != nil {
		return s.failImportJob(ctx, jobID, summary, fmt.Errorf("%w: %v", ErrValidation, err))
	}

	var archive archiveIndex
	if job.ArchiveKey != nil {
		bucket := job.ManifestBucket
		if job.ArchiveBucket != nil {
			bucket = *job.ArchiveBucket
		}
		data, err := s.Storage.GetObject(ctx, bucket, *job.ArchiveKey)
		if err != nil {
			return s.failImportJob(ctx, jobID, summary, fmt.Errorf("%w: load archive: %v", ErrExternalIO, err))
		}
		if archive, err = indexArchive(data); err != nil {
			return s.failImportJob(ctx, jobID, summary, fmt.Errorf("%w: %v", ErrExternalIO, err))
		}
	}

	summary.TotalRows = len(rows)
	if err := s.Store.UpdateImportProgress(ctx, jobID, len(rows), 0, 0, 0); err != nil {
		return s.failImportJob(ctx, jobID, summary, err)
	}

	run := importRun{job: job, opts: opts, initiator: initiator, dryRun: dryRun, archive: archive}
	for i, row := range rows {
		item := s.importRow(ctx, run, row)
		if err := s.Store.InsertImportItem(ctx, s.Store.DB, item); err != nil {
			return s.failImportJob(ctx, jobID, summary, fmt.Errorf("record import item %d: %w", row.Line, err))
		}
		switch item.Status {
		case ItemStatusImported:
			summary.Imported++
		case ItemStatusSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
		s.Metrics.Inc(MetricImportRows+item.Status, 1)
		if err := s.Store.UpdateImportProgress(ctx, jobID, len(rows), i+1, summary.Imported+summary.Skipped, summary.Failed); err != nil {
			return s.failImportJob(ctx, jobID, summary, err)
		}
	}

	status := JobStatusCompleted
	if summary.Imported+summary.Skipped == 0 && summary.Failed > 0 {
		status = JobStatusFailed
	}
	summary.DurationMs = time.Since(started).Milliseconds()
	finished, err := s.Store.FinishImportJob(ctx, jobID, status, summary, nil)
	if err != nil {
		return ImportJob{}, err
	}
	slog.Info("import job processed", "jobId", jobID, "status", status, "dryRun", dryRun,
		"imported", summary.Imported, "skipped", summary.Skipped, "failed", summary.Failed)
	return finished, nil
}

func (s *Service) failImportJob(ctx context.Context, jobID string, summary importSummary, cause error) (ImportJob, error) {
	msg := cause.Error()
	summary.Error = msg
	if _, err := s.Store.FinishImportJob(context.WithoutCancel(ctx), jobID, JobStatusFailed, summary, &msg); err != nil {
		slog.Warn("mark import job failed", "jobId", jobID, "err", err)
	}
	return ImportJob{}, cause
}

type importRun struct {
	job       ImportJob
	opts      ImportOptions
	initiator string
	dryRun    bool
	archive   archiveIndex
}

// importRow never returns an error; the outcome lands on the item.
func (s *Service) importRow(ctx context.Context, run importRun, row manifestRow) ImportItem {
	item := ImportItem{
		ImportJobID:        run.job.ID,
		LineNumber:         row.Line,
		EmployeeIdentifier: row.EmployeeIdentifier,
		DocumentTypeCode:   row.DocumentTypeCode,
	}
	meta := map[string]any{
		"file_name":       row.FileName,
		"issue_date":      row.IssueDate,
		"expiry_date":     row.ExpiryDate,
		"approval_status": row.ApprovalStatus,
	}
	if row.RequirementID != "" {
		meta["requirement_id"] = row.RequirementID
	}

	err := s.applyRow(ctx, run, row, &item, meta)
	if err != nil {
		msg := err.Error()
		item.Status = ItemStatusFailed
		item.ErrorMessage = &msg
	}
	item.Metadata, _ = json.Marshal(meta)
	return item
}

func (s *Service) applyRow(ctx context.Context, run importRun, row manifestRow, item *ImportItem, meta map[string]any) error {
	if row.EmployeeIdentifier == "" {
		return fmt.Errorf("%w: employee_identifier is required", ErrValidation)
	}
	if row.DocumentTypeCode == "" {
		return fmt.Errorf("%w: document_type_code is required", ErrValidation)
	}
	userID, err := s.matchEmployee(ctx, row.EmployeeIdentifier, run.opts.MatchStrategy)
	if err != nil {
		return err
	}
	item.MatchedUserID = &userID

	docType, err := s.Store.GetTypeByCode(ctx, s.Store.DB, row.DocumentTypeCode)
	if err != nil {
		return err
	}
	requirementID, err := optionalUUID("requirement_id", &row.RequirementID)
	if err != nil {
		return err
	}
	if requirementID != nil {
		req, err := s.Store.GetRequirement(ctx, s.Store.DB, *requirementID)
		if err != nil {
			return err
		}
		if req.DocumentTypeID != docType.ID {
			return fmt.Errorf("%w: requirement %s does not belong to document type %s", ErrValidation, req.ID, docType.Code)
		}
	}

	issue, err := parseDate(row.IssueDate)
	if err != nil {
		return fmt.Errorf("%w: issue_date %q is not a date", ErrValidation, row.IssueDate)
	}
	expiry, err := parseDate(row.ExpiryDate)
	if err != nil {
		return fmt.Errorf("%w: expiry_date %q is not a date", ErrValidation, row.ExpiryDate)
	}
	if err := checkWindowOrder(issue, expiry); err != nil {
		return err
	}

	if run.dryRun {
		if existing, err := s.Store.FindDocumentByScope(ctx, s.Store.DB, userID, docType.ID, requirementID); err == nil {
			item.GeneratedDocumentID = &existing.ID
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		meta["dry_run"] = true
		item.Status = ItemStatusSkipped
		return nil
	}

	if strings.TrimSpace(row.FileName) == "" {
		return fmt.Errorf("%w: file_name is required", ErrValidation)
	}
	if run.archive == nil {
		return fmt.Errorf("%w: job has no archive for %q", ErrValidation, row.FileName)
	}
	data, err := run.archive.read(row.FileName)
	if err != nil {
		return err
	}
	file, err := s.putFile(ctx, userID, docType.Code, row.FileName, contentTypeFor(row.FileName), data)
	if err != nil {
		return err
	}
	meta["object_key"] = file.ObjectKey

	version, err := s.commitImportedVersion(ctx, run, row, userID, docType.ID, requirementID, file, issue, expiry)
	if err != nil {
		return err
	}
	item.GeneratedDocumentID = &version.EmployeeDocumentID
	item.GeneratedVersionID = &version.ID
	item.Status = ItemStatusImported
	return nil
}

// commitImportedVersion writes the document, file and version for one row in a single transaction,
// then applies the row's recorded decision with the initiator as reviewer.
func (s *Service) commitImportedVersion(ctx context.Context, run importRun, row manifestRow, userID, typeID string, requirementID *string, file FileRecord, issue, expiry *time.Time) (DocumentVersion, error) {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return DocumentVersion{}, err
	}
	defer rollback(ctx, tx, "import row")

	doc, _, err := s.getOrCreateDocument(ctx, tx, userID, typeID, requirementID, nil)
	if err != nil {
		return DocumentVersion{}, err
	}
	file.UploadedBy = run.initiator
	stored, err := s.Store.InsertFile(ctx, tx, file)
	if err != nil {
		return DocumentVersion{}, err
	}
	checksum := stored.Checksum
	metadata := uploadMetadata(map[string]any{
		"source":        "import",
		"import_job_id": run.job.ID,
		"line_number":   row.Line,
	}, stored)
	v, err := s.createVersionTx(ctx, tx, CreateVersionInput{
		DocumentID: doc.ID,
		FileID:     stored.ID,
		UploadedBy: run.initiator,
		Checksum:   &checksum,
		Metadata:   metadata,
		ValidFrom:  issue,
		ValidUntil: expiry,
	})
	if err != nil {
		return DocumentVersion{}, err
	}

	switch {
	case row.ApprovalStatus == ApprovalApproved && v.ApprovalStatus == ApprovalPending:
		err = s.approveVersionTx(ctx, tx, ApproveInput{VersionID: v.ID, Approver: run.initiator, ValidFrom: issue, ValidUntil: expiry})
	case row.ApprovalStatus == ApprovalRejected:
		err = s.rejectVersionTx(ctx, tx, v.ID, run.initiator, nil)
	}
	if err != nil {
		return DocumentVersion{}, err
	}
	if row.ApprovalStatus == ApprovalApproved || row.ApprovalStatus == ApprovalRejected {
		if v, err = s.Store.GetVersion(ctx, tx, v.ID); err != nil {
			return DocumentVersion{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return DocumentVersion{}, err
	}

	s.Metrics.Inc(MetricVersionsCreated, 1)
	switch v.ApprovalStatus {
	case ApprovalApproved:
		s.Metrics.Inc(MetricVersionsApproved, 1)
	case ApprovalRejected:
		s.Metrics.Inc(MetricVersionsRejected, 1)
	}
	return v, nil
}

// matchEmployee resolves an identifier with the job's strategy. auto tries username, then email.
func (s *Service) matchEmployee(ctx context.Context, identifier, strategy string) (string, error) {
	var (
		userID string
		err    error
	)
	switch strategy {
	case MatchUsername:
		userID, err = s.Directory.UserIDByUsername(ctx, identifier)
	case MatchEmail:
		userID, err = s.Directory.UserIDByEmail(ctx, identifier)
	default:
		userID, err = s.Directory.UserIDByUsername(ctx, identifier)
		if err != nil {
			userID, err = s.Directory.UserIDByEmail(ctx, identifier)
		}
	}
	if err != nil {
		return "", fmt.Errorf("%w: no active employee matches %q (%s): %v", ErrNotFound, identifier, strategy, err)
	}
	return userID, nil
}
