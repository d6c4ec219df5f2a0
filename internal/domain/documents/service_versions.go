package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"hrdocs/internal/platform/db"
	"hrdocs/internal/platform/querier"
)

type CreateVersionInput struct {
	DocumentID string
	FileID     string
	UploadedBy string
	Checksum   *string
	Metadata   map[string]any
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

type ApproveInput struct {
	VersionID  string
	Approver   string
	Note       *string
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

type UploadInput struct {
	DocumentID  string
	UploadedBy  string
	FileName    string
	ContentType string
	Data        []byte
	Metadata    map[string]any
	ValidFrom   *time.Time
	ValidUntil  *time.Time
}

func checkWindowOrder(from, until *time.Time) error {
	if from != nil && until != nil && until.Before(*from) {
		return fmt.Errorf("%w: validUntil must be on or after validFrom", ErrValidation)
	}
	return nil
}

// GetOrCreateDocument returns the single employee document at (user, type, requirement).
// A requirement must belong to the given type.
func (s *Service) GetOrCreateDocument(ctx context.Context, userID, documentTypeID string, requirementID *string, notes *string) (EmployeeDocument, bool, error) {
	if err := requireUUID("user id", userID); err != nil {
		return EmployeeDocument{}, false, err
	}
	if err := requireUUID("document type id", documentTypeID); err != nil {
		return EmployeeDocument{}, false, err
	}
	reqID, err := optionalUUID("requirement id", requirementID)
	if err != nil {
		return EmployeeDocument{}, false, err
	}
	if _, err := s.Store.GetType(ctx, s.Store.DB, documentTypeID); err != nil {
		return EmployeeDocument{}, false, err
	}
	if reqID != nil {
		req, err := s.Store.GetRequirement(ctx, s.Store.DB, *reqID)
		if err != nil {
			return EmployeeDocument{}, false, err
		}
		if req.DocumentTypeID != documentTypeID {
			return EmployeeDocument{}, false, fmt.Errorf("%w: requirement %s does not belong to document type %s", ErrValidation, *reqID, documentTypeID)
		}
	}
	return s.getOrCreateDocument(ctx, s.Store.DB, userID, documentTypeID, reqID, sanitizeNote(notes))
}

func (s *Service) getOrCreateDocument(ctx context.Context, q querier.Querier, userID, documentTypeID string, requirementID *string, notes *string) (EmployeeDocument, bool, error) {
	id, created, err := s.Store.InsertDocumentIfAbsent(ctx, q, userID, documentTypeID, requirementID, notes)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return EmployeeDocument{}, false, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return EmployeeDocument{}, false, err
	}
	if created {
		doc, err := s.Store.GetDocument(ctx, q, id)
		return doc, true, err
	}
	doc, err := s.Store.FindDocumentByScope(ctx, q, userID, documentTypeID, requirementID)
	return doc, false, err
}

func (s *Service) GetDocument(ctx context.Context, id string) (DocumentDetail, error) {
	if err := requireUUID("document id", id); err != nil {
		return DocumentDetail{}, err
	}
	doc, err := s.Store.GetDocument(ctx, s.Store.DB, id)
	if err != nil {
		return DocumentDetail{}, err
	}
	versions, err := s.Store.ListVersions(ctx, s.Store.DB, id)
	if err != nil {
		return DocumentDetail{}, err
	}
	if versions == nil {
		versions = []DocumentVersion{}
	}
	return DocumentDetail{EmployeeDocument: doc, Versions: versions}, nil
}

func (s *Service) ListDocuments(ctx context.Context, filter DocumentFilter) ([]EmployeeDocument, error) {
	if filter.UserID != "" {
		if err := requireUUID("user id", filter.UserID); err != nil {
			return nil, err
		}
	}
	if filter.DocumentTypeID != "" {
		if err := requireUUID("document type id", filter.DocumentTypeID); err != nil {
			return nil, err
		}
	}
	switch filter.Status {
	case "", StatusMissing, StatusPendingApproval, StatusActive, StatusExpired:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.Store.ListDocuments(ctx, filter)
}

// CreateVersion adds the next version to a document under its row lock.
func (s *Service) CreateVersion(ctx context.Context, in CreateVersionInput) (DocumentVersion, error) {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return DocumentVersion{}, err
	}
	defer rollback(ctx, tx, "create version")

	v, err := s.createVersionTx(ctx, tx, in)
	if err != nil {
		return DocumentVersion{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return DocumentVersion{}, err
	}
	s.recordVersionCreated(v)
	return v, nil
}

func (s *Service) recordVersionCreated(v DocumentVersion) {
	s.Metrics.Inc(MetricVersionsCreated, 1)
	if v.ApprovalStatus == ApprovalApproved {
		s.Metrics.Inc(MetricVersionsApproved, 1)
	}
}

func (s *Service) createVersionTx(ctx context.Context, tx pgx.Tx, in CreateVersionInput) (DocumentVersion, error) {
	if err := requireUUID("document id", in.DocumentID); err != nil {
		return DocumentVersion{}, err
	}
	if err := requireUUID("file id", in.FileID); err != nil {
		return DocumentVersion{}, err
	}
	if err := checkWindowOrder(in.ValidFrom, in.ValidUntil); err != nil {
		return DocumentVersion{}, err
	}

	doc, err := s.Store.LockDocumentTx(ctx, tx, in.DocumentID)
	if err != nil {
		return DocumentVersion{}, err
	}
	next, err := s.Store.NextVersionNoTx(ctx, tx, doc.ID)
	if err != nil {
		return DocumentVersion{}, err
	}

	metadata := withValidityMetadata(in.Metadata, in.ValidFrom, in.ValidUntil)
	approval, docStatus := ApprovalPending, StatusPendingApproval
	var window *validityWindow
	if !doc.RequiresApproval {
		approval, docStatus = ApprovalApproved, StatusActive
		raw, err := json.Marshal(metadata)
		if err != nil {
			return DocumentVersion{}, fmt.Errorf("%w: file metadata: %v", ErrValidation, err)
		}
		resolved := resolveValidity(s.today(), doc.ValidityDays, metadataWindow(raw))
		window = &resolved
	}

	v, err := s.Store.InsertVersionTx(ctx, tx, newVersion{
		DocumentID:     doc.ID,
		FileID:         in.FileID,
		VersionNo:      next,
		UploadedBy:     in.UploadedBy,
		ApprovalStatus: approval,
		Checksum:       trimmedOrNil(in.Checksum),
		Metadata:       metadata,
		Window:         window,
	})
	if err != nil {
		return DocumentVersion{}, err
	}
	if err := s.Store.SetDocumentStateTx(ctx, tx, doc.ID, &v.ID, docStatus, window); err != nil {
		return DocumentVersion{}, err
	}
	return v, nil
}

func (s *Service) ApproveVersion(ctx context.Context, in ApproveInput) (DocumentVersion, error) {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return DocumentVersion{}, err
	}
	defer rollback(ctx, tx, "approve version")

	if err := s.approveVersionTx(ctx, tx, in); err != nil {
		return DocumentVersion{}, err
	}
	v, err := s.Store.GetVersion(ctx, tx, in.VersionID)
	if err != nil {
		return DocumentVersion{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return DocumentVersion{}, err
	}
	s.Metrics.Inc(MetricVersionsApproved, 1)
	return v, nil
}

// approveVersionTx resolves validity as explicit args, then dates stamped into the
// version's metadata at upload, then the document's previous window.
func (s *Service) approveVersionTx(ctx context.Context, tx pgx.Tx, in ApproveInput) error {
	if err := requireUUID("version id", in.VersionID); err != nil {
		return err
	}
	if err := checkWindowOrder(in.ValidFrom, in.ValidUntil); err != nil {
		return err
	}

	v, doc, err := s.Store.LockVersionTx(ctx, tx, in.VersionID)
	if err != nil {
		return err
	}
	if v.ApprovalStatus != ApprovalPending {
		return fmt.Errorf("%w: version %s is %s, only pending versions can be approved", ErrInvalidState, v.ID, v.ApprovalStatus)
	}

	window := resolveValidity(s.today(), doc.ValidityDays,
		validityWindow{From: in.ValidFrom, Until: in.ValidUntil},
		metadataWindow(v.FileMetadata),
		validityWindow{From: doc.ValidFrom, Until: doc.ValidUntil},
	)
	if err := s.Store.ApproveVersionTx(ctx, tx, v.ID, in.Approver, sanitizeNote(in.Note), window); err != nil {
		return err
	}
	return s.Store.SetDocumentStateTx(ctx, tx, doc.ID, &v.ID, StatusActive, &window)
}

func (s *Service) RejectVersion(ctx context.Context, versionID, approver string, note *string) (DocumentVersion, error) {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return DocumentVersion{}, err
	}
	defer rollback(ctx, tx, "reject version")

	if err := s.rejectVersionTx(ctx, tx, versionID, approver, note); err != nil {
		return DocumentVersion{}, err
	}
	v, err := s.Store.GetVersion(ctx, tx, versionID)
	if err != nil {
		return DocumentVersion{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return DocumentVersion{}, err
	}
	s.Metrics.Inc(MetricVersionsRejected, 1)
	return v, nil
}

// rejectVersionTx points the document back at its latest approved version, or clears it to
// missing. A newer pending upload that is current stays current.
func (s *Service) rejectVersionTx(ctx context.Context, tx pgx.Tx, versionID, approver string, note *string) error {
	if err := requireUUID("version id", versionID); err != nil {
		return err
	}
	v, doc, err := s.Store.LockVersionTx(ctx, tx, versionID)
	if err != nil {
		return err
	}
	if v.ApprovalStatus == ApprovalRejected {
		return fmt.Errorf("%w: version %s is already rejected", ErrInvalidState, v.ID)
	}
	if err := s.Store.RejectVersionTx(ctx, tx, v.ID, approver, sanitizeNote(note)); err != nil {
		return err
	}

	if doc.CurrentVersionID != nil && *doc.CurrentVersionID != v.ID {
		currentStatus, err := s.Store.VersionStatusTx(ctx, tx, *doc.CurrentVersionID)
		if err != nil {
			return err
		}
		if currentStatus == ApprovalPending {
			return nil
		}
	}

	latest, err := s.Store.LatestApprovedVersionTx(ctx, tx, doc.ID)
	if err != nil {
		return err
	}
	if latest == nil {
		return s.Store.SetDocumentStateTx(ctx, tx, doc.ID, nil, StatusMissing, &validityWindow{})
	}
	return s.Store.SetDocumentStateTx(ctx, tx, doc.ID, &latest.ID, StatusActive,
		&validityWindow{From: latest.ValidFrom, Until: latest.ValidUntil})
}

// UploadVersion stores the bytes, records the file and creates the version in one transaction.
// The object write happens first and is not undone if the database work fails.
func (s *Service) UploadVersion(ctx context.Context, in UploadInput) (DocumentVersion, error) {
	if err := requireUUID("document id", in.DocumentID); err != nil {
		return DocumentVersion{}, err
	}
	if len(in.Data) == 0 {
		return DocumentVersion{}, fmt.Errorf("%w: file is empty", ErrValidation)
	}
	if strings.TrimSpace(in.FileName) == "" {
		return DocumentVersion{}, fmt.Errorf("%w: file name is required", ErrValidation)
	}
	if err := checkWindowOrder(in.ValidFrom, in.ValidUntil); err != nil {
		return DocumentVersion{}, err
	}
	doc, err := s.Store.GetDocument(ctx, s.Store.DB, in.DocumentID)
	if err != nil {
		return DocumentVersion{}, err
	}

	contentType := in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(in.FileName)
	}
	file, err := s.putFile(ctx, doc.UserID, doc.DocumentTypeCode, in.FileName, contentType, in.Data)
	if err != nil {
		return DocumentVersion{}, err
	}

	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return DocumentVersion{}, err
	}
	defer rollback(ctx, tx, "upload version")

	file.UploadedBy = in.UploadedBy
	stored, err := s.Store.InsertFile(ctx, tx, file)
	if err != nil {
		return DocumentVersion{}, err
	}
	checksum := stored.Checksum
	v, err := s.createVersionTx(ctx, tx, CreateVersionInput{
		DocumentID: doc.ID,
		FileID:     stored.ID,
		UploadedBy: in.UploadedBy,
		Checksum:   &checksum,
		Metadata:   uploadMetadata(in.Metadata, stored),
		ValidFrom:  in.ValidFrom,
		ValidUntil: in.ValidUntil,
	})
	if err != nil {
		return DocumentVersion{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return DocumentVersion{}, err
	}
	s.recordVersionCreated(v)
	return v, nil
}

// putFile writes the object under the document's folder and returns an unsaved file record.
func (s *Service) putFile(ctx context.Context, userID, typeCode, fileName, contentType string, data []byte) (FileRecord, error) {
	if err := s.Storage.MakeFolder(ctx, s.Options.Bucket, documentPrefix(userID, typeCode)); err != nil {
		return FileRecord{}, fmt.Errorf("%w: %v", ErrExternalIO, err)
	}
	key := newObjectKey(userID, typeCode, fileName)
	if err := s.Storage.PutObject(ctx, s.Options.Bucket, key, data, contentType); err != nil {
		return FileRecord{}, fmt.Errorf("%w: %v", ErrExternalIO, err)
	}
	sum := sha256.Sum256(data)
	return FileRecord{
		Bucket:       s.Options.Bucket,
		ObjectKey:    key,
		OriginalName: fileName,
		ContentType:  contentType,
		SizeBytes:    int64(len(data)),
		Checksum:     hex.EncodeToString(sum[:]),
	}, nil
}

func uploadMetadata(metadata map[string]any, file FileRecord) map[string]any {
	out := make(map[string]any, len(metadata)+3)
	for k, v := range metadata {
		out[k] = v
	}
	out["original_name"] = file.OriginalName
	out["content_type"] = file.ContentType
	out["size_bytes"] = file.SizeBytes
	return out
}

func (s *Service) GetVersion(ctx context.Context, versionID string) (DocumentVersion, error) {
	if err := requireUUID("version id", versionID); err != nil {
		return DocumentVersion{}, err
	}
	return s.Store.GetVersion(ctx, s.Store.DB, versionID)
}

// DownloadVersion fetches the stored bytes behind a version.
func (s *Service) DownloadVersion(ctx context.Context, versionID string) (FileRecord, []byte, error) {
	if err := requireUUID("version id", versionID); err != nil {
		return FileRecord{}, nil, err
	}
	v, err := s.Store.GetVersion(ctx, s.Store.DB, versionID)
	if err != nil {
		return FileRecord{}, nil, err
	}
	file, err := s.Store.GetFile(ctx, v.FileID)
	if err != nil {
		return FileRecord{}, nil, err
	}
	data, err := s.Storage.GetObject(ctx, file.Bucket, file.ObjectKey)
	if err != nil {
		return FileRecord{}, nil, fmt.Errorf("%w: %v", ErrExternalIO, err)
	}
	return file, data, nil
}
