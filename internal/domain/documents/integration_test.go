package documents

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrdocs/internal/domain/audit"
	"hrdocs/internal/domain/directory"
	"hrdocs/internal/platform/db"
	"hrdocs/internal/platform/storage"
)

const testBucket = "hrdocs-test"

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingMetrics) Inc(name string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name] += delta
}

func (c *countingMetrics) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

type fixture struct {
	ctx     context.Context
	pool    *pgxpool.Pool
	svc     *Service
	objects *storage.MemoryStorage
	users   *directory.Store
	metrics *countingMetrics
	suffix  string
	roleID  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := db.Migrate(ctx, pool, filepath.Join("..", "..", "..", "migrations")); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	objects := storage.NewMemoryStorage()
	if err := objects.EnsureBucket(ctx, testBucket); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}
	users := directory.NewStore(pool)
	metrics := &countingMetrics{counts: map[string]int{}}
	svc := NewService(NewStore(pool), users, objects, audit.New(pool), metrics, Options{Bucket: testBucket})

	f := &fixture{
		ctx:     ctx,
		pool:    pool,
		svc:     svc,
		objects: objects,
		users:   users,
		metrics: metrics,
		suffix:  strings.ReplaceAll(uuid.NewString(), "-", "")[:10],
	}
	f.roleID = f.role(t, "staff")
	return f
}

func (f *fixture) role(t *testing.T, name string) string {
	t.Helper()
	var id string
	if err := f.pool.QueryRow(f.ctx, "INSERT INTO roles (name) VALUES ($1) RETURNING id", name+"-"+f.suffix).Scan(&id); err != nil {
		t.Fatalf("insert role: %v", err)
	}
	return id
}

func (f *fixture) username(name string) string {
	return name + "." + f.suffix
}

func (f *fixture) email(name string) string {
	return name + "." + f.suffix + "@example.com"
}

func (f *fixture) user(t *testing.T, name string) string {
	t.Helper()
	id, err := f.users.CreateUser(f.ctx, directory.NewUser{Username: f.username(name), Email: f.email(name), RoleID: f.roleID})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return id
}

func (f *fixture) docType(t *testing.T, code string, requiresApproval bool) DocumentType {
	t.Helper()
	dt, err := f.svc.CreateType(f.ctx, CreateTypeInput{
		Code:             code + "_" + f.suffix,
		Name:             strings.ToUpper(code),
		Category:         CategoryOnboarding,
		SequenceNo:       1,
		RequiresApproval: &requiresApproval,
	})
	if err != nil {
		t.Fatalf("create type %s: %v", code, err)
	}
	return dt
}

func (f *fixture) document(t *testing.T, userID, typeID string) EmployeeDocument {
	t.Helper()
	doc, _, err := f.svc.GetOrCreateDocument(f.ctx, userID, typeID, nil, nil)
	if err != nil {
		t.Fatalf("get or create document: %v", err)
	}
	return doc
}

func (f *fixture) upload(t *testing.T, docID, userID, name string) DocumentVersion {
	t.Helper()
	v, err := f.svc.UploadVersion(f.ctx, UploadInput{DocumentID: docID, UploadedBy: userID, FileName: name, Data: []byte("%PDF-1.4 " + name)})
	if err != nil {
		t.Fatalf("upload %s: %v", name, err)
	}
	return v
}

func (f *fixture) reload(t *testing.T, docID string) DocumentDetail {
	t.Helper()
	detail, err := f.svc.GetDocument(f.ctx, docID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	return detail
}

func (f *fixture) auditCount(t *testing.T, entityID, action string) int {
	t.Helper()
	var n int
	if err := f.pool.QueryRow(f.ctx, `
    SELECT COUNT(1) FROM audit_events WHERE entity_type = $1 AND entity_id = $2 AND action = $3
  `, EntityEmployeeDocument, entityID, action).Scan(&n); err != nil {
		t.Fatalf("count audit events: %v", err)
	}
	return n
}

func deref(value *string) string {
	if value == nil {
		return "<nil>"
	}
	return *value
}

func TestEndToEndApprovalAndExpiry(t *testing.T) {
	f := newFixture(t)
	dt := f.docType(t, "nda", true)
	if dt.FolderCode != "ON_01" {
		t.Fatalf("expected folder code ON_01, got %s", dt.FolderCode)
	}
	userID := f.user(t, "e2e")

	doc, created, err := f.svc.GetOrCreateDocument(f.ctx, userID, dt.ID, nil, nil)
	if err != nil || !created || doc.Status != StatusMissing {
		t.Fatalf("get or create: %+v created=%v err=%v", doc, created, err)
	}

	v := f.upload(t, doc.ID, userID, "Signed NDA.pdf")
	if v.VersionNo != 1 || v.ApprovalStatus != ApprovalPending {
		t.Fatalf("unexpected version %+v", v)
	}
	detail := f.reload(t, doc.ID)
	if detail.Status != StatusPendingApproval || deref(detail.CurrentVersionID) != v.ID {
		t.Fatalf("expected pending_approval on v1, got %s %s", detail.Status, deref(detail.CurrentVersionID))
	}

	prefix := documentPrefix(userID, dt.Code) + "/Signed_NDA_"
	found := false
	for _, key := range f.objects.Keys(testBucket) {
		if strings.HasPrefix(key, prefix) && strings.HasSuffix(key, ".pdf") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected object under %s, keys: %v", prefix, f.objects.Keys(testBucket))
	}
	file, data, err := f.svc.DownloadVersion(f.ctx, v.ID)
	if err != nil || string(data) != "%PDF-1.4 Signed NDA.pdf" || len(file.Checksum) != 64 {
		t.Fatalf("download: %+v %q %v", file, data, err)
	}

	approved, err := f.svc.ApproveVersion(f.ctx, ApproveInput{VersionID: v.ID, Approver: userID, ValidUntil: day("2025-01-01")})
	if err != nil || approved.ApprovalStatus != ApprovalApproved {
		t.Fatalf("approve: %+v %v", approved, err)
	}
	detail = f.reload(t, doc.ID)
	if detail.Status != StatusActive || formatDay(detail.ValidUntil) != "2025-01-01" {
		t.Fatalf("expected active until 2025-01-01, got %s %s", detail.Status, formatDay(detail.ValidUntil))
	}

	first, err := f.svc.RunExpiryCheck(f.ctx, *day("2025-02-01"), "")
	if err != nil {
		t.Fatalf("expiry check: %v", err)
	}
	if first.ExpiredCount < 1 || first.ReferenceDate != "2025-02-01" {
		t.Fatalf("unexpected expiry result %+v", first)
	}
	if got := f.reload(t, doc.ID).Status; got != StatusExpired {
		t.Fatalf("expected expired, got %s", got)
	}
	if n := f.auditCount(t, doc.ID, ActionDocumentExpired); n != 1 {
		t.Fatalf("expected 1 expiry audit event, got %d", n)
	}

	second, err := f.svc.RunExpiryCheck(f.ctx, *day("2025-02-01"), "")
	if err != nil {
		t.Fatalf("second expiry check: %v", err)
	}
	if second.ExpiredCount != 0 || second.ReactivatedCount != 0 {
		t.Fatalf("expected no-op second run, got %+v", second)
	}
	if n := f.auditCount(t, doc.ID, ActionDocumentExpired); n != 1 {
		t.Fatalf("expected audit count to stay 1, got %d", n)
	}

	if _, err := f.pool.Exec(f.ctx, "UPDATE hr_employee_documents SET valid_until = '2025-03-01' WHERE id = $1", doc.ID); err != nil {
		t.Fatalf("extend validity: %v", err)
	}
	third, err := f.svc.RunExpiryCheck(f.ctx, *day("2025-02-15"), userID)
	if err != nil || third.ReactivatedCount < 1 {
		t.Fatalf("reactivation run: %+v %v", third, err)
	}
	if got := f.reload(t, doc.ID).Status; got != StatusActive {
		t.Fatalf("expected active after reactivation, got %s", got)
	}
	if n := f.auditCount(t, doc.ID, ActionDocumentReactivated); n != 1 {
		t.Fatalf("expected 1 reactivation audit event, got %d", n)
	}

	report, err := f.svc.ComplianceReport(f.ctx, userID)
	if err != nil || !bytes.HasPrefix(report, []byte("%PDF")) {
		t.Fatalf("compliance report: %v", err)
	}
}

func TestCurrentPointerFollowsDecisions(t *testing.T) {
	f := newFixture(t)
	dt := f.docType(t, "contract", true)
	userID := f.user(t, "pointer")
	doc := f.document(t, userID, dt.ID)

	v1 := f.upload(t, doc.ID, userID, "v1.pdf")
	if _, err := f.svc.ApproveVersion(f.ctx, ApproveInput{VersionID: v1.ID, Approver: userID, ValidUntil: day("2031-01-01")}); err != nil {
		t.Fatalf("approve v1: %v", err)
	}
	v2 := f.upload(t, doc.ID, userID, "v2.pdf")
	if v2.VersionNo != 2 {
		t.Fatalf("expected version 2, got %d", v2.VersionNo)
	}
	if d := f.reload(t, doc.ID); deref(d.CurrentVersionID) != v2.ID || d.Status != StatusPendingApproval {
		t.Fatalf("expected pending v2 current, got %s %s", deref(d.CurrentVersionID), d.Status)
	}

	note := "<b>blurry</b>"
	rejected, err := f.svc.RejectVersion(f.ctx, v2.ID, userID, &note)
	if err != nil || rejected.ApprovalStatus != ApprovalRejected || rejected.ApprovalNote != "blurry" {
		t.Fatalf("reject v2: %+v %v", rejected, err)
	}
	d := f.reload(t, doc.ID)
	if deref(d.CurrentVersionID) != v1.ID || d.Status != StatusActive || formatDay(d.ValidUntil) != "2031-01-01" {
		t.Fatalf("expected fallback to v1, got %s %s %s", deref(d.CurrentVersionID), d.Status, formatDay(d.ValidUntil))
	}

	if _, err := f.svc.RejectVersion(f.ctx, v1.ID, userID, nil); err != nil {
		t.Fatalf("reject v1: %v", err)
	}
	d = f.reload(t, doc.ID)
	if d.CurrentVersionID != nil || d.Status != StatusMissing || d.ValidUntil != nil {
		t.Fatalf("expected missing with no current version, got %+v", d.EmployeeDocument)
	}

	if _, err := f.svc.ApproveVersion(f.ctx, ApproveInput{VersionID: v1.ID, Approver: userID}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState approving a rejected version, got %v", err)
	}
	if _, err := f.svc.RejectVersion(f.ctx, v1.ID, userID, nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState rejecting twice, got %v", err)
	}

	v3 := f.upload(t, doc.ID, userID, "v3.pdf")
	v4 := f.upload(t, doc.ID, userID, "v4.pdf")
	if _, err := f.svc.RejectVersion(f.ctx, v3.ID, userID, nil); err != nil {
		t.Fatalf("reject v3: %v", err)
	}
	d = f.reload(t, doc.ID)
	if deref(d.CurrentVersionID) != v4.ID || d.Status != StatusPendingApproval {
		t.Fatalf("expected pending v4 to stay current, got %s %s", deref(d.CurrentVersionID), d.Status)
	}
	if len(d.Versions) != 4 {
		t.Fatalf("expected 4 versions, got %d", len(d.Versions))
	}

	if _, err := f.svc.ApproveVersion(f.ctx, ApproveInput{VersionID: uuid.NewString(), Approver: userID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.metrics.get(MetricVersionsRejected) != 3 {
		t.Fatalf("expected 3 rejections counted, got %d", f.metrics.get(MetricVersionsRejected))
	}
}

func TestAutoApprovedUploadDerivesValidity(t *testing.T) {
	f := newFixture(t)
	approval := false
	days := 10
	dt, err := f.svc.CreateType(f.ctx, CreateTypeInput{
		Code:                "training_" + f.suffix,
		Name:                "Training",
		Category:            CategoryOperations,
		SequenceNo:          4,
		RequiresApproval:    &approval,
		DefaultValidityDays: &days,
	})
	if err != nil {
		t.Fatalf("create type: %v", err)
	}
	if dt.FolderCode != "OP_04" {
		t.Fatalf("unexpected folder code %s", dt.FolderCode)
	}
	userID := f.user(t, "auto")
	doc := f.document(t, userID, dt.ID)

	v, err := f.svc.UploadVersion(f.ctx, UploadInput{DocumentID: doc.ID, UploadedBy: userID, FileName: "cert.pdf", Data: []byte("cert"), ValidFrom: day("2030-01-01")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if v.ApprovalStatus != ApprovalApproved || v.ApprovedBy == nil || *v.ApprovedBy != userID {
		t.Fatalf("expected auto-approval by uploader, got %+v", v)
	}
	d := f.reload(t, doc.ID)
	if d.Status != StatusActive || formatDay(d.ValidFrom) != "2030-01-01" || formatDay(d.ValidUntil) != "2030-01-11" {
		t.Fatalf("unexpected window %s %s..%s", d.Status, formatDay(d.ValidFrom), formatDay(d.ValidUntil))
	}
}

func TestConcurrentVersionsAreMonotonic(t *testing.T) {
	f := newFixture(t)
	dt := f.docType(t, "permit", true)
	userID := f.user(t, "concurrent")
	doc := f.document(t, userID, dt.ID)

	const workers = 10
	fileIDs := make([]string, workers)
	for i := range fileIDs {
		rec, err := f.svc.Store.InsertFile(f.ctx, f.pool, FileRecord{
			Bucket: testBucket, ObjectKey: fmt.Sprintf("k/%s/%d", f.suffix, i), OriginalName: "f.pdf",
			ContentType: "application/pdf", SizeBytes: 1,
		})
		if err != nil {
			t.Fatalf("insert file: %v", err)
		}
		fileIDs[i] = rec.ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		numbers  []int
		failures []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(fileID string) {
			defer wg.Done()
			v, err := f.svc.CreateVersion(f.ctx, CreateVersionInput{DocumentID: doc.ID, FileID: fileID, UploadedBy: userID})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			numbers = append(numbers, v.VersionNo)
		}(fileIDs[i])
	}
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("concurrent create failed: %v", failures)
	}
	sort.Ints(numbers)
	for i, n := range numbers {
		if n != i+1 {
			t.Fatalf("expected versions 1..%d, got %v", workers, numbers)
		}
	}

	d := f.reload(t, doc.ID)
	if len(d.Versions) != workers {
		t.Fatalf("expected %d versions, got %d", workers, len(d.Versions))
	}
	latest := d.Versions[0]
	for _, v := range d.Versions {
		if v.VersionNo > latest.VersionNo {
			latest = v
		}
	}
	if deref(d.CurrentVersionID) != latest.ID {
		t.Fatalf("expected current to be version %d", latest.VersionNo)
	}
}

func TestGetOrCreateDocumentScope(t *testing.T) {
	f := newFixture(t)
	dt := f.docType(t, "policy", true)
	other := f.docType(t, "other", true)
	userID := f.user(t, "scope")

	req, err := f.svc.CreateRequirement(f.ctx, CreateRequirementInput{DocumentTypeID: dt.ID})
	if err != nil {
		t.Fatalf("create requirement: %v", err)
	}
	foreign, err := f.svc.CreateRequirement(f.ctx, CreateRequirementInput{DocumentTypeID: other.ID})
	if err != nil {
		t.Fatalf("create foreign requirement: %v", err)
	}

	first, created, err := f.svc.GetOrCreateDocument(f.ctx, userID, dt.ID, nil, nil)
	if err != nil || !created {
		t.Fatalf("first call: %v created=%v", err, created)
	}
	second, created, err := f.svc.GetOrCreateDocument(f.ctx, userID, dt.ID, nil, nil)
	if err != nil || created || second.ID != first.ID {
		t.Fatalf("expected same document, got %s vs %s (created=%v, err=%v)", second.ID, first.ID, created, err)
	}

	scoped, created, err := f.svc.GetOrCreateDocument(f.ctx, userID, dt.ID, &req.ID, nil)
	if err != nil || !created || scoped.ID == first.ID {
		t.Fatalf("expected separate requirement-scoped document: %v created=%v", err, created)
	}

	var wg sync.WaitGroup
	ids := make([]string, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, _, err := f.svc.GetOrCreateDocument(f.ctx, userID, dt.ID, &req.ID, nil)
			ids[i], errs[i] = doc.ID, err
		}(i)
	}
	wg.Wait()
	for i := range ids {
		if errs[i] != nil || ids[i] != scoped.ID {
			t.Fatalf("concurrent get-or-create %d: %s %v", i, ids[i], errs[i])
		}
	}

	if _, _, err := f.svc.GetOrCreateDocument(f.ctx, userID, dt.ID, &foreign.ID, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for foreign requirement, got %v", err)
	}
	if _, _, err := f.svc.GetOrCreateDocument(f.ctx, uuid.NewString(), dt.ID, nil, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestSyncRequirementIsIdempotent(t *testing.T) {
	f := newFixture(t)
	dt := f.docType(t, "handbook", true)
	f.user(t, "sync.a")
	f.user(t, "sync.b")
	if _, err := f.users.CreateUser(f.ctx, directory.NewUser{Username: f.username("sync.off"), Email: f.email("sync.off"), RoleID: f.roleID, Status: directory.UserStatusInactive}); err != nil {
		t.Fatalf("create inactive user: %v", err)
	}

	req, err := f.svc.CreateRequirement(f.ctx, CreateRequirementInput{DocumentTypeID: dt.ID, RoleID: &f.roleID})
	if err != nil {
		t.Fatalf("create requirement: %v", err)
	}

	first, err := f.svc.SyncRequirement(f.ctx, req.ID, "")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if first.Processed != 2 || first.Created != 2 || first.Existing != 0 {
		t.Fatalf("unexpected first sync %+v", first)
	}
	second, err := f.svc.SyncRequirement(f.ctx, req.ID, "")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.Processed != 2 || second.Created != 0 || second.Existing != 2 {
		t.Fatalf("unexpected second sync %+v", second)
	}

	docs, err := f.svc.ListDocuments(f.ctx, DocumentFilter{DocumentTypeID: dt.ID})
	if err != nil || len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d %v", len(docs), err)
	}
	for _, d := range docs {
		if d.Status != StatusMissing || deref(d.RequirementID) != req.ID {
			t.Fatalf("unexpected synced document %+v", d)
		}
	}

	if _, err := f.svc.SyncRequirement(f.ctx, uuid.NewString(), ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range names {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := fw.Write([]byte(files[name])); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestImportRowIsolation(t *testing.T) {
	f := newFixture(t)
	dt := f.docType(t, "imported", true)
	adminID := f.user(t, "admin")
	aliceID := f.user(t, "alice")
	bobID := f.user(t, "bob")

	manifest := "employee_identifier,document_type_code,file_name,issue_date,expiry_date,approval_status\n" +
		fmt.Sprintf("%s,%s,a1.pdf,2025-06-01,2030-06-01,approved\n", f.username("alice"), dt.Code) +
		fmt.Sprintf("%s,%s,b1.pdf,,,\n", f.email("bob"), strings.ToUpper(dt.Code)) +
		fmt.Sprintf("ghost-%s,%s,a1.pdf,,,\n", f.suffix, dt.Code) +
		fmt.Sprintf("%s,%s,A2.PDF,,,rejected\n", f.username("alice"), dt.Code) +
		fmt.Sprintf("%s,%s,b1.pdf,2025-01-01,2031-01-01,\n", f.username("bob"), dt.Code)
	archive := zipOf(t, map[string]string{
		"scans/a1.pdf":  "alice one",
		"a2.pdf":        "alice two",
		"nested/b1.pdf": "bob one",
	})

	job, err := f.svc.StageImportJob(f.ctx, StageImportInput{
		ManifestName: "manifest.csv", ManifestData: []byte(manifest),
		ArchiveName: "scans.zip", ArchiveData: archive,
		CreatedBy: adminID,
	})
	if err != nil {
		t.Fatalf("stage job: %v", err)
	}
	if job.Status != JobStatusUploaded || job.ArchiveKey == nil {
		t.Fatalf("unexpected staged job %+v", job)
	}

	done, err := f.svc.ProcessImportJob(f.ctx, job.ID, adminID, false)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if done.Status != JobStatusCompleted || done.SuccessCount != 4 || done.FailureCount != 1 || done.TotalRows != 5 || done.ProcessedRows != 5 {
		t.Fatalf("unexpected job result %+v", done)
	}

	detail, err := f.svc.GetImportJob(f.ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if len(detail.Items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(detail.Items))
	}
	failed := detail.Items[2]
	if failed.LineNumber != 3 || failed.Status != ItemStatusFailed || failed.ErrorMessage == nil || !strings.Contains(*failed.ErrorMessage, "ghost") {
		t.Fatalf("unexpected failed item %+v", failed)
	}
	for _, item := range detail.Items {
		if item.Status == ItemStatusImported && (item.GeneratedVersionID == nil || item.MatchedUserID == nil) {
			t.Fatalf("imported item without generated ids: %+v", item)
		}
	}

	alice, err := f.svc.Store.FindDocumentByScope(f.ctx, f.pool, aliceID, dt.ID, nil)
	if err != nil {
		t.Fatalf("find alice document: %v", err)
	}
	if alice.Status != StatusActive || formatDay(alice.ValidFrom) != "2025-06-01" || formatDay(alice.ValidUntil) != "2030-06-01" {
		t.Fatalf("unexpected alice document %+v", alice)
	}
	aliceDetail := f.reload(t, alice.ID)
	if len(aliceDetail.Versions) != 2 {
		t.Fatalf("expected 2 alice versions, got %d", len(aliceDetail.Versions))
	}

	bob, err := f.svc.Store.FindDocumentByScope(f.ctx, f.pool, bobID, dt.ID, nil)
	if err != nil {
		t.Fatalf("find bob document: %v", err)
	}
	if bob.Status != StatusPendingApproval {
		t.Fatalf("expected bob pending approval, got %s", bob.Status)
	}

	aliceKeys := 0
	for _, key := range f.objects.Keys(testBucket) {
		if strings.HasPrefix(key, documentPrefix(aliceID, dt.Code)+"/a") {
			aliceKeys++
		}
	}
	if aliceKeys != 2 {
		t.Fatalf("expected 2 alice objects, got %d", aliceKeys)
	}

	if _, err := f.pool.Exec(f.ctx, "UPDATE hr_document_import_jobs SET status = 'processing' WHERE id = $1", job.ID); err != nil {
		t.Fatalf("force processing: %v", err)
	}
	if _, err := f.svc.ProcessImportJob(f.ctx, job.ID, adminID, false); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for claimed job, got %v", err)
	}
	if _, err := f.svc.ProcessImportJob(f.ctx, uuid.NewString(), adminID, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown job, got %v", err)
	}
}

func TestImportDryRunHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	dt := f.docType(t, "dryrun", true)
	adminID := f.user(t, "dry.admin")
	aliceID := f.user(t, "dry.alice")
	carolID := f.user(t, "dry.carol")
	existing := f.document(t, aliceID, dt.ID)

	manifest := "employee_identifier,document_type_code,file_name,approval_status\n" +
		fmt.Sprintf("%s,%s,a.pdf,approved\n", f.username("dry.alice"), dt.Code) +
		fmt.Sprintf("%s,%s,c.pdf,\n", f.email("dry.carol"), dt.Code) +
		fmt.Sprintf("nobody-%s,%s,x.pdf,\n", f.suffix, dt.Code)
	job, err := f.svc.StageImportJob(f.ctx, StageImportInput{
		ManifestData: []byte(manifest),
		ArchiveData:  zipOf(t, map[string]string{"a.pdf": "a", "c.pdf": "c"}),
		CreatedBy:    adminID,
	})
	if err != nil {
		t.Fatalf("stage job: %v", err)
	}
	putsBefore := f.objects.PutCount()

	done, err := f.svc.ProcessImportJob(f.ctx, job.ID, adminID, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if f.objects.PutCount() != putsBefore {
		t.Fatalf("dry run wrote %d objects", f.objects.PutCount()-putsBefore)
	}
	if !done.DryRun || done.Status != JobStatusCompleted || done.SuccessCount != 2 || done.FailureCount != 1 {
		t.Fatalf("unexpected dry run job %+v", done)
	}

	detail, err := f.svc.GetImportJob(f.ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if detail.Items[0].Status != ItemStatusSkipped || deref(detail.Items[0].GeneratedDocumentID) != existing.ID {
		t.Fatalf("unexpected alice item %+v", detail.Items[0])
	}
	if detail.Items[1].Status != ItemStatusSkipped || detail.Items[1].GeneratedDocumentID != nil {
		t.Fatalf("unexpected carol item %+v", detail.Items[1])
	}

	if _, err := f.svc.Store.FindDocumentByScope(f.ctx, f.pool, carolID, dt.ID, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("dry run must not create documents, got %v", err)
	}
	after := f.reload(t, existing.ID)
	if after.Status != StatusMissing || len(after.Versions) != 0 {
		t.Fatalf("dry run changed existing document: %s with %d versions", after.Status, len(after.Versions))
	}
}

func TestImportJobLevelFailures(t *testing.T) {
	f := newFixture(t)
	dt := f.docType(t, "broken", true)
	userID := f.user(t, "broken")

	job, err := f.svc.CreateImportJob(f.ctx, CreateImportJobInput{ManifestBucket: testBucket, ManifestKey: "hr-documents/imports/missing-" + f.suffix + ".csv"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if _, err := f.svc.ProcessImportJob(f.ctx, job.ID, userID, false); !errors.Is(err, ErrExternalIO) {
		t.Fatalf("expected ErrExternalIO, got %v", err)
	}
	failed, err := f.svc.GetImportJob(f.ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if failed.Status != JobStatusFailed || failed.ErrorLog == nil || failed.CompletedAt == nil {
		t.Fatalf("expected failed job with error log, got %+v", failed.ImportJob)
	}

	manifest := fmt.Sprintf("employee_identifier,document_type_code,file_name\n%s,%s,a.pdf\n", f.username("broken"), dt.Code)
	noArchive, err := f.svc.StageImportJob(f.ctx, StageImportInput{ManifestData: []byte(manifest)})
	if err != nil {
		t.Fatalf("stage job: %v", err)
	}
	done, err := f.svc.ProcessImportJob(f.ctx, noArchive.ID, userID, false)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if done.Status != JobStatusFailed || done.SuccessCount != 0 || done.FailureCount != 1 {
		t.Fatalf("expected all-rows-failed job, got %+v", done)
	}
}

func TestShareLinkLifecycle(t *testing.T) {
	f := newFixture(t)
	dt := f.docType(t, "shared", true)
	userID := f.user(t, "share")
	doc := f.document(t, userID, dt.ID)
	v := f.upload(t, doc.ID, userID, "shared.pdf")

	otherDoc := f.document(t, f.user(t, "share.other"), dt.ID)
	otherVersion := f.upload(t, otherDoc.ID, userID, "other.pdf")

	views := 3
	link, err := f.svc.CreateShareLink(f.ctx, CreateShareLinkInput{
		DocumentID: doc.ID, VersionID: &v.ID, MaxViews: &views,
		AllowedRoles: []string{"hr_admin", "hr_admin"}, CreatedBy: userID,
	})
	if err != nil {
		t.Fatalf("create share link: %v", err)
	}
	if !link.Usable || link.Token == "" || len(link.AllowedRoles) != 1 {
		t.Fatalf("unexpected link %+v", link)
	}
	if d := time.Until(link.ExpiresAt); d < 71*time.Hour || d > 73*time.Hour {
		t.Fatalf("expected default 72h expiry, got %v", d)
	}

	if _, err := f.svc.CreateShareLink(f.ctx, CreateShareLinkInput{DocumentID: doc.ID, VersionID: &otherVersion.ID}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for foreign version, got %v", err)
	}

	got, err := f.svc.GetShareLink(f.ctx, link.Token)
	if err != nil || got.ID != link.ID {
		t.Fatalf("get share link: %v", err)
	}
	off, err := f.svc.DeactivateShareLink(f.ctx, link.Token)
	if err != nil || off.IsActive || off.Usable || off.DeactivatedAt == nil {
		t.Fatalf("deactivate: %+v %v", off, err)
	}
	again, err := f.svc.DeactivateShareLink(f.ctx, link.Token)
	if err != nil || !again.DeactivatedAt.Equal(*off.DeactivatedAt) {
		t.Fatalf("second deactivate should keep timestamp: %+v %v", again, err)
	}

	links, err := f.svc.ListShareLinks(f.ctx, doc.ID)
	if err != nil || len(links) != 1 {
		t.Fatalf("list share links: %d %v", len(links), err)
	}
	if _, err := f.svc.GetShareLink(f.ctx, "missing-"+f.suffix); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListExpiringUsesRenewWindow(t *testing.T) {
	f := newFixture(t)
	renew := 30
	dt, err := f.svc.CreateType(f.ctx, CreateTypeInput{
		Code: "visa_" + f.suffix, Name: "Visa", Category: CategoryOperations, SequenceNo: 9, DefaultRenewBeforeDays: &renew,
	})
	if err != nil {
		t.Fatalf("create type: %v", err)
	}
	userID := f.user(t, "expiring")
	doc := f.document(t, userID, dt.ID)
	v := f.upload(t, doc.ID, userID, "visa.pdf")

	today := *dateOnly(time.Now())
	until := today.AddDate(0, 0, 10)
	if _, err := f.svc.ApproveVersion(f.ctx, ApproveInput{VersionID: v.ID, Approver: userID, ValidUntil: &until}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	expiring, err := f.svc.ListExpiring(f.ctx, today)
	if err != nil {
		t.Fatalf("list expiring: %v", err)
	}
	for _, e := range expiring {
		if e.ID == doc.ID {
			if e.DaysRemaining != 10 || e.RenewBeforeDays != 30 {
				t.Fatalf("unexpected expiring entry %+v", e)
			}
			return
		}
	}
	t.Fatal("expected document in expiring list")
}
