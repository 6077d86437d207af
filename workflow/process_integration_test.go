package workflow_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/models"
	"bitbucket.org/mmdatafocus/ocr_backend/workflow"
)

// stubExtractor replays canned model responses keyed on whether the prompt
// asked for a table.
type stubExtractor struct {
	flatResponse  string
	tableResponse string
	calls         int
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte, _ string, prompt string) (string, error) {
	s.calls++
	if strings.Contains(prompt, "Extract table data") {
		return s.tableResponse, nil
	}
	return s.flatResponse, nil
}

func setupIntegrationEnv(t *testing.T) {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "ocr_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()
}

func createTestUser(t *testing.T, ctx context.Context, credits int) *models.User {
	t.Helper()
	user, err := models.NewUser{
		Name:     "Test User",
		Email:    fmt.Sprintf("user%d@test.local", time.Now().UnixNano()),
		Password: "secret123",
	}.MapInput()
	if err != nil {
		t.Fatalf("MapInput: %v", err)
	}
	user.CreditsRemaining = credits
	if err := user.Store(config.GetDB(), ctx); err != nil {
		t.Fatalf("store user: %v", err)
	}
	return user
}

func createInvoiceTemplate(t *testing.T, ctx context.Context, userId int) *models.Template {
	t.Helper()
	db := config.GetDB()

	template := &models.Template{UserId: userId, Name: "Invoice"}
	if err := template.Store(db, ctx); err != nil {
		t.Fatalf("store template: %v", err)
	}

	vendor := &models.TemplateField{
		TemplateId: template.ID, FieldName: "vendor_name",
		FieldOrder: 0, FieldType: models.FieldTypeText,
	}
	if err := vendor.Store(db, ctx); err != nil {
		t.Fatalf("store field: %v", err)
	}

	table := &models.TemplateField{
		TemplateId: template.ID, FieldName: "item_description",
		FieldOrder: 1, FieldType: models.FieldTypeTable,
		SubTemplateFields: []*models.SubTemplateField{
			{FieldName: "description", DataType: models.DataTypeString},
			{FieldName: "quantity", DataType: models.DataTypeFloat},
			{FieldName: "unit_price", DataType: models.DataTypeFloat},
		},
	}
	if err := table.Store(db, ctx); err != nil {
		t.Fatalf("store table field: %v", err)
	}
	return template
}

func createTestDocument(t *testing.T, ctx context.Context, userId, templateId int, withFile bool) *models.Document {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), "scan.jpg")
	if withFile {
		if err := os.WriteFile(filePath, []byte("not really a jpeg"), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	document := &models.Document{
		UserId:           userId,
		TemplateId:       templateId,
		FilePath:         filePath,
		OriginalFilename: "scan.jpg",
		Status:           models.DocumentStatusPending,
	}
	if err := document.Store(config.GetDB(), ctx); err != nil {
		t.Fatalf("store document: %v", err)
	}
	return document
}

func TestProcessDocument_FullPipeline(t *testing.T) {
	setupIntegrationEnv(t)
	ctx := context.Background()

	user := createTestUser(t, ctx, 5)
	template := createInvoiceTemplate(t, ctx, user.ID)
	document := createTestDocument(t, ctx, user.ID, template.ID, true)

	extractor := &stubExtractor{
		flatResponse:  `{"vendor_name": "ACME"}`,
		tableResponse: `{"rows": [{"description": "Bolt", "quantity": "10", "unit_price": "2.50"}]}`,
	}
	processor := workflow.NewProcessor(extractor, nil)

	result, err := processor.ProcessDocument(ctx, document.ID, template.ID)
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}

	if result.Status != models.DocumentStatusProcessed {
		t.Errorf("status = %s, want processed", result.Status)
	}
	if result.OCRRecordsCreated != 1 || result.LineItemsCreated != 1 {
		t.Errorf("created %d scalar / %d rows, want 1 / 1", result.OCRRecordsCreated, result.LineItemsCreated)
	}
	if result.ExtractedData["vendor_name"] != "ACME" {
		t.Errorf("vendor_name = %v", result.ExtractedData["vendor_name"])
	}

	table, ok := result.TableData["item_description"]
	if !ok {
		t.Fatal("missing table in result")
	}
	if table.RowCount != 1 {
		t.Fatalf("table has %d rows, want 1", table.RowCount)
	}
	if v := table.Rows[0]["quantity"]; v == nil || *v != "10" {
		t.Errorf("quantity = %v, want 10", v)
	}
	if v := table.Rows[0]["unit_price"]; v == nil || *v != "2.5" {
		t.Errorf("unit_price = %v, want 2.5", v)
	}

	refreshed, err := models.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if refreshed.CreditsRemaining != 4 {
		t.Errorf("credits = %d, want 4 after one charge", refreshed.CreditsRemaining)
	}

	stored, err := models.GetDocument(ctx, document.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if stored.ProcessedAt == nil {
		t.Error("processed_at not stamped")
	}
}

func TestProcessDocument_MissingFileFailsAndRefunds(t *testing.T) {
	setupIntegrationEnv(t)
	ctx := context.Background()

	user := createTestUser(t, ctx, 3)
	template := createInvoiceTemplate(t, ctx, user.ID)
	document := createTestDocument(t, ctx, user.ID, template.ID, false)

	processor := workflow.NewProcessor(&stubExtractor{}, nil)

	if _, err := processor.ProcessDocument(ctx, document.ID, template.ID); err == nil {
		t.Fatal("expected an error for a missing source file")
	}

	stored, err := models.GetDocument(ctx, document.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if stored.Status != models.DocumentStatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}

	ocrData, err := models.GetOCRData(ctx, document.ID)
	if err != nil {
		t.Fatalf("GetOCRData: %v", err)
	}
	if len(ocrData) != 0 {
		t.Errorf("expected zero OCRData rows, got %d", len(ocrData))
	}

	refreshed, err := models.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if refreshed.CreditsRemaining != 3 {
		t.Errorf("credits = %d, want 3 (charge refunded)", refreshed.CreditsRemaining)
	}

	transactions, err := models.GetDocumentCreditTransactions(ctx, document.ID)
	if err != nil {
		t.Fatalf("GetDocumentCreditTransactions: %v", err)
	}
	if len(transactions) != 2 {
		t.Fatalf("got %d transactions, want deduction + refund", len(transactions))
	}
	if transactions[0].Amount != -1 || transactions[1].Amount != 1 {
		t.Errorf("amounts = %d, %d, want -1, 1", transactions[0].Amount, transactions[1].Amount)
	}
}

func TestProcessDocument_ReprocessPurgesOldRecords(t *testing.T) {
	setupIntegrationEnv(t)
	ctx := context.Background()

	user := createTestUser(t, ctx, 10)
	template := createInvoiceTemplate(t, ctx, user.ID)
	document := createTestDocument(t, ctx, user.ID, template.ID, true)

	extractor := &stubExtractor{
		flatResponse:  `{"vendor_name": "ACME"}`,
		tableResponse: `{"rows": [{"description": "Bolt", "quantity": "10", "unit_price": "2.50"}, {"description": "Nut", "quantity": "4", "unit_price": "0.75"}]}`,
	}
	processor := workflow.NewProcessor(extractor, nil)

	if _, err := processor.ProcessDocument(ctx, document.ID, template.ID); err != nil {
		t.Fatalf("first attempt: %v", err)
	}

	extractor.flatResponse = `{"vendor_name": "Globex"}`
	extractor.tableResponse = `{"rows": [{"description": "Washer", "quantity": "1", "unit_price": "0.10"}]}`

	result, err := processor.ProcessDocument(ctx, document.ID, template.ID)
	if err != nil {
		t.Fatalf("reprocess: %v", err)
	}

	ocrData, err := models.GetOCRData(ctx, document.ID)
	if err != nil {
		t.Fatalf("GetOCRData: %v", err)
	}
	if len(ocrData) != 1 {
		t.Fatalf("got %d OCRData rows after reprocess, want 1", len(ocrData))
	}
	if ocrData[0].PredictedValue == nil || *ocrData[0].PredictedValue != "Globex" {
		t.Errorf("vendor = %v, want the fresh extraction", ocrData[0].PredictedValue)
	}

	table := result.TableData["item_description"]
	if table.RowCount != 1 {
		t.Errorf("table has %d rows after reprocess, want 1", table.RowCount)
	}

	refreshed, _ := models.GetUser(ctx, user.ID)
	if refreshed.CreditsRemaining != 8 {
		t.Errorf("credits = %d, want 8 after two charges", refreshed.CreditsRemaining)
	}
}

func TestProcessDocument_RecoversStrandedProcessingDocument(t *testing.T) {
	setupIntegrationEnv(t)
	ctx := context.Background()
	db := config.GetDB()

	user := createTestUser(t, ctx, 5)
	template := createInvoiceTemplate(t, ctx, user.ID)
	document := createTestDocument(t, ctx, user.ID, template.ID, true)

	// Simulate an attempt that charged, entered PROCESSING and died
	// before reaching a terminal status.
	if err := workflow.DeductCreditsForOCR(db, ctx, user.ID, document); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	err := db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", document.ID).
		Update("status", models.DocumentStatusProcessing).Error
	if err != nil {
		t.Fatalf("force processing status: %v", err)
	}

	extractor := &stubExtractor{
		flatResponse:  `{"vendor_name": "ACME"}`,
		tableResponse: `{"rows": [{"description": "Bolt", "quantity": "10", "unit_price": "2.50"}]}`,
	}
	processor := workflow.NewProcessor(extractor, nil)

	result, err := processor.ProcessDocument(ctx, document.ID, template.ID)
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if result.Status != models.DocumentStatusProcessed {
		t.Errorf("status = %s, want processed", result.Status)
	}

	refreshed, err := models.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if refreshed.CreditsRemaining != 4 {
		t.Errorf("credits = %d, want 4 (stranded charge refunded, fresh charge applied)", refreshed.CreditsRemaining)
	}

	transactions, err := models.GetDocumentCreditTransactions(ctx, document.ID)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(transactions) != 3 {
		t.Errorf("got %d transactions, want deduction + refund + deduction", len(transactions))
	}
}

func TestRefundCreditsForFailedOCR_Idempotent(t *testing.T) {
	setupIntegrationEnv(t)
	ctx := context.Background()
	db := config.GetDB()

	user := createTestUser(t, ctx, 5)
	template := createInvoiceTemplate(t, ctx, user.ID)
	document := createTestDocument(t, ctx, user.ID, template.ID, true)

	if err := workflow.DeductCreditsForOCR(db, ctx, user.ID, document); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if err := workflow.RefundCreditsForFailedOCR(db, ctx, user.ID, document); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if err := workflow.RefundCreditsForFailedOCR(db, ctx, user.ID, document); err != nil {
		t.Fatalf("second refund: %v", err)
	}

	refreshed, err := models.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if refreshed.CreditsRemaining != 5 {
		t.Errorf("credits = %d, want 5 (refund applied once)", refreshed.CreditsRemaining)
	}

	transactions, err := models.GetDocumentCreditTransactions(ctx, document.ID)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(transactions) != 2 {
		t.Errorf("got %d transactions, want 2 (second refund is a no-op)", len(transactions))
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("ocr-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("ocr-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=ocr_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
