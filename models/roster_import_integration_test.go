package models_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rosterpilot/roster_backend/config"
	"github.com/rosterpilot/roster_backend/models"
	"github.com/rosterpilot/roster_backend/utils"
)

const rosterCSV = `Full Name,Email,Jersey,Position
Alice,alice@example.com,10,Forward
,,,
Bob,not-an-email,5,Midfield
Carol,carol@example.com,7,Keeper
Dave,alice@example.com,3,Defense
`

func TestRosterImportFlow(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "roster_test")
	t.Setenv("STORAGE_PROVIDER", "local")
	t.Setenv("STORAGE_LOCAL_DIR", t.TempDir())

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Start from an empty cache so stale sessions cannot leak between runs.
	if err := config.ClearRedis(config.GetRedisContext()); err != nil {
		t.Fatalf("ClearRedis: %v", err)
	}

	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	team, err := models.CreateTeam(ctx, &models.NewTeam{Name: "Integration FC"})
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	ctx = utils.SetTeamIdInContext(ctx, team.ID)
	ctx = utils.SetUserNameInContext(ctx, "Test Coach")
	ctx = utils.SetUsernameInContext(ctx, "coach@local")

	coach, err := models.CreateUser(ctx, &models.NewUser{
		TeamId:   team.ID,
		Username: "coach@local",
		Name:     "Test Coach",
		Password: "secret-pw",
		IsActive: utils.NewTrue(),
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	ctx = utils.SetUserIdInContext(ctx, coach.ID)

	// A disabled account must not get a session token.
	if _, err := models.CreateUser(ctx, &models.NewUser{
		TeamId:   team.ID,
		Username: "benched@local",
		Name:     "Benched Coach",
		Password: "secret-pw",
		IsActive: utils.NewFalse(),
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := models.Login(ctx, "benched@local", "secret-pw"); err == nil {
		t.Fatalf("expected login to fail for a disabled user")
	}

	// Carol already exists, so her row becomes an update.
	carol := models.Player{TeamId: team.ID, FullName: "Carol Old", Email: "carol@example.com"}
	if err := db.WithContext(ctx).Create(&carol).Error; err != nil {
		t.Fatalf("seed player: %v", err)
	}

	// Upload.
	result, err := models.StoreUpload(ctx, team.ID, coach.ID, "roster.csv", []byte(rosterCSV))
	if err != nil {
		t.Fatalf("StoreUpload: %v", err)
	}
	if result.Duplicate {
		t.Fatal("first upload must not be a duplicate")
	}
	if result.Job.Status != models.ImportJobStatusPending {
		t.Fatalf("status = %s, want pending", result.Job.Status)
	}
	wantColumns := []string{"Full Name", "Email", "Jersey", "Position"}
	if len(result.Columns) != len(wantColumns) {
		t.Fatalf("columns = %v", result.Columns)
	}
	for i := range wantColumns {
		if result.Columns[i] != wantColumns[i] {
			t.Errorf("column %d = %q, want %q", i, result.Columns[i], wantColumns[i])
		}
	}

	// Identical bytes dedupe onto the same job.
	again, err := models.StoreUpload(ctx, team.ID, coach.ID, "roster.csv", []byte(rosterCSV))
	if err != nil {
		t.Fatalf("StoreUpload (again): %v", err)
	}
	if !again.Duplicate || again.Job.ID != result.Job.ID {
		t.Fatalf("expected duplicate of job %d, got job %d duplicate=%v", result.Job.ID, again.Job.ID, again.Duplicate)
	}

	columnMap := map[string]any{
		"full_name": "Full Name",
		"email":     "Email",
		"jersey":    "Jersey",
		"position":  "Position",
	}

	// Dry run.
	job, err := models.PerformDryRun(ctx, result.Job, columnMap)
	if err != nil {
		t.Fatalf("PerformDryRun: %v", err)
	}
	if job.Status != models.ImportJobStatusReady {
		t.Fatalf("status = %s, want ready", job.Status)
	}
	if job.TotalRows != 4 || job.CreatedCount != 1 || job.UpdatedCount != 1 || job.ErrorCount != 2 {
		t.Fatalf("counts = total %d created %d updated %d errors %d",
			job.TotalRows, job.CreatedCount, job.UpdatedCount, job.ErrorCount)
	}

	rows, err := models.GetImportRows(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetImportRows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4 (blank row skipped)", len(rows))
	}
	// The blank line still advances the spreadsheet row numbering.
	wantRows := []struct {
		rowNumber int
		action    models.ImportRowAction
	}{
		{2, models.ImportRowActionCreate},
		{4, models.ImportRowActionError},
		{5, models.ImportRowActionUpdate},
		{6, models.ImportRowActionError},
	}
	for i, want := range wantRows {
		if rows[i].RowNumber != want.rowNumber || rows[i].Action != want.action {
			t.Errorf("row %d = number %d action %s, want %d %s",
				i, rows[i].RowNumber, rows[i].Action, want.rowNumber, want.action)
		}
	}
	if rows[2].PlayerId == nil || *rows[2].PlayerId != carol.ID {
		t.Errorf("update row should point at the existing player")
	}

	// Re-running the dry run replaces the rows instead of stacking them.
	job, err = models.PerformDryRun(ctx, job, columnMap)
	if err != nil {
		t.Fatalf("PerformDryRun (rerun): %v", err)
	}
	rows, err = models.GetImportRows(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetImportRows: %v", err)
	}
	if len(rows) != 4 || job.TotalRows != 4 {
		t.Fatalf("rerun rows = %d total = %d, want 4", len(rows), job.TotalRows)
	}

	// Apply.
	job, err = models.ApplyImport(ctx, job)
	if err != nil {
		t.Fatalf("ApplyImport: %v", err)
	}
	if job.Status != models.ImportJobStatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.ProcessedAt == nil {
		t.Fatal("processed_at not set")
	}

	var alice models.Player
	if err := db.WithContext(ctx).Where("team_id = ? AND email = ?", team.ID, "alice@example.com").First(&alice).Error; err != nil {
		t.Fatalf("created player missing: %v", err)
	}
	if alice.FullName != "Alice" || utils.DereferencePtr(alice.Jersey) != "10" {
		t.Errorf("created player = %+v", alice)
	}

	var carolAfter models.Player
	if err := db.WithContext(ctx).Where("id = ?", carol.ID).First(&carolAfter).Error; err != nil {
		t.Fatalf("updated player missing: %v", err)
	}
	if carolAfter.FullName != "Carol" || utils.DereferencePtr(carolAfter.Jersey) != "7" || utils.DereferencePtr(carolAfter.Position) != "Keeper" {
		t.Errorf("updated player = %+v", carolAfter)
	}

	// Error report.
	if job.ErrorReportPath == nil {
		t.Fatal("error report path not set")
	}
	report, err := utils.ReadObject(ctx, *job.ErrorReportPath)
	if err != nil {
		t.Fatalf("ReadObject(report): %v", err)
	}
	lines := strings.Split(string(report), "\n")
	if lines[0] != "row_number,full_name,email,jersey,position,errors" {
		t.Errorf("report header = %q", lines[0])
	}
	if len(lines) != 3 {
		t.Fatalf("report lines = %d, want 3", len(lines))
	}
	if !strings.Contains(lines[1], "Email format is invalid.") {
		t.Errorf("report line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "Duplicate email found in upload.") {
		t.Errorf("report line = %q", lines[2])
	}

	// The applied event is queued for the dispatcher.
	var events []models.ImportEventRecord
	if err := db.Where("import_job_id = ?", job.ID).Find(&events).Error; err != nil {
		t.Fatalf("fetch outbox: %v", err)
	}
	if len(events) != 1 || events[0].PublishStatus != models.OutboxPublishStatusPending {
		t.Fatalf("outbox = %+v", events)
	}
	if events[0].EventType != models.ImportEventTypeApplied {
		t.Errorf("event type = %s", events[0].EventType)
	}

	// Completed jobs cannot be applied again.
	if _, err := models.ApplyImport(ctx, job); err == nil {
		t.Fatal("expected precondition error")
	} else if vErr, ok := models.AsValidationError(err); !ok ||
		vErr.Errors["import"][0] != "Dry-run must be completed before applying the import." {
		t.Fatalf("unexpected error: %v", err)
	}

	// A file past the row cap is rejected outright, with nothing persisted.
	var bulk strings.Builder
	bulk.WriteString("Full Name,Email,Jersey,Position\n")
	for i := 0; i <= models.MaxImportRows; i++ {
		fmt.Fprintf(&bulk, "Player %d,player%d@example.com,%d,Bench\n", i, i, i%100)
	}
	bulkUpload, err := models.StoreUpload(ctx, team.ID, coach.ID, "bulk.csv", []byte(bulk.String()))
	if err != nil {
		t.Fatalf("StoreUpload (bulk): %v", err)
	}
	_, err = models.PerformDryRun(ctx, bulkUpload.Job, columnMap)
	if vErr, ok := models.AsValidationError(err); !ok ||
		vErr.Errors["file"][0] != fmt.Sprintf("The roster is limited to %d rows.", models.MaxImportRows) {
		t.Fatalf("bulk dry run error = %v", err)
	}
	bulkRows, err := models.GetImportRows(ctx, bulkUpload.Job.ID)
	if err != nil {
		t.Fatalf("GetImportRows (bulk): %v", err)
	}
	if len(bulkRows) != 0 {
		t.Fatalf("bulk rows persisted = %d, want 0", len(bulkRows))
	}
	bulkJob, err := models.GetImportJob(ctx, team.ID, bulkUpload.Job.ID)
	if err != nil {
		t.Fatalf("GetImportJob (bulk): %v", err)
	}
	if bulkJob.Status != models.ImportJobStatusPending {
		t.Fatalf("bulk job status = %s, want pending", bulkJob.Status)
	}

	// Apply is all-or-nothing: a store failure mid-batch rolls every player
	// mutation back and leaves the job ready.
	atomicCSV := "Full Name,Email,Jersey,Position\nNora,nora@example.com,21,Forward\nOwen,owen@example.com,22,Defense\n"
	atomicUpload, err := models.StoreUpload(ctx, team.ID, coach.ID, "atomic.csv", []byte(atomicCSV))
	if err != nil {
		t.Fatalf("StoreUpload (atomic): %v", err)
	}
	atomicJob, err := models.PerformDryRun(ctx, atomicUpload.Job, columnMap)
	if err != nil {
		t.Fatalf("PerformDryRun (atomic): %v", err)
	}
	if atomicJob.CreatedCount != 2 {
		t.Fatalf("atomic dry run created = %d, want 2", atomicJob.CreatedCount)
	}
	atomicRows, err := models.GetImportRows(ctx, atomicJob.ID)
	if err != nil {
		t.Fatalf("GetImportRows (atomic): %v", err)
	}
	if len(atomicRows) != 2 {
		t.Fatalf("atomic rows = %d, want 2", len(atomicRows))
	}
	// Overlong name slips past the column limit only at INSERT time, so the
	// second row blows up after the first player was already saved.
	longName := strings.Repeat("x", 300)
	owenEmail := "owen@example.com"
	corruptPayload, err := json.Marshal(models.RowPayload{FullName: &longName, Email: &owenEmail})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := db.WithContext(ctx).Model(&models.ImportRow{}).
		Where("id = ?", atomicRows[1].ID).
		Update("payload", corruptPayload).Error; err != nil {
		t.Fatalf("corrupt row payload: %v", err)
	}
	if _, err := models.ApplyImport(ctx, atomicJob); err == nil {
		t.Fatal("expected apply to fail on the oversized player name")
	}
	var strandedPlayers int64
	if err := db.WithContext(ctx).Model(&models.Player{}).
		Where("team_id = ? AND email IN ?", team.ID, []string{"nora@example.com", owenEmail}).
		Count(&strandedPlayers).Error; err != nil {
		t.Fatalf("count players: %v", err)
	}
	if strandedPlayers != 0 {
		t.Fatalf("players committed from a failed apply = %d, want 0", strandedPlayers)
	}
	atomicJob, err = models.GetImportJob(ctx, team.ID, atomicJob.ID)
	if err != nil {
		t.Fatalf("GetImportJob (atomic): %v", err)
	}
	if atomicJob.Status != models.ImportJobStatusReady {
		t.Fatalf("atomic job status = %s, want ready after rollback", atomicJob.Status)
	}

	// Demotion: a player matched during dry run but deleted before apply is
	// created instead of updated.
	secondCSV := strings.Replace(rosterCSV, "Alice", "Anna", 2)
	second, err := models.StoreUpload(ctx, team.ID, coach.ID, "roster2.csv", []byte(secondCSV))
	if err != nil {
		t.Fatalf("StoreUpload (second): %v", err)
	}
	secondJob, err := models.PerformDryRun(ctx, second.Job, columnMap)
	if err != nil {
		t.Fatalf("PerformDryRun (second): %v", err)
	}
	if secondJob.UpdatedCount != 1 {
		t.Fatalf("second dry run updated = %d, want 1", secondJob.UpdatedCount)
	}
	if err := db.WithContext(ctx).Where("id = ?", carol.ID).Delete(&models.Player{}).Error; err != nil {
		t.Fatalf("delete player: %v", err)
	}
	staleJob := *secondJob
	secondJob, err = models.ApplyImport(ctx, secondJob)
	if err != nil {
		t.Fatalf("ApplyImport (second): %v", err)
	}
	// A struct fetched before the apply still says ready; the stored status
	// decides.
	if _, err := models.ApplyImport(ctx, &staleJob); err == nil {
		t.Fatal("expected stale re-apply to be rejected")
	} else if vErr, ok := models.AsValidationError(err); !ok ||
		vErr.Errors["import"][0] != "Dry-run must be completed before applying the import." {
		t.Fatalf("stale re-apply error = %v", err)
	}
	secondRows, err := models.GetImportRows(ctx, secondJob.ID)
	if err != nil {
		t.Fatalf("GetImportRows (second): %v", err)
	}
	var carolRow *models.ImportRow
	for _, row := range secondRows {
		if row.RowNumber == 5 {
			carolRow = row
		}
	}
	if carolRow == nil {
		t.Fatal("carol row missing")
	}
	if carolRow.Action != models.ImportRowActionCreate {
		t.Errorf("carol row action = %s, want create after demotion", carolRow.Action)
	}
	var carolNew models.Player
	if err := db.WithContext(ctx).Where("team_id = ? AND email = ?", team.ID, "carol@example.com").First(&carolNew).Error; err != nil {
		t.Fatalf("demoted player not created: %v", err)
	}
	if carolNew.ID == carol.ID {
		t.Error("expected a fresh player row after demotion")
	}
}

func TestEmptyUploadFailsDryRun(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "roster_test")
	t.Setenv("STORAGE_PROVIDER", "local")
	t.Setenv("STORAGE_LOCAL_DIR", t.TempDir())

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	team, err := models.CreateTeam(ctx, &models.NewTeam{Name: "Empty FC"})
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	ctx = utils.SetTeamIdInContext(ctx, team.ID)

	coach, err := models.CreateUser(ctx, &models.NewUser{
		TeamId:   team.ID,
		Username: "empty-coach@local",
		Name:     "Empty Coach",
		Password: "secret-pw",
		IsActive: utils.NewTrue(),
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	result, err := models.StoreUpload(ctx, team.ID, coach.ID, "empty.csv", []byte(""))
	if err != nil {
		t.Fatalf("StoreUpload: %v", err)
	}

	_, err = models.PerformDryRun(ctx, result.Job, map[string]any{"full_name": "Name", "email": "Email"})
	vErr, ok := models.AsValidationError(err)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if vErr.Errors["file"][0] != "The uploaded file is empty." {
		t.Fatalf("unexpected error bag: %v", vErr.Errors)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("roster-test-redis-%d", time.Now().UnixNano())
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
	// wait until ready
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
	name := fmt.Sprintf("roster-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=roster_test",
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
	// wait until ready
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
	// Example: "127.0.0.1:49154\n"
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
