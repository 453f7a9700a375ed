package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/repository"
)

var now = common.FixedClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

func openDB(t *testing.T) *repository.DB {
	t.Helper()
	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))
	// idempotent
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func record(id, insurer string, confidence float64) entity.PolicyRecord {
	return entity.PolicyRecord{
		DocumentID:           id,
		Insurer:              insurer,
		ProductType:          "Home",
		PolicyNumber:         "P-" + id,
		StartDate:            "2024-01-01",
		EndDate:              "2024-12-31",
		PremiumMonthly:       150,
		PolicyLanguage:       "en",
		OriginalFilename:     id + ".pdf",
		DocumentType:         "home_insurance",
		ExtractionConfidence: confidence,
		NeedsReview:          confidence < 0.6,
		Notes:                "Imported from layout",
		CoverageDetails: &entity.CoverageDetails{
			Coverages: map[string]entity.CoverageItem{"dwelling": {Amount: 350000, Description: "Dwelling"}},
		},
	}
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, repository.Postgres, repository.DialectFor("postgres://u:p@localhost/db"))
	assert.Equal(t, repository.Postgres, repository.DialectFor("POSTGRESQL://localhost/db"))
	assert.Equal(t, repository.SQLite, repository.DialectFor("policies.db"))
	assert.Equal(t, repository.SQLite, repository.DialectFor(":memory:"))
}

func TestRebind(t *testing.T) {
	pg := &repository.DB{Dialect: repository.Postgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.Rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
	lite := &repository.DB{Dialect: repository.SQLite}
	assert.Equal(t, "a = ?", lite.Rebind("a = ?"))
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := repository.Open(context.Background(), repository.Config{}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestPolicyRepository(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPolicyRepository(openDB(t), now, nil)

	created, err := repo.Upsert(ctx, record("a", "ALLSTATE", 0.9), "/in/a.pdf", "hash-a")
	require.NoError(t, err)
	assert.True(t, created)

	updated := record("a", "ALLSTATE", 0.95)
	updated.OwnerName = "Maria Lopez"
	created, err = repo.Upsert(ctx, updated, "/in/a-copy.pdf", "hash-a")
	require.NoError(t, err)
	assert.False(t, created, "same document id is updated, not duplicated")

	_, err = repo.Upsert(ctx, record("b", "Unknown", 0.2), "/in/b.pdf", "hash-b")
	require.NoError(t, err)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Maria Lopez", got.Record.OwnerName)
	assert.Equal(t, 0.95, got.Record.ExtractionConfidence)
	assert.Equal(t, "/in/a-copy.pdf", got.SourcePath)
	assert.Equal(t, 350000.0, got.Record.CoverageDetails.Coverages["dwelling"].Amount)
	assert.True(t, got.CreatedAt.Equal(time.Time(now)), got.CreatedAt)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	all, err := repo.List(ctx, repository.PolicyFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Record.DocumentID)

	tests := []struct {
		name   string
		filter repository.PolicyFilter
		want   []string
	}{
		{"insurer is case-insensitive", repository.PolicyFilter{Insurer: "unknown"}, []string{"b"}},
		{"min confidence", repository.PolicyFilter{MinConfidence: 0.5}, []string{"a"}},
		{"needs review", repository.PolicyFilter{OnlyNeedsReview: true}, []string{"b"}},
		{"limit", repository.PolicyFilter{Limit: 1}, []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.Record.DocumentID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestExtractJobLifecycle(t *testing.T) {
	ctx := context.Background()
	jobs := repository.NewExtractJobRepository(openDB(t), now, nil)

	job, err := jobs.Start(ctx, "doc-1", "/in/a.pdf", constants.PDF)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusQueued), job.Status)

	require.NoError(t, jobs.MarkRunning(ctx, job.ID))
	require.NoError(t, jobs.FinishText(ctx, job.ID, constants.MethodLayout, "en"))

	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusTextOK), got.Status)
	require.NotNil(t, got.Method)
	assert.Equal(t, constants.MethodLayout, *got.Method)
	assert.Nil(t, got.FinishedAt)

	require.NoError(t, jobs.FinishSuccess(ctx, job.ID, 0.9, false))
	got, err = jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusDone), got.Status)
	require.NotNil(t, got.ExtractionConfidence)
	assert.Equal(t, 0.9, *got.ExtractionConfidence)
	require.NotNil(t, got.FinishedAt)
	assert.Nil(t, got.ErrorMessage)
}

func TestExtractJobFailure(t *testing.T) {
	ctx := context.Background()
	jobs := repository.NewExtractJobRepository(openDB(t), now, nil)

	job, err := jobs.Start(ctx, "doc-2", "/in/b.pdf", constants.PDF)
	require.NoError(t, err)
	require.NoError(t, jobs.FinishFailure(ctx, job.ID, "unreadable document"))

	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusFailed), got.Status)
	assert.True(t, got.NeedsReview)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "unreadable document", *got.ErrorMessage)

	_, err = jobs.Start(ctx, "doc-3", "/in/c.docx", "DOCX")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Contains(t, err.Error(), "format")

	err = jobs.MarkRunning(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = jobs.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}
