package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/ignite/crm-engine/internal/domain"
	"github.com/ignite/crm-engine/internal/service/campaign"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

func TestCampaignRepoGet(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	id := uuid.New()
	segID := uuid.New()
	now := time.Now()
	mock.ExpectQuery("SELECT id, segment_id, name, message_template, status, created_at, updated_at").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "segment_id", "name", "message_template", "status", "created_at", "updated_at"}).
			AddRow(id, segID, "Big Spenders", "Hi {{name}}", "completed", now, now))

	repo := NewCampaignRepo(db)
	c, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.ID != id || c.SegmentID != segID || c.Status != domain.CampaignCompleted {
		t.Fatalf("unexpected campaign: %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCampaignRepoGetNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	id := uuid.New()
	mock.ExpectQuery("SELECT id, segment_id, name, message_template, status, created_at, updated_at").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	repo := NewCampaignRepo(db)
	if _, err := repo.Get(context.Background(), id); !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCampaignRepoCreateTransactional(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	segID := uuid.New()
	now := time.Now()
	seg := &domain.Segment{ID: segID, Name: "S - Segment", Description: "d", CreatedAt: now, UpdatedAt: now}
	rules := []domain.SegmentRule{
		{ID: uuid.New(), SegmentID: segID, Field: "total_spend", Operator: ">", Value: "1000", LogicalGroup: 1, LogicalOp: "AND"},
	}
	c := &domain.Campaign{ID: uuid.New(), SegmentID: segID, Name: "S", MessageTemplate: "Hi", Status: domain.CampaignPending, CreatedAt: now, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO segments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO segment_rules").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO campaigns").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewCampaignRepo(db)
	if err := repo.Create(context.Background(), seg, rules, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCampaignRepoCreateRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	segID := uuid.New()
	seg := &domain.Segment{ID: segID}
	c := &domain.Campaign{ID: uuid.New(), SegmentID: segID}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO segments").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	repo := NewCampaignRepo(db)
	if err := repo.Create(context.Background(), seg, nil, c); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCampaignRepoReplaceSwapsRules(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	segID := uuid.New()
	now := time.Now()
	c := &domain.Campaign{ID: uuid.New(), SegmentID: segID, Name: "N", MessageTemplate: "M", UpdatedAt: now}
	seg := &domain.Segment{ID: segID, Name: "N - Segment", Description: "d", UpdatedAt: now}
	rules := []domain.SegmentRule{
		{ID: uuid.New(), SegmentID: segID, Field: "visits_count", Operator: ">=", Value: "5", LogicalGroup: 1, LogicalOp: "AND"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE campaigns").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE segments").
		WithArgs("N - Segment", "d", now, segID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM segment_rules").WithArgs(segID).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO segment_rules").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewCampaignRepo(db)
	if err := repo.Replace(context.Background(), c, seg, rules); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCampaignRepoUpdateStatusNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	id := uuid.New()
	mock.ExpectExec("UPDATE campaigns SET status").
		WithArgs(domain.CampaignCompleted, id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewCampaignRepo(db)
	if err := repo.UpdateStatus(context.Background(), id, domain.CampaignCompleted); !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCampaignRepoDeliveryStats(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	id := uuid.New()
	mock.ExpectQuery("SELECT campaign_id").
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id", "count", "sent", "failed"}).
			AddRow(id, 10, 8, 1))

	repo := NewCampaignRepo(db)
	stats, err := repo.DeliveryStats(context.Background(), []uuid.UUID{id})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	st, ok := stats[id]
	if !ok {
		t.Fatal("missing stats row")
	}
	if st.AudienceSize != 10 || st.Sent != 8 || st.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestCampaignRepoDeliveryStatsEmptyInput(t *testing.T) {
	db, _, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCampaignRepo(db)
	stats, err := repo.DeliveryStats(context.Background(), nil)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 0 {
		t.Fatalf("expected no stats, got %v", stats)
	}
}
