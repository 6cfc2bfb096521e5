package learning

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ejwhite7/zendesk-academy/internal/data/repos/testutil"
	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
)

func TestCourseRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewCourseRepo(db, testutil.Logger(t))

	tenantID := uuid.New()
	c := &types.Course{TenantID: tenantID, Title: "course", AIGenerated: true}
	if _, err := repo.Create(dbc, []*types.Course{c}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.ID == uuid.Nil || c.Version != 1 || c.Status != types.CourseStatusDraft {
		t.Fatalf("Create defaults: id=%v version=%d status=%q", c.ID, c.Version, c.Status)
	}

	got, err := repo.GetByID(dbc, c.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID missing: err=%v got=%v", err, missing)
	}

	manual := testutil.SeedCourse(t, ctx, tx, tenantID, nil)
	if err := repo.UpdateFields(dbc, manual.ID, map[string]interface{}{"ai_generated": false}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if rows, err := repo.ListAIGeneratedByTenant(dbc, tenantID); err != nil || len(rows) != 1 {
		t.Fatalf("ListAIGeneratedByTenant: err=%v len=%d", err, len(rows))
	}

	if err := repo.SoftDeleteByIDs(dbc, []uuid.UUID{c.ID}); err != nil {
		t.Fatalf("SoftDeleteByIDs: %v", err)
	}
	if rows, err := repo.GetByIDs(dbc, []uuid.UUID{c.ID}); err != nil || len(rows) != 0 {
		t.Fatalf("after SoftDeleteByIDs GetByIDs: err=%v len=%d", err, len(rows))
	}
}

func TestCourseRepoGenerationLock(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewCourseRepo(db, testutil.Logger(t))
	c := testutil.SeedCourse(t, ctx, tx, uuid.New(), nil)

	ok, err := repo.TryLockGeneration(dbc, c.ID, "a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	ok, err = repo.TryLockGeneration(dbc, c.ID, "b", time.Minute)
	if err != nil || ok {
		t.Fatalf("second lock should fail: ok=%v err=%v", ok, err)
	}
	if err := repo.UnlockGeneration(dbc, c.ID, "b"); err != nil {
		t.Fatalf("foreign unlock: %v", err)
	}
	ok, _ = repo.TryLockGeneration(dbc, c.ID, "b", time.Minute)
	if ok {
		t.Fatalf("foreign token must not release the lock")
	}
	if err := repo.UnlockGeneration(dbc, c.ID, "a"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, err = repo.TryLockGeneration(dbc, c.ID, "b", time.Minute)
	if err != nil || !ok {
		t.Fatalf("relock after release: ok=%v err=%v", ok, err)
	}

	// A lock older than the ttl is abandoned.
	past := time.Now().Add(-2 * time.Hour)
	if err := tx.Model(&types.Course{}).Where("id = ?", c.ID).Update("generation_locked_at", past).Error; err != nil {
		t.Fatalf("age lock: %v", err)
	}
	ok, err = repo.TryLockGeneration(dbc, c.ID, "c", time.Hour)
	if err != nil || !ok {
		t.Fatalf("stale takeover: ok=%v err=%v", ok, err)
	}

	// Renewal keeps an aged lease alive, and only for its owner.
	if err := tx.Model(&types.Course{}).Where("id = ?", c.ID).Update("generation_locked_at", past).Error; err != nil {
		t.Fatalf("age lock: %v", err)
	}
	if ok, err := repo.RenewGenerationLock(dbc, c.ID, "b"); err != nil || ok {
		t.Fatalf("foreign renew: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.RenewGenerationLock(dbc, c.ID, "c"); err != nil || !ok {
		t.Fatalf("renew: ok=%v err=%v", ok, err)
	}
	ok, err = repo.TryLockGeneration(dbc, c.ID, "d", time.Hour)
	if err != nil || ok {
		t.Fatalf("renewed lease must not be taken over: ok=%v err=%v", ok, err)
	}
}
