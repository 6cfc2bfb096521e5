package content

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ejwhite7/zendesk-academy/internal/data/repos/testutil"
	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
)

func article(ext, hash string, modified time.Time) *types.Article {
	return &types.Article{
		ExternalID:     ext,
		Title:          "Article " + ext,
		Content:        "body",
		Labels:         datatypes.JSONSlice[string]{"billing"},
		LastModifiedAt: modified,
		ContentHash:    hash,
	}
}

func TestArticleRepoUpsertIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewArticleRepo(db, testutil.Logger(t))

	ks := testutil.SeedKnowledgeSource(t, ctx, tx, uuid.New())
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	stats, err := repo.Upsert(dbc, ks.ID, []*types.Article{
		article("1", "h1", modified),
		article("2", "h2", modified),
		article("2", "h2b", modified),
	})
	if err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	if stats.Created != 2 || stats.Updated != 0 {
		t.Fatalf("first Upsert stats: %+v", stats)
	}

	rows, err := repo.ListBySource(dbc, ks.ID)
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListBySource: err=%v len=%d", err, len(rows))
	}
	if rows[1].ContentHash != "h2b" {
		t.Fatalf("last duplicate in batch should win, got %q", rows[1].ContentHash)
	}
	firstUpdated := rows[0].UpdatedAt

	stats, err = repo.Upsert(dbc, ks.ID, []*types.Article{
		article("1", "h1", modified),
		article("2", "h2b", modified),
	})
	if err != nil {
		t.Fatalf("repeat Upsert: %v", err)
	}
	if stats.Unchanged != 2 || stats.Created != 0 || stats.Updated != 0 || len(stats.Changed) != 0 {
		t.Fatalf("repeat Upsert stats: %+v", stats)
	}
	again, _ := repo.ListBySource(dbc, ks.ID)
	if !again[0].UpdatedAt.Equal(firstUpdated) || again[0].ID != rows[0].ID {
		t.Fatalf("unchanged row was rewritten")
	}

	stats, err = repo.Upsert(dbc, ks.ID, []*types.Article{article("1", "h1-new", modified.Add(time.Hour))})
	if err != nil {
		t.Fatalf("update Upsert: %v", err)
	}
	if stats.Updated != 1 || len(stats.Changed) != 1 || stats.Changed[0] != "1" {
		t.Fatalf("update stats: %+v", stats)
	}
	got, err := repo.GetByExternalIDs(dbc, ks.ID, []string{"1"})
	if err != nil || len(got) != 1 || got[0].ContentHash != "h1-new" || got[0].ID != rows[0].ID {
		t.Fatalf("GetByExternalIDs after update: err=%v rows=%v", err, got)
	}

	n, err := repo.DeleteByExternalIDs(dbc, ks.ID, []string{"2", "missing"})
	if err != nil || n != 1 {
		t.Fatalf("DeleteByExternalIDs: n=%d err=%v", n, err)
	}
}

func TestKnowledgeSourceRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewKnowledgeSourceRepo(db, testutil.Logger(t))

	tenantID := uuid.New()
	if ks, err := repo.GetActiveByTenant(dbc, tenantID); err != nil || ks != nil {
		t.Fatalf("GetActiveByTenant empty: ks=%v err=%v", ks, err)
	}

	inactive := &types.KnowledgeSource{TenantID: tenantID, Name: "old", Status: types.SourceStatusInactive}
	active := &types.KnowledgeSource{
		TenantID: tenantID,
		Name:     "hc",
		Config:   datatypes.NewJSONType(types.SourceConfig{Subdomain: "acme", Email: "a@b.c", APIToken: "t"}),
	}
	if _, err := repo.Create(dbc, []*types.KnowledgeSource{inactive, active}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if active.Status != types.SourceStatusActive || active.Type != types.SourceTypeZendesk {
		t.Fatalf("Create defaults: status=%q type=%q", active.Status, active.Type)
	}

	got, err := repo.GetActiveByTenant(dbc, tenantID)
	if err != nil || got == nil || got.ID != active.ID {
		t.Fatalf("GetActiveByTenant: got=%v err=%v", got, err)
	}
	if !got.HasCredentials() || got.Config.Data().Subdomain != "acme" {
		t.Fatalf("config round trip: %+v", got.Config.Data())
	}

	if err := repo.UpdateFields(dbc, active.ID, map[string]interface{}{"status": types.SourceStatusError, "last_error": "boom"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	syncable, err := repo.ListSyncable(dbc)
	if err != nil || len(syncable) != 1 || syncable[0].ID != active.ID {
		t.Fatalf("ListSyncable: err=%v rows=%v", err, syncable)
	}
}
