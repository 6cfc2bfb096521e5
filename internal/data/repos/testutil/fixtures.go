package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/ejwhite7/zendesk-academy/internal/domain"
)

func SeedKnowledgeSource(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID) *types.KnowledgeSource {
	tb.Helper()
	ks := &types.KnowledgeSource{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     "Help Center",
		Type:     types.SourceTypeZendesk,
		Status:   types.SourceStatusActive,
		Config: datatypes.NewJSONType(types.SourceConfig{
			Subdomain: "acme",
			Email:     "agent@acme.test",
			APIToken:  "tok",
		}),
	}
	if err := tx.WithContext(ctx).Create(ks).Error; err != nil {
		tb.Fatalf("seed knowledge source: %v", err)
	}
	return ks
}

func SeedArticle(tb testing.TB, ctx context.Context, tx *gorm.DB, sourceID uuid.UUID, externalID string) *types.Article {
	tb.Helper()
	a := &types.Article{
		ID:                uuid.New(),
		KnowledgeSourceID: sourceID,
		ExternalID:        externalID,
		Title:             "Article " + externalID,
		Content:           "Body of " + externalID,
		HTMLContent:       "<p>Body of " + externalID + "</p>",
		Labels:            datatypes.JSONSlice[string]{},
		LastModifiedAt:    time.Now().UTC().Truncate(time.Second),
		ContentHash:       "hash-" + externalID,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed article: %v", err)
	}
	return a
}

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, sourceID *uuid.UUID) *types.Course {
	tb.Helper()
	c := &types.Course{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		KnowledgeSourceID:  sourceID,
		Title:              "course",
		Level:              types.LevelBeginner,
		Status:             types.CourseStatusDraft,
		Version:            1,
		AIGenerated:        true,
		LearningObjectives: datatypes.JSONSlice[string]{},
		Prerequisites:      datatypes.JSONSlice[string]{},
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

// SeedCourseTree creates a course with modules x lessons, each lesson citing
// the given article ids.
func SeedCourseTree(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, sourceID *uuid.UUID, modules, lessons int, articleIDs []string) *types.Course {
	tb.Helper()
	c := SeedCourse(tb, ctx, tx, tenantID, sourceID)
	for mi := 0; mi < modules; mi++ {
		m := &types.CourseModule{
			ID:                 uuid.New(),
			CourseID:           c.ID,
			Title:              fmt.Sprintf("module %d", mi),
			OrderIndex:         mi,
			LearningObjectives: datatypes.JSONSlice[string]{},
		}
		if err := tx.WithContext(ctx).Create(m).Error; err != nil {
			tb.Fatalf("seed module: %v", err)
		}
		for li := 0; li < lessons; li++ {
			l := &types.Lesson{
				ID:             uuid.New(),
				ModuleID:       m.ID,
				Title:          fmt.Sprintf("lesson %d.%d", mi, li),
				Content:        "content",
				ContentType:    types.ContentTypeText,
				OrderIndex:     li,
				SourceArticles: datatypes.JSONSlice[string](append([]string{}, articleIDs...)),
				AIGenerated:    true,
			}
			if err := tx.WithContext(ctx).Create(l).Error; err != nil {
				tb.Fatalf("seed lesson: %v", err)
			}
		}
	}
	return c
}

func PtrUUID(id uuid.UUID) *uuid.UUID { return &id }
