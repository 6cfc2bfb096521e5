package reconciler

import (
	"github.com/google/uuid"

	"github.com/ejwhite7/zendesk-academy/internal/data/repos"
	types "github.com/ejwhite7/zendesk-academy/internal/domain"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/dbctx"
)

const (
	PolicyBroad   = "broad"
	PolicyPrecise = "precise"
)

// AffectedPolicy decides which generated courses a set of changed articles
// may have invalidated. changed holds external article ids and may be empty.
type AffectedPolicy interface {
	Name() string
	AffectedCourses(dbc dbctx.Context, ks *types.KnowledgeSource, changed []string) ([]uuid.UUID, error)
}

// BroadPolicy marks every AI-generated course of the tenant.
type BroadPolicy struct {
	Courses repos.CourseRepo
}

func (BroadPolicy) Name() string { return PolicyBroad }

func (p BroadPolicy) AffectedCourses(dbc dbctx.Context, ks *types.KnowledgeSource, changed []string) ([]uuid.UUID, error) {
	courses, err := p.Courses.ListAIGeneratedByTenant(dbc, ks.TenantID)
	if err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, 0, len(courses))
	for _, c := range courses {
		out = append(out, c.ID)
	}
	return out, nil
}

// PrecisePolicy marks only AI-generated courses with a live lesson citing one
// of the changed articles.
type PrecisePolicy struct {
	Courses repos.CourseRepo
	Modules repos.CourseModuleRepo
	Lessons repos.LessonRepo
}

func (PrecisePolicy) Name() string { return PolicyPrecise }

func (p PrecisePolicy) AffectedCourses(dbc dbctx.Context, ks *types.KnowledgeSource, changed []string) ([]uuid.UUID, error) {
	if len(changed) == 0 {
		return nil, nil
	}
	courses, err := p.Courses.ListAIGeneratedByTenant(dbc, ks.TenantID)
	if err != nil || len(courses) == 0 {
		return nil, err
	}
	courseIDs := make([]uuid.UUID, 0, len(courses))
	for _, c := range courses {
		courseIDs = append(courseIDs, c.ID)
	}
	modules, err := p.Modules.GetByCourseIDs(dbc, courseIDs)
	if err != nil {
		return nil, err
	}
	courseOf := make(map[uuid.UUID]uuid.UUID, len(modules))
	moduleIDs := make([]uuid.UUID, 0, len(modules))
	for _, m := range modules {
		courseOf[m.ID] = m.CourseID
		moduleIDs = append(moduleIDs, m.ID)
	}
	lessons, err := p.Lessons.GetByModuleIDs(dbc, moduleIDs)
	if err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(changed))
	for _, id := range changed {
		want[id] = true
	}
	hit := map[uuid.UUID]bool{}
	for _, l := range lessons {
		for _, id := range l.SourceArticles {
			if want[id] {
				hit[courseOf[l.ModuleID]] = true
				break
			}
		}
	}
	out := make([]uuid.UUID, 0, len(hit))
	for _, id := range courseIDs {
		if hit[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// NewPolicy picks a policy by name; anything but "precise" is broad.
func NewPolicy(name string, set repos.Set) AffectedPolicy {
	if name == PolicyPrecise {
		return PrecisePolicy{Courses: set.Course, Modules: set.CourseModule, Lessons: set.Lesson}
	}
	return BroadPolicy{Courses: set.Course}
}
