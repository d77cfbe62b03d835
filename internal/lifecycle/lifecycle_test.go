package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"consulaire/internal/config"
	"consulaire/internal/db"
	"consulaire/internal/domain"
	"consulaire/internal/lifecycle"
	"consulaire/internal/migrate"
	"consulaire/internal/repo"
)

type testEnv struct {
	Engine lifecycle.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	cfg := config.Default("org-dakar")
	eng := lifecycle.New(conn, cfg)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	step := 0
	eng.Now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func createRequest(t *testing.T, env testEnv) domain.ServiceRequest {
	t.Helper()
	r, err := env.Engine.Create(env.Ctx, lifecycle.CreateOptions{
		ServiceID:      "passport.renewal",
		OrganizationID: "org-dakar",
		ProfileID:      "profile-1",
		RequesterID:    "citizen-1",
	})
	require.NoError(t, err)
	return r
}

// driveTo walks a request along legal edges until it reaches the wanted
// status.
func driveTo(t *testing.T, env testEnv, id, status string) {
	t.Helper()
	paths := map[string][]string{
		domain.StatusDraft:             {},
		domain.StatusSubmitted:         {domain.StatusSubmitted},
		domain.StatusUnderReview:       {domain.StatusSubmitted, domain.StatusUnderReview},
		domain.StatusAssigned:          {domain.StatusSubmitted, domain.StatusUnderReview, domain.StatusAssigned},
		domain.StatusAwaitingDocuments: {domain.StatusSubmitted, domain.StatusUnderReview, domain.StatusAwaitingDocuments},
		domain.StatusValidated:         {domain.StatusSubmitted, domain.StatusUnderReview, domain.StatusValidated},
		domain.StatusRejected:          {domain.StatusSubmitted, domain.StatusRejected},
		domain.StatusCompleted:         {domain.StatusSubmitted, domain.StatusUnderReview, domain.StatusValidated, domain.StatusCompleted},
	}
	for _, next := range paths[status] {
		_, err := env.Engine.ChangeStatus(env.Ctx, id, next, "agent-1", "")
		require.NoError(t, err)
	}
}

func TestCreateDefaults(t *testing.T) {
	env := newTestEnv(t)
	r := createRequest(t, env)
	require.Equal(t, domain.StatusDraft, r.Status)
	require.Equal(t, domain.PriorityNormal, r.Priority)
	require.Regexp(t, `^REQ-[0-9A-F]{8}$`, r.Number)
	require.NotEmpty(t, r.CreatedAt)
	require.Nil(t, r.SubmittedAt)

	acts, err := env.Engine.History(env.Ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.Equal(t, domain.ActivityRequestCreated, acts[0].Type)
	require.Equal(t, "citizen-1", acts[0].ActorID)
}

func TestCreateRejectsUnknownService(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Create(env.Ctx, lifecycle.CreateOptions{
		ServiceID:      "no.such.service",
		OrganizationID: "org-dakar",
		ProfileID:      "profile-1",
		RequesterID:    "citizen-1",
	})
	require.ErrorContains(t, err, "unknown service")
}

func TestTransitionTable(t *testing.T) {
	allowed := map[string][]string{
		domain.StatusDraft:             {domain.StatusSubmitted},
		domain.StatusSubmitted:         {domain.StatusUnderReview, domain.StatusRejected},
		domain.StatusUnderReview:       {domain.StatusAssigned, domain.StatusAwaitingDocuments, domain.StatusRejected, domain.StatusValidated},
		domain.StatusAssigned:          {domain.StatusAwaitingDocuments, domain.StatusValidated, domain.StatusRejected},
		domain.StatusAwaitingDocuments: {domain.StatusUnderReview, domain.StatusRejected},
		domain.StatusValidated:         {domain.StatusCompleted},
		domain.StatusRejected:          {},
		domain.StatusCompleted:         {},
	}
	for _, from := range domain.Statuses() {
		for _, to := range domain.Statuses() {
			legal := false
			for _, s := range allowed[from] {
				if s == to {
					legal = true
				}
			}
			t.Run(from+"_to_"+to, func(t *testing.T) {
				env := newTestEnv(t)
				r := createRequest(t, env)
				driveTo(t, env, r.ID, from)
				_, err := env.Engine.ChangeStatus(env.Ctx, r.ID, to, "agent-1", "")
				if legal {
					require.NoError(t, err)
					return
				}
				var invalid lifecycle.InvalidTransitionError
				require.ErrorAs(t, err, &invalid)
				require.Equal(t, from, invalid.From)
				require.Equal(t, to, invalid.To)
			})
		}
	}
}

func TestHappyPathActivityTrail(t *testing.T) {
	env := newTestEnv(t)
	r := createRequest(t, env)
	_, err := env.Engine.Submit(env.Ctx, r.ID, "citizen-1")
	require.NoError(t, err)
	_, err = env.Engine.Assign(env.Ctx, r.ID, "agent-1", "admin-1")
	require.NoError(t, err)
	_, err = env.Engine.ChangeStatus(env.Ctx, r.ID, domain.StatusValidated, "agent-1", "")
	require.NoError(t, err)
	got, err := env.Engine.Complete(env.Ctx, r.ID, "agent-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.SubmittedAt)
	require.NotNil(t, got.CompletedAt)

	acts, err := env.Engine.History(env.Ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, acts, 5)
	types := make([]string, len(acts))
	for i, a := range acts {
		types[i] = a.Type
		if i > 0 {
			require.Greater(t, a.ID, acts[i-1].ID)
		}
	}
	require.Equal(t, []string{
		domain.ActivityRequestCreated,
		domain.ActivityStatusChanged,
		domain.ActivityRequestAssigned,
		domain.ActivityStatusChanged,
		domain.ActivityRequestCompleted,
	}, types)
}

func TestRejectRecordsReasonAsInternalNote(t *testing.T) {
	env := newTestEnv(t)
	r := createRequest(t, env)
	_, err := env.Engine.Submit(env.Ctx, r.ID, "citizen-1")
	require.NoError(t, err)
	got, err := env.Engine.Reject(env.Ctx, r.ID, "agent-1", "Document illisible")
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, got.Status)

	notes, err := env.Engine.Notes(env.Ctx, r.ID, false)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, domain.NoteInternal, notes[0].Type)
	require.Equal(t, "Document illisible", notes[0].Content)
	require.Equal(t, "agent-1", notes[0].AuthorID)

	// internal notes stay invisible to citizens
	visible, err := env.Engine.Notes(env.Ctx, r.ID, true)
	require.NoError(t, err)
	require.Empty(t, visible)

	acts, err := env.Engine.History(env.Ctx, r.ID)
	require.NoError(t, err)
	last := acts[len(acts)-1]
	require.Equal(t, domain.ActivityStatusChanged, last.Type)
	require.Contains(t, last.Data, "Document illisible")

	// rejected is terminal
	_, err = env.Engine.Submit(env.Ctx, r.ID, "citizen-1")
	var invalid lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestAssignTransitions(t *testing.T) {
	env := newTestEnv(t)
	r := createRequest(t, env)
	_, err := env.Engine.Submit(env.Ctx, r.ID, "citizen-1")
	require.NoError(t, err)

	// first assignment from submitted lands in under_review
	got, err := env.Engine.Assign(env.Ctx, r.ID, "agent-1", "admin-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusUnderReview, got.Status)
	require.NotNil(t, got.AssignedAgentID)
	require.Equal(t, "agent-1", *got.AssignedAgentID)
	require.NotNil(t, got.AssignedAt)
	firstAssignedAt := *got.AssignedAt

	// reassignment from under_review lands in assigned and keeps AssignedAt
	got, err = env.Engine.Assign(env.Ctx, r.ID, "agent-2", "admin-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusAssigned, got.Status)
	require.Equal(t, "agent-2", *got.AssignedAgentID)
	require.Equal(t, firstAssignedAt, *got.AssignedAt)

	// draft requests cannot be assigned
	other := createRequest(t, env)
	_, err = env.Engine.Assign(env.Ctx, other.ID, "agent-1", "admin-1")
	var invalid lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestTimestampsSetOnce(t *testing.T) {
	env := newTestEnv(t)
	r := createRequest(t, env)
	got, err := env.Engine.Submit(env.Ctx, r.ID, "citizen-1")
	require.NoError(t, err)
	require.NotNil(t, got.SubmittedAt)
	submittedAt := *got.SubmittedAt

	// bounce through awaiting_documents and back; SubmittedAt must not move
	_, err = env.Engine.ChangeStatus(env.Ctx, r.ID, domain.StatusUnderReview, "agent-1", "")
	require.NoError(t, err)
	_, err = env.Engine.ChangeStatus(env.Ctx, r.ID, domain.StatusAwaitingDocuments, "agent-1", "")
	require.NoError(t, err)
	got, err = env.Engine.ChangeStatus(env.Ctx, r.ID, domain.StatusUnderReview, "agent-1", "")
	require.NoError(t, err)
	require.Equal(t, submittedAt, *got.SubmittedAt)
	require.Nil(t, got.CompletedAt)
}

func TestDocumentSetDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	r := createRequest(t, env)

	got, err := env.Engine.AddDocument(env.Ctx, r.ID, "doc-passport", "citizen-1")
	require.NoError(t, err)
	require.Equal(t, []string{"doc-passport"}, got.DocumentIDs)

	// duplicate add is a complete no-op
	got, err = env.Engine.AddDocument(env.Ctx, r.ID, "doc-passport", "citizen-1")
	require.NoError(t, err)
	require.Equal(t, []string{"doc-passport"}, got.DocumentIDs)

	got, err = env.Engine.AddDocument(env.Ctx, r.ID, "doc-photo", "citizen-1")
	require.NoError(t, err)
	require.Equal(t, []string{"doc-passport", "doc-photo"}, got.DocumentIDs)

	acts, err := env.Engine.History(env.Ctx, r.ID)
	require.NoError(t, err)
	uploads := 0
	for _, a := range acts {
		if a.Type == domain.ActivityDocumentUploaded {
			uploads++
		}
	}
	require.Equal(t, 2, uploads)

	// removing an absent id is a no-op too
	got, err = env.Engine.RemoveDocument(env.Ctx, r.ID, "doc-unknown", "citizen-1")
	require.NoError(t, err)
	require.Len(t, got.DocumentIDs, 2)

	got, err = env.Engine.RemoveDocument(env.Ctx, r.ID, "doc-passport", "citizen-1")
	require.NoError(t, err)
	require.Equal(t, []string{"doc-photo"}, got.DocumentIDs)

	acts, err = env.Engine.History(env.Ctx, r.ID)
	require.NoError(t, err)
	deletes := 0
	for _, a := range acts {
		if a.Type == domain.ActivityDocumentDeleted {
			deletes++
		}
	}
	require.Equal(t, 1, deletes)
}

func TestAddNoteActivity(t *testing.T) {
	env := newTestEnv(t)
	r := createRequest(t, env)
	n, err := env.Engine.AddNote(env.Ctx, r.ID, domain.NoteCitizenVisible, "Votre dossier est en cours.", "agent-1")
	require.NoError(t, err)
	require.Equal(t, domain.NoteCitizenVisible, n.Type)

	_, err = env.Engine.AddNote(env.Ctx, r.ID, "secret", "nope", "agent-1")
	require.ErrorContains(t, err, "unknown note type")

	visible, err := env.Engine.Notes(env.Ctx, r.ID, true)
	require.NoError(t, err)
	require.Len(t, visible, 1)

	acts, err := env.Engine.History(env.Ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ActivityCommentAdded, acts[len(acts)-1].Type)
}

func TestListFiltersAndPagination(t *testing.T) {
	env := newTestEnv(t)
	var ids []string
	for i := 0; i < 5; i++ {
		r := createRequest(t, env)
		ids = append(ids, r.ID)
	}
	// submit the first three
	for _, id := range ids[:3] {
		_, err := env.Engine.Submit(env.Ctx, id, "citizen-1")
		require.NoError(t, err)
	}

	submitted, err := env.Engine.List(env.Ctx, repo.RequestFilters{Statuses: []string{domain.StatusSubmitted}})
	require.NoError(t, err)
	require.Len(t, submitted, 3)

	drafts, err := env.Engine.List(env.Ctx, repo.RequestFilters{Statuses: []string{domain.StatusDraft}})
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	// newest first; the advancing clock makes created_at strictly increasing
	all, err := env.Engine.List(env.Ctx, repo.RequestFilters{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		require.LessOrEqual(t, all[i].CreatedAt, all[i-1].CreatedAt)
	}

	page1, err := env.Engine.List(env.Ctx, repo.RequestFilters{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	page2, err := env.Engine.List(env.Ctx, repo.RequestFilters{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.NotEqual(t, page1[0].ID, page2[0].ID)

	_, err = env.Engine.List(env.Ctx, repo.RequestFilters{Statuses: []string{"bogus"}})
	require.ErrorContains(t, err, "unknown status")
}

func TestStatusCounts(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		createRequest(t, env)
	}
	r := createRequest(t, env)
	_, err := env.Engine.Submit(env.Ctx, r.ID, "citizen-1")
	require.NoError(t, err)

	counts, err := env.Engine.StatusCounts(env.Ctx, "")
	require.NoError(t, err)
	require.Equal(t, 3, counts[domain.StatusDraft])
	require.Equal(t, 1, counts[domain.StatusSubmitted])
	_, present := counts[domain.StatusCompleted]
	require.False(t, present)

	scoped, err := env.Engine.StatusCounts(env.Ctx, "org-elsewhere")
	require.NoError(t, err)
	require.Empty(t, scoped)
}

func TestGetByNumber(t *testing.T) {
	env := newTestEnv(t)
	r := createRequest(t, env)
	got, err := env.Engine.GetByNumber(env.Ctx, r.Number)
	require.NoError(t, err)
	require.Equal(t, r.ID, got.ID)

	_, err = env.Engine.GetByNumber(env.Ctx, "REQ-00000000")
	require.ErrorIs(t, err, repo.ErrNotFound)

	_, err = env.Engine.Get(env.Ctx, "missing-id")
	require.ErrorIs(t, err, repo.ErrNotFound)
}
