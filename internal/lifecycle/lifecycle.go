package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"consulaire/internal/activity"
	"consulaire/internal/config"
	"consulaire/internal/domain"
	"consulaire/internal/repo"
)

type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	Activities activity.Writer
	Config     *config.Config
	Now        func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:         db,
		Repo:       repo.Repo{DB: db},
		Activities: activity.Writer{DB: db},
		Config:     cfg,
		Now:        time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// InvalidTransitionError reports a status edge absent from the transition
// table. Callers map it to a 409 while other errors stay 4xx/5xx.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// transitions is the only authority on legal status edges. Terminal statuses
// (rejected, completed) have no outgoing edges.
var transitions = map[string][]string{
	domain.StatusDraft:             {domain.StatusSubmitted},
	domain.StatusSubmitted:         {domain.StatusUnderReview, domain.StatusRejected},
	domain.StatusUnderReview:       {domain.StatusAssigned, domain.StatusAwaitingDocuments, domain.StatusRejected, domain.StatusValidated},
	domain.StatusAssigned:          {domain.StatusAwaitingDocuments, domain.StatusValidated, domain.StatusRejected},
	domain.StatusAwaitingDocuments: {domain.StatusUnderReview, domain.StatusRejected},
	domain.StatusValidated:         {domain.StatusCompleted},
	domain.StatusRejected:          {},
	domain.StatusCompleted:         {},
}

func ensureTransition(oldStatus, newStatus string) error {
	for _, s := range transitions[oldStatus] {
		if s == newStatus {
			return nil
		}
	}
	return InvalidTransitionError{From: oldStatus, To: newStatus}
}

// AllowedTransitions returns the legal target statuses from the given status.
func AllowedTransitions(from string) []string {
	return append([]string(nil), transitions[from]...)
}

func validPriority(p string) bool {
	switch p {
	case domain.PriorityLow, domain.PriorityNormal, domain.PriorityHigh, domain.PriorityUrgent:
		return true
	}
	return false
}

// newNumber derives a human-readable request number from a fresh UUID.
func newNumber() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "REQ-" + strings.ToUpper(raw[:8])
}

// CreateOptions are parameters for opening a request.
type CreateOptions struct {
	ServiceID      string
	OrganizationID string
	ProfileID      string
	RequesterID    string
	Priority       string
	CountryCode    string
	DataJSON       string
	ActorID        string
}

func (e Engine) Create(ctx context.Context, opts CreateOptions) (domain.ServiceRequest, error) {
	if e.Config == nil {
		return domain.ServiceRequest{}, errors.New("config not loaded")
	}
	if opts.ServiceID == "" {
		return domain.ServiceRequest{}, errors.New("service is required")
	}
	if opts.OrganizationID == "" {
		return domain.ServiceRequest{}, errors.New("organization is required")
	}
	if opts.ProfileID == "" {
		return domain.ServiceRequest{}, errors.New("profile is required")
	}
	if opts.RequesterID == "" {
		return domain.ServiceRequest{}, errors.New("requester is required")
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityNormal
	}
	if !validPriority(opts.Priority) {
		return domain.ServiceRequest{}, fmt.Errorf("unknown priority %q", opts.Priority)
	}
	if opts.DataJSON != "" {
		var tmp any
		if err := json.Unmarshal([]byte(opts.DataJSON), &tmp); err != nil {
			return domain.ServiceRequest{}, fmt.Errorf("request data JSON: %w", err)
		}
	}
	svc, ok := e.Config.Services[opts.ServiceID]
	if !ok {
		return domain.ServiceRequest{}, fmt.Errorf("unknown service %q", opts.ServiceID)
	}

	now := e.now().UTC().Format(time.RFC3339)
	r := domain.ServiceRequest{
		ID:             uuid.New().String(),
		Number:         newNumber(),
		Status:         domain.StatusDraft,
		Priority:       opts.Priority,
		ServiceID:      opts.ServiceID,
		OrganizationID: opts.OrganizationID,
		ProfileID:      opts.ProfileID,
		RequesterID:    opts.RequesterID,
		CountryCode:    opts.CountryCode,
		DataJSON:       optionalString(opts.DataJSON),
		CreatedAt:      now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureOrganization(ctx, tx, domain.Organization{ID: opts.OrganizationID, Name: opts.OrganizationID, CountryCode: e.Config.Organization.CountryCode}); err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := e.Repo.EnsureService(ctx, tx, domain.ConsularService{ID: opts.ServiceID, Name: svc.Name, Category: svc.Category}); err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := e.Repo.EnsureProfile(ctx, tx, domain.Profile{ID: opts.ProfileID, FullName: opts.ProfileID}); err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := e.Repo.InsertRequest(ctx, tx, r); err != nil {
		return domain.ServiceRequest{}, fmt.Errorf("insert request: %w", err)
	}
	if err := e.Activities.Append(ctx, tx, domain.ActivityRequestCreated, r.ID, actorOrRequester(opts.ActorID, opts.RequesterID), activity.Payload{
		"number":  r.Number,
		"service": r.ServiceID,
		"status":  r.Status,
	}); err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ServiceRequest{}, err
	}
	return r, nil
}

func actorOrRequester(actorID, requesterID string) string {
	if actorID != "" {
		return actorID
	}
	return requesterID
}

// ChangeStatus moves a request along a legal edge. SubmittedAt and
// CompletedAt are written on first entry only; the terminal completed
// transition gets its own activity type.
func (e Engine) ChangeStatus(ctx context.Context, id, newStatus, actorID, reason string) (domain.ServiceRequest, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	defer tx.Rollback()

	r, err := e.changeStatusTx(ctx, tx, id, newStatus, actorID, reason)
	if err != nil {
		return r, err
	}
	if err := tx.Commit(); err != nil {
		return r, err
	}
	return r, nil
}

func (e Engine) changeStatusTx(ctx context.Context, tx *sql.Tx, id, newStatus, actorID, reason string) (domain.ServiceRequest, error) {
	r, err := e.Repo.GetRequestTx(ctx, tx, id)
	if err != nil {
		return r, err
	}
	if err := ensureTransition(r.Status, newStatus); err != nil {
		return r, err
	}
	from := r.Status
	r.Status = newStatus
	now := e.now().UTC().Format(time.RFC3339)
	if newStatus == domain.StatusSubmitted && r.SubmittedAt == nil {
		r.SubmittedAt = &now
	}
	if newStatus == domain.StatusCompleted && r.CompletedAt == nil {
		r.CompletedAt = &now
	}
	if err := e.Repo.UpdateRequest(ctx, tx, r); err != nil {
		return r, err
	}
	payload := activity.Payload{"from": from, "to": newStatus}
	if reason != "" {
		payload["reason"] = reason
	}
	actType := domain.ActivityStatusChanged
	if newStatus == domain.StatusCompleted {
		actType = domain.ActivityRequestCompleted
	}
	if err := e.Activities.Append(ctx, tx, actType, r.ID, actorID, payload); err != nil {
		return r, err
	}
	return r, nil
}

// Submit moves a draft to submitted.
func (e Engine) Submit(ctx context.Context, id, actorID string) (domain.ServiceRequest, error) {
	return e.ChangeStatus(ctx, id, domain.StatusSubmitted, actorID, "")
}

// Complete moves a validated request to completed.
func (e Engine) Complete(ctx context.Context, id, actorID string) (domain.ServiceRequest, error) {
	return e.ChangeStatus(ctx, id, domain.StatusCompleted, actorID, "")
}

// Reject terminates a request. The reason, when given, lands both in the
// activity payload and as an internal note so agents keep it on file.
func (e Engine) Reject(ctx context.Context, id, actorID, reason string) (domain.ServiceRequest, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	defer tx.Rollback()

	r, err := e.changeStatusTx(ctx, tx, id, domain.StatusRejected, actorID, reason)
	if err != nil {
		return r, err
	}
	if reason != "" {
		n := domain.Note{
			RequestID: r.ID,
			Type:      domain.NoteInternal,
			Content:   reason,
			AuthorID:  actorID,
			CreatedAt: e.now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.InsertNote(ctx, tx, n); err != nil {
			return r, err
		}
	}
	if err := tx.Commit(); err != nil {
		return r, err
	}
	return r, nil
}

// Assign routes a request to an agent. From submitted or awaiting_documents
// the request lands in under_review; from under_review it lands in assigned.
// AssignedAt is written on the first assignment only.
func (e Engine) Assign(ctx context.Context, id, agentID, assignedByID string) (domain.ServiceRequest, error) {
	if agentID == "" {
		return domain.ServiceRequest{}, errors.New("agent is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	defer tx.Rollback()

	r, err := e.Repo.GetRequestTx(ctx, tx, id)
	if err != nil {
		return r, err
	}
	var target string
	switch r.Status {
	case domain.StatusSubmitted, domain.StatusAwaitingDocuments:
		target = domain.StatusUnderReview
	case domain.StatusUnderReview:
		target = domain.StatusAssigned
	default:
		return r, InvalidTransitionError{From: r.Status, To: domain.StatusAssigned}
	}
	r.Status = target
	r.AssignedAgentID = &agentID
	now := e.now().UTC().Format(time.RFC3339)
	if r.AssignedAt == nil {
		r.AssignedAt = &now
	}
	if err := e.Repo.UpdateRequest(ctx, tx, r); err != nil {
		return r, err
	}
	if err := e.Activities.Append(ctx, tx, domain.ActivityRequestAssigned, r.ID, assignedByID, activity.Payload{
		"agent_id": agentID,
		"status":   target,
	}); err != nil {
		return r, err
	}
	if err := tx.Commit(); err != nil {
		return r, err
	}
	return r, nil
}

// AddNote appends a note; notes are never edited or removed afterwards.
func (e Engine) AddNote(ctx context.Context, id, noteType, content, authorID string) (domain.Note, error) {
	if noteType == "" {
		noteType = domain.NoteInternal
	}
	if noteType != domain.NoteInternal && noteType != domain.NoteCitizenVisible {
		return domain.Note{}, fmt.Errorf("unknown note type %q", noteType)
	}
	if strings.TrimSpace(content) == "" {
		return domain.Note{}, errors.New("content is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Note{}, err
	}
	defer tx.Rollback()

	r, err := e.Repo.GetRequestTx(ctx, tx, id)
	if err != nil {
		return domain.Note{}, err
	}
	n := domain.Note{
		RequestID: r.ID,
		Type:      noteType,
		Content:   content,
		AuthorID:  authorID,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertNote(ctx, tx, n); err != nil {
		return n, err
	}
	if err := e.Activities.Append(ctx, tx, domain.ActivityCommentAdded, r.ID, authorID, activity.Payload{
		"note_type": noteType,
	}); err != nil {
		return n, err
	}
	if err := tx.Commit(); err != nil {
		return n, err
	}
	return n, nil
}

// AddDocument attaches a document reference. Re-adding a present document is
// a complete no-op: no row, no activity.
func (e Engine) AddDocument(ctx context.Context, id, documentID, actorID string) (domain.ServiceRequest, error) {
	if documentID == "" {
		return domain.ServiceRequest{}, errors.New("document is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	defer tx.Rollback()

	r, err := e.Repo.GetRequestTx(ctx, tx, id)
	if err != nil {
		return r, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	added, err := e.Repo.AddDocument(ctx, tx, r.ID, documentID, actorID, now)
	if err != nil {
		return r, err
	}
	if added {
		if err := e.Activities.Append(ctx, tx, domain.ActivityDocumentUploaded, r.ID, actorID, activity.Payload{
			"document_id": documentID,
		}); err != nil {
			return r, err
		}
		r.DocumentIDs = append(r.DocumentIDs, documentID)
	}
	if err := tx.Commit(); err != nil {
		return r, err
	}
	return r, nil
}

// RemoveDocument detaches a document reference; removing an absent id is a
// no-op.
func (e Engine) RemoveDocument(ctx context.Context, id, documentID, actorID string) (domain.ServiceRequest, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	defer tx.Rollback()

	r, err := e.Repo.GetRequestTx(ctx, tx, id)
	if err != nil {
		return r, err
	}
	removed, err := e.Repo.RemoveDocument(ctx, tx, r.ID, documentID)
	if err != nil {
		return r, err
	}
	if removed {
		if err := e.Activities.Append(ctx, tx, domain.ActivityDocumentDeleted, r.ID, actorID, activity.Payload{
			"document_id": documentID,
		}); err != nil {
			return r, err
		}
		kept := r.DocumentIDs[:0]
		for _, d := range r.DocumentIDs {
			if d != documentID {
				kept = append(kept, d)
			}
		}
		r.DocumentIDs = kept
	}
	if err := tx.Commit(); err != nil {
		return r, err
	}
	return r, nil
}

// List returns requests matching the filters, newest first.
func (e Engine) List(ctx context.Context, f repo.RequestFilters) ([]domain.ServiceRequest, error) {
	for _, s := range f.Statuses {
		if !knownStatus(s) {
			return nil, fmt.Errorf("unknown status %q", s)
		}
	}
	if f.Priority != "" && !validPriority(f.Priority) {
		return nil, fmt.Errorf("unknown priority %q", f.Priority)
	}
	return e.Repo.ListRequests(ctx, f)
}

func knownStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

// StatusCounts aggregates request counts per status, optionally scoped to an
// organization.
func (e Engine) StatusCounts(ctx context.Context, organizationID string) (map[string]int, error) {
	return e.Repo.CountRequestsByStatus(ctx, organizationID)
}

func (e Engine) Get(ctx context.Context, id string) (domain.ServiceRequest, error) {
	return e.Repo.GetRequest(ctx, id)
}

func (e Engine) GetByNumber(ctx context.Context, number string) (domain.ServiceRequest, error) {
	return e.Repo.GetRequestByNumber(ctx, number)
}

func (e Engine) Notes(ctx context.Context, id string, citizenOnly bool) ([]domain.Note, error) {
	return e.Repo.ListNotes(ctx, id, citizenOnly)
}

func (e Engine) History(ctx context.Context, id string) ([]domain.Activity, error) {
	return e.Repo.ListActivities(ctx, id)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
