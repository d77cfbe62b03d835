package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"consulaire/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const requestColumns = `id,number,status,priority,service_id,organization_id,profile_id,requester_id,assigned_agent_id,country_code,data_json,created_at,submitted_at,assigned_at,completed_at`

type requestScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row requestScanner) (domain.ServiceRequest, error) {
	var r domain.ServiceRequest
	var agent, country, data, submitted, assigned, completed sql.NullString
	err := row.Scan(&r.ID, &r.Number, &r.Status, &r.Priority, &r.ServiceID, &r.OrganizationID,
		&r.ProfileID, &r.RequesterID, &agent, &country, &data, &r.CreatedAt, &submitted, &assigned, &completed)
	if err == sql.ErrNoRows {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	if agent.Valid {
		r.AssignedAgentID = &agent.String
	}
	if country.Valid {
		r.CountryCode = country.String
	}
	if data.Valid {
		r.DataJSON = &data.String
	}
	if submitted.Valid {
		r.SubmittedAt = &submitted.String
	}
	if assigned.Valid {
		r.AssignedAt = &assigned.String
	}
	if completed.Valid {
		r.CompletedAt = &completed.String
	}
	return r, nil
}

func (r Repo) InsertRequest(ctx context.Context, tx *sql.Tx, req domain.ServiceRequest) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO service_requests(`+requestColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		req.ID, req.Number, req.Status, req.Priority, req.ServiceID, req.OrganizationID,
		req.ProfileID, req.RequesterID, nullableStringPtr(req.AssignedAgentID), nullable(req.CountryCode),
		nullableStringPtr(req.DataJSON), req.CreatedAt, nullableStringPtr(req.SubmittedAt),
		nullableStringPtr(req.AssignedAt), nullableStringPtr(req.CompletedAt))
	return err
}

func (r Repo) UpdateRequest(ctx context.Context, tx *sql.Tx, req domain.ServiceRequest) error {
	res, err := tx.ExecContext(ctx, `UPDATE service_requests SET status=?, priority=?, assigned_agent_id=?, country_code=?, data_json=?, submitted_at=?, assigned_at=?, completed_at=? WHERE id=?`,
		req.Status, req.Priority, nullableStringPtr(req.AssignedAgentID), nullable(req.CountryCode),
		nullableStringPtr(req.DataJSON), nullableStringPtr(req.SubmittedAt),
		nullableStringPtr(req.AssignedAt), nullableStringPtr(req.CompletedAt), req.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetRequest(ctx context.Context, id string) (domain.ServiceRequest, error) {
	req, err := scanRequest(r.DB.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id=?`, id))
	if err != nil {
		return req, err
	}
	req.DocumentIDs, err = r.ListDocuments(ctx, req.ID)
	return req, err
}

func (r Repo) GetRequestTx(ctx context.Context, tx *sql.Tx, id string) (domain.ServiceRequest, error) {
	req, err := scanRequest(tx.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id=?`, id))
	if err != nil {
		return req, err
	}
	req.DocumentIDs, err = listDocuments(ctx, tx, req.ID)
	return req, err
}

// GetRequestByNumber returns at most one record; ErrNotFound is distinguished
// from transport errors.
func (r Repo) GetRequestByNumber(ctx context.Context, number string) (domain.ServiceRequest, error) {
	req, err := scanRequest(r.DB.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE number=?`, number))
	if err != nil {
		return req, err
	}
	req.DocumentIDs, err = r.ListDocuments(ctx, req.ID)
	return req, err
}

type RequestFilters struct {
	Statuses        []string
	Priority        string
	ServiceID       string
	OrganizationID  string
	ProfileID       string
	AssignedAgentID string
	CountryCode     string
	CreatedFrom     string
	CreatedTo       string
	Limit           int
	Offset          int
}

// ListRequests returns requests ordered by created_at descending. There is no
// snapshot isolation: pages fetched at different times may overlap or skip
// rows if the underlying data moved in between.
func (r Repo) ListRequests(ctx context.Context, f RequestFilters) ([]domain.ServiceRequest, error) {
	var clauses []string
	var args []any
	if len(f.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Statuses)), ",")
		clauses = append(clauses, "status IN ("+placeholders+")")
		for _, s := range f.Statuses {
			args = append(args, s)
		}
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, f.Priority)
	}
	if f.ServiceID != "" {
		clauses = append(clauses, "service_id=?")
		args = append(args, f.ServiceID)
	}
	if f.OrganizationID != "" {
		clauses = append(clauses, "organization_id=?")
		args = append(args, f.OrganizationID)
	}
	if f.ProfileID != "" {
		clauses = append(clauses, "profile_id=?")
		args = append(args, f.ProfileID)
	}
	if f.AssignedAgentID != "" {
		clauses = append(clauses, "assigned_agent_id=?")
		args = append(args, f.AssignedAgentID)
	}
	if f.CountryCode != "" {
		clauses = append(clauses, "country_code=?")
		args = append(args, f.CountryCode)
	}
	if f.CreatedFrom != "" {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.CreatedFrom)
	}
	if f.CreatedTo != "" {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, f.CreatedTo)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + requestColumns + ` FROM service_requests ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, f.Offset)
		}
	} else if f.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, f.Offset)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ServiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		docs, err := r.ListDocuments(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].DocumentIDs = docs
	}
	return res, nil
}

// CountRequestsByStatus aggregates per-status counts, optionally scoped to
// one organization. Statuses with no requests are absent from the map.
func (r Repo) CountRequestsByStatus(ctx context.Context, organizationID string) (map[string]int, error) {
	query := `SELECT status, count(*) FROM service_requests`
	var args []any
	if organizationID != "" {
		query += ` WHERE organization_id=?`
		args = append(args, organizationID)
	}
	query += ` GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

// AddDocument inserts a document reference; it reports whether the set
// actually changed so the caller can skip the activity row on a duplicate.
func (r Repo) AddDocument(ctx context.Context, tx *sql.Tx, requestID, documentID, addedBy, addedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO request_documents(request_id, document_id, added_by, added_at) VALUES (?,?,?,?)`,
		requestID, documentID, nullable(addedBy), addedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r Repo) RemoveDocument(ctx context.Context, tx *sql.Tx, requestID, documentID string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM request_documents WHERE request_id=? AND document_id=?`, requestID, documentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r Repo) ListDocuments(ctx context.Context, requestID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT document_id FROM request_documents WHERE request_id=? ORDER BY added_at ASC, document_id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStrings(rows)
}

func listDocuments(ctx context.Context, tx *sql.Tx, requestID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT document_id FROM request_documents WHERE request_id=? ORDER BY added_at ASC, document_id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStrings(rows)
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	var res []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) InsertNote(ctx context.Context, tx *sql.Tx, n domain.Note) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO request_notes(request_id,type,content,author_id,created_at) VALUES (?,?,?,?,?)`,
		n.RequestID, n.Type, n.Content, n.AuthorID, n.CreatedAt)
	return err
}

// ListNotes returns notes in append order. With citizenOnly set, internal
// notes are filtered out.
func (r Repo) ListNotes(ctx context.Context, requestID string, citizenOnly bool) ([]domain.Note, error) {
	query := `SELECT id,request_id,type,content,author_id,created_at FROM request_notes WHERE request_id=?`
	args := []any{requestID}
	if citizenOnly {
		query += ` AND type=?`
		args = append(args, domain.NoteCitizenVisible)
	}
	query += ` ORDER BY id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.RequestID, &n.Type, &n.Content, &n.AuthorID, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// ListActivities returns the full audit history of a request in append order.
func (r Repo) ListActivities(ctx context.Context, requestID string) ([]domain.Activity, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,request_id,type,actor_id,data_json,ts FROM request_activities WHERE request_id=? ORDER BY id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivities(rows)
}

// ActivitiesAfter returns activities with IDs greater than the cursor in
// ascending order, optionally restricted to a type set.
func (r Repo) ActivitiesAfter(ctx context.Context, limit int, cursor int64, types []string) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"id>?"}
	args := []any{cursor}
	if len(types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(types)), ",")
		clauses = append(clauses, "type IN ("+placeholders+")")
		for _, t := range types {
			args = append(args, t)
		}
	}
	query := `SELECT id,request_id,type,actor_id,data_json,ts FROM request_activities WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivities(rows)
}

// LatestActivityID returns the most recent activity ID.
func (r Repo) LatestActivityID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM request_activities`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func collectActivities(rows *sql.Rows) ([]domain.Activity, error) {
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.RequestID, &a.Type, &a.ActorID, &a.Data, &a.TS); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
