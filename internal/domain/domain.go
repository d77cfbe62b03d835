package domain

// Mission kinds. Only embassies and consulates general take part in
// jurisdiction resolution; the remaining kinds exist for the directory.
const (
	MissionEmbassy           = "embassy"
	MissionConsulateGeneral  = "consulate_general"
	MissionHonoraryConsulate = "honorary_consulate"
	MissionPermanentMission  = "permanent_mission"
)

// Request statuses.
const (
	StatusDraft             = "draft"
	StatusSubmitted         = "submitted"
	StatusUnderReview       = "under_review"
	StatusAssigned          = "assigned"
	StatusAwaitingDocuments = "awaiting_documents"
	StatusValidated         = "validated"
	StatusRejected          = "rejected"
	StatusCompleted         = "completed"
)

// Request priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Note types.
const (
	NoteInternal       = "internal"
	NoteCitizenVisible = "citizen_visible"
)

// Activity types.
const (
	ActivityRequestCreated   = "request.created"
	ActivityStatusChanged    = "status.changed"
	ActivityRequestAssigned  = "request.assigned"
	ActivityDocumentUploaded = "document.uploaded"
	ActivityDocumentDeleted  = "document.deleted"
	ActivityCommentAdded     = "comment.added"
	ActivityRequestCompleted = "request.completed"
)

// Statuses lists every engine status.
func Statuses() []string {
	return []string{
		StatusDraft, StatusSubmitted, StatusUnderReview, StatusAssigned,
		StatusAwaitingDocuments, StatusValidated, StatusRejected, StatusCompleted,
	}
}

type Mission struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind" enum:"embassy,consulate_general,honorary_consulate,permanent_mission"`
	CountryCode string  `json:"country_code"`
	City        string  `json:"city"`
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
}

type ServiceRequest struct {
	ID              string   `json:"id"`
	Number          string   `json:"number"`
	Status          string   `json:"status" enum:"draft,submitted,under_review,assigned,awaiting_documents,validated,rejected,completed"`
	Priority        string   `json:"priority" enum:"low,normal,high,urgent"`
	ServiceID       string   `json:"service_id"`
	OrganizationID  string   `json:"organization_id"`
	ProfileID       string   `json:"profile_id"`
	RequesterID     string   `json:"requester_id"`
	AssignedAgentID *string  `json:"assigned_agent_id,omitempty"`
	CountryCode     string   `json:"country_code,omitempty"`
	DataJSON        *string  `json:"data_json,omitempty"`
	DocumentIDs     []string `json:"document_ids,omitempty"`
	CreatedAt       string   `json:"created_at" format:"date-time"`
	SubmittedAt     *string  `json:"submitted_at,omitempty" format:"date-time"`
	AssignedAt      *string  `json:"assigned_at,omitempty" format:"date-time"`
	CompletedAt     *string  `json:"completed_at,omitempty" format:"date-time"`
}

type Note struct {
	ID        int64  `json:"id"`
	RequestID string `json:"request_id"`
	Type      string `json:"type" enum:"internal,citizen_visible"`
	Content   string `json:"content"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Activity struct {
	ID        int64  `json:"id"`
	RequestID string `json:"request_id"`
	Type      string `json:"type"`
	ActorID   string `json:"actor_id"`
	Data      string `json:"data_json"`
	TS        string `json:"ts" format:"date-time"`
}

// ConsularService, Profile and Organization are reference records used for
// display enrichment only; the lifecycle model does not own their validity.
type ConsularService struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type Profile struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Contact  string `json:"contact,omitempty"`
}

type Organization struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CountryCode string `json:"country_code,omitempty"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
