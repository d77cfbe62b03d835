package server

import (
	"encoding/json"

	"consulaire/internal/domain"
	"consulaire/internal/geo"
)

type CreateRequestBody struct {
	ServiceID      string         `json:"service_id"`
	OrganizationID string         `json:"organization_id,omitempty"`
	ProfileID      string         `json:"profile_id"`
	Priority       string         `json:"priority,omitempty" enum:"low,normal,high,urgent"`
	CountryCode    string         `json:"country_code,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

type ChangeStatusBody struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type AssignBody struct {
	AgentID string `json:"agent_id"`
}

type RejectBody struct {
	Reason string `json:"reason,omitempty"`
}

type NoteBody struct {
	Type    string `json:"type,omitempty" enum:"internal,citizen_visible"`
	Content string `json:"content"`
}

type RequestResponse struct {
	ID              string          `json:"id"`
	Number          string          `json:"number"`
	Status          string          `json:"status"`
	DisplayStatus   string          `json:"display_status"`
	Priority        string          `json:"priority"`
	ServiceID       string          `json:"service_id"`
	OrganizationID  string          `json:"organization_id"`
	ProfileID       string          `json:"profile_id"`
	RequesterID     string          `json:"requester_id"`
	AssignedAgentID *string         `json:"assigned_agent_id,omitempty"`
	CountryCode     string          `json:"country_code,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
	DocumentIDs     []string        `json:"document_ids"`
	CreatedAt       string          `json:"created_at"`
	SubmittedAt     *string         `json:"submitted_at,omitempty"`
	AssignedAt      *string         `json:"assigned_at,omitempty"`
	CompletedAt     *string         `json:"completed_at,omitempty"`
}

// displayStatus maps two engine statuses to their citizen-facing labels.
// These aliases never enter the engine.
func displayStatus(status string) string {
	switch status {
	case domain.StatusAwaitingDocuments:
		return "pending_completion"
	case domain.StatusValidated:
		return "ready_for_pickup"
	}
	return status
}

func requestResponse(r domain.ServiceRequest) RequestResponse {
	resp := RequestResponse{
		ID:              r.ID,
		Number:          r.Number,
		Status:          r.Status,
		DisplayStatus:   displayStatus(r.Status),
		Priority:        r.Priority,
		ServiceID:       r.ServiceID,
		OrganizationID:  r.OrganizationID,
		ProfileID:       r.ProfileID,
		RequesterID:     r.RequesterID,
		AssignedAgentID: r.AssignedAgentID,
		CountryCode:     r.CountryCode,
		DocumentIDs:     r.DocumentIDs,
		CreatedAt:       r.CreatedAt,
		SubmittedAt:     r.SubmittedAt,
		AssignedAt:      r.AssignedAt,
		CompletedAt:     r.CompletedAt,
	}
	if resp.DocumentIDs == nil {
		resp.DocumentIDs = []string{}
	}
	if r.DataJSON != nil && json.Valid([]byte(*r.DataJSON)) {
		resp.Data = json.RawMessage(*r.DataJSON)
	}
	return resp
}

func mapRequests(items []domain.ServiceRequest) []RequestResponse {
	res := make([]RequestResponse, 0, len(items))
	for _, r := range items {
		res = append(res, requestResponse(r))
	}
	return res
}

type paginatedRequests struct {
	Items  []RequestResponse `json:"items"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type NoteResponse struct {
	ID        int64  `json:"id"`
	RequestID string `json:"request_id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at"`
}

func noteResponse(n domain.Note) NoteResponse {
	return NoteResponse(n)
}

type ActivityResponse struct {
	ID        int64           `json:"id"`
	RequestID string          `json:"request_id"`
	Type      string          `json:"type"`
	ActorID   string          `json:"actor_id"`
	Payload   json.RawMessage `json:"payload"`
	TS        string          `json:"ts"`
}

func activityResponse(a domain.Activity) ActivityResponse {
	payload := json.RawMessage([]byte("{}"))
	if a.Data != "" && json.Valid([]byte(a.Data)) {
		payload = json.RawMessage(a.Data)
	}
	return ActivityResponse{
		ID:        a.ID,
		RequestID: a.RequestID,
		Type:      a.Type,
		ActorID:   a.ActorID,
		Payload:   payload,
		TS:        a.TS,
	}
}

type MissionResponse struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	CountryCode string   `json:"country_code"`
	City        string   `json:"city"`
	Longitude   float64  `json:"longitude"`
	Latitude    float64  `json:"latitude"`
	DistanceKm  *float64 `json:"distance_km,omitempty"`
}

func missionResponse(m domain.Mission) MissionResponse {
	return MissionResponse{
		ID:          m.ID,
		Kind:        m.Kind,
		CountryCode: m.CountryCode,
		City:        m.City,
		Longitude:   m.Longitude,
		Latitude:    m.Latitude,
	}
}

func rankedMissionResponse(m geo.RankedMission) MissionResponse {
	resp := missionResponse(m.Mission)
	d := m.DistanceKm
	resp.DistanceKm = &d
	return resp
}

type JurisdictionResponse struct {
	Missions                []MissionResponse `json:"missions"`
	NearestConsulateGeneral *MissionResponse  `json:"nearest_consulate_general,omitempty"`
	NearestEmbassy          *MissionResponse  `json:"nearest_embassy,omitempty"`
	Effective               *MissionResponse  `json:"effective,omitempty"`
}

func jurisdictionResponse(ranked []geo.RankedMission, a geo.Assignment) JurisdictionResponse {
	resp := JurisdictionResponse{Missions: make([]MissionResponse, 0, len(ranked))}
	for _, m := range ranked {
		resp.Missions = append(resp.Missions, rankedMissionResponse(m))
	}
	conv := func(m *geo.RankedMission) *MissionResponse {
		if m == nil {
			return nil
		}
		r := rankedMissionResponse(*m)
		return &r
	}
	resp.NearestConsulateGeneral = conv(a.NearestConsulateGeneral)
	resp.NearestEmbassy = conv(a.NearestEmbassy)
	resp.Effective = conv(a.Effective)
	return resp
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
	// Key is only present in the create response.
	Key string `json:"key,omitempty"`
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		ActorID:   k.ActorID,
		Name:      k.Name,
		CreatedAt: k.CreatedAt,
	}
}
