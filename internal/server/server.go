package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"consulaire/internal/domain"
	"consulaire/internal/geo"
	"consulaire/internal/lifecycle"
	"consulaire/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   lifecycle.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"invalid status transition draft -> completed"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Consulaire API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Consulaire API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerMissions(group, cfg.Engine)
	registerRequests(group, cfg.Engine)
	registerNotes(group, cfg.Engine)
	registerDocuments(group, cfg.Engine)
	registerCounts(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	startNotificationDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission})
	}
	var te lifecycle.InvalidTransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{"from": te.From, "to": te.To})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "authentication required"):
		return newAPIError(http.StatusUnauthorized, "unauthorized", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "unknown") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Consulaire API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerMissions(api huma.API, e lifecycle.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-missions",
		Method:      http.MethodGet,
		Path:        "/missions",
		Summary:     "List diplomatic missions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []MissionResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "mission.resolve"); err != nil {
			return nil, handleError(err)
		}
		missions := e.Config.Missions()
		res := make([]MissionResponse, 0, len(missions))
		for _, m := range missions {
			res = append(res, missionResponse(m))
		}
		return &struct {
			Body []MissionResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-jurisdiction",
		Method:      http.MethodGet,
		Path:        "/missions/jurisdiction",
		Summary:     "Resolve consular jurisdiction for a position",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Lon string `query:"lon"`
		Lat string `query:"lat"`
	}) (*struct {
		Body JurisdictionResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "mission.resolve"); err != nil {
			return nil, handleError(err)
		}
		user, err := parsePosition(input.Lon, input.Lat)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "position_required", err.Error(), nil)
		}
		ranked := geo.Rank(user, e.Config.Missions())
		assignment := geo.Resolve(ranked)
		return &struct {
			Body JurisdictionResponse `json:"body"`
		}{Body: jurisdictionResponse(ranked, assignment)}, nil
	})
}

// parsePosition rejects missing or out-of-range coordinates; the caller maps
// the error to the position_required code.
func parsePosition(lon, lat string) (geo.Point, error) {
	if strings.TrimSpace(lon) == "" || strings.TrimSpace(lat) == "" {
		return geo.Point{}, errors.New("position required: lon and lat query parameters must be set")
	}
	lonF, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("position required: invalid lon %q", lon)
	}
	latF, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("position required: invalid lat %q", lat)
	}
	if latF < -90 || latF > 90 || lonF < -180 || lonF > 180 {
		return geo.Point{}, errors.New("position required: coordinates out of range")
	}
	return geo.Point{Longitude: lonF, Latitude: latF}, nil
}

func registerRequests(api huma.API, e lifecycle.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-request",
		Method:        http.MethodPost,
		Path:          "/requests",
		Summary:       "Create service request",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateRequestBody `json:"body"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "request.create"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		orgID := input.Body.OrganizationID
		if orgID == "" {
			orgID = e.Config.Organization.ID
		}
		opts := lifecycle.CreateOptions{
			ServiceID:      input.Body.ServiceID,
			OrganizationID: orgID,
			ProfileID:      input.Body.ProfileID,
			RequesterID:    actorID,
			Priority:       input.Body.Priority,
			CountryCode:    input.Body.CountryCode,
			ActorID:        actorID,
		}
		if input.Body.Data != nil {
			data, err := json.Marshal(input.Body.Data)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid data", map[string]any{"error": err.Error()})
			}
			opts.DataJSON = string(data)
		}
		r, err := e.Create(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-requests",
		Method:      http.MethodGet,
		Path:        "/requests",
		Summary:     "List service requests",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status         string `query:"status" doc:"Comma-separated status set"`
		Priority       string `query:"priority"`
		ServiceID      string `query:"service_id"`
		OrganizationID string `query:"organization_id"`
		ProfileID      string `query:"profile_id"`
		AssignedAgent  string `query:"assigned_agent_id"`
		CountryCode    string `query:"country_code"`
		CreatedFrom    string `query:"created_from"`
		CreatedTo      string `query:"created_to"`
		Limit          int    `query:"limit" default:"50"`
		Offset         int    `query:"offset"`
	}) (*struct {
		Body paginatedRequests `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "request.list"); err != nil {
			return nil, handleError(err)
		}
		limit := input.Limit
		if limit <= 0 {
			limit = 50
		}
		if limit > 200 {
			limit = 200
		}
		var statuses []string
		for _, s := range strings.Split(input.Status, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, s)
			}
		}
		items, err := e.List(ctx, repo.RequestFilters{
			Statuses:        statuses,
			Priority:        input.Priority,
			ServiceID:       input.ServiceID,
			OrganizationID:  input.OrganizationID,
			ProfileID:       input.ProfileID,
			AssignedAgentID: input.AssignedAgent,
			CountryCode:     input.CountryCode,
			CreatedFrom:     input.CreatedFrom,
			CreatedTo:       input.CreatedTo,
			Limit:           limit,
			Offset:          input.Offset,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body paginatedRequests `json:"body"`
		}{Body: paginatedRequests{Items: mapRequests(items), Limit: limit, Offset: input.Offset}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-request",
		Method:      http.MethodGet,
		Path:        "/requests/{id}",
		Summary:     "Get service request",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "request.read"); err != nil {
			return nil, handleError(err)
		}
		r, err := e.Get(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-request-by-number",
		Method:      http.MethodGet,
		Path:        "/requests/by-number/{number}",
		Summary:     "Get service request by number",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Number string `path:"number"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "request.read"); err != nil {
			return nil, handleError(err)
		}
		r, err := e.GetByNumber(ctx, input.Number)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-request-status",
		Method:      http.MethodPatch,
		Path:        "/requests/{id}/status",
		Summary:     "Change request status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string           `path:"id"`
		Body ChangeStatusBody `json:"body"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		if input.Body.Status == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "status is required", nil)
		}
		if err := requirePermission(ctx, e.Config, "request.review"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		r, err := e.ChangeStatus(ctx, input.ID, input.Body.Status, actorID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-request",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/submit",
		Summary:     "Submit a draft request",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "request.submit"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		r, err := e.Submit(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-request",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/assign",
		Summary:     "Assign request to an agent",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string     `path:"id"`
		Body AssignBody `json:"body"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		if input.Body.AgentID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "agent_id is required", nil)
		}
		if err := requirePermission(ctx, e.Config, "request.assign"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		r, err := e.Assign(ctx, input.ID, input.Body.AgentID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-request",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/reject",
		Summary:     "Reject a request",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string     `path:"id"`
		Body RejectBody `json:"body"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "request.review"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		r, err := e.Reject(ctx, input.ID, actorID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-request",
		Method:      http.MethodPost,
		Path:        "/requests/{id}/complete",
		Summary:     "Complete a validated request",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "request.review"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		r, err := e.Complete(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-activities",
		Method:      http.MethodGet,
		Path:        "/requests/{id}/activities",
		Summary:     "Request activity history",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []ActivityResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "request.read"); err != nil {
			return nil, handleError(err)
		}
		if _, err := e.Get(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		acts, err := e.History(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]ActivityResponse, 0, len(acts))
		for _, a := range acts {
			res = append(res, activityResponse(a))
		}
		return &struct {
			Body []ActivityResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerNotes(api huma.API, e lifecycle.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-request-note",
		Method:        http.MethodPost,
		Path:          "/requests/{id}/notes",
		Summary:       "Add note to request",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string   `path:"id"`
		Body NoteBody `json:"body"`
	}) (*struct {
		Body NoteResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "request.note"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.AddNote(ctx, input.ID, input.Body.Type, input.Body.Content, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NoteResponse `json:"body"`
		}{Body: noteResponse(n)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-request-notes",
		Method:      http.MethodGet,
		Path:        "/requests/{id}/notes",
		Summary:     "List request notes",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID          string `path:"id"`
		CitizenOnly bool   `query:"citizen_only"`
	}) (*struct {
		Body []NoteResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "request.read"); err != nil {
			return nil, handleError(err)
		}
		if _, err := e.Get(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		notes, err := e.Notes(ctx, input.ID, input.CitizenOnly)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]NoteResponse, 0, len(notes))
		for _, n := range notes {
			res = append(res, noteResponse(n))
		}
		return &struct {
			Body []NoteResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerDocuments(api huma.API, e lifecycle.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "add-request-document",
		Method:      http.MethodPut,
		Path:        "/requests/{id}/documents/{document_id}",
		Summary:     "Attach document to request",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID         string `path:"id"`
		DocumentID string `path:"document_id"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "request.document"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		r, err := e.AddDocument(ctx, input.ID, input.DocumentID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-request-document",
		Method:      http.MethodDelete,
		Path:        "/requests/{id}/documents/{document_id}",
		Summary:     "Detach document from request",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID         string `path:"id"`
		DocumentID string `path:"document_id"`
	}) (*struct {
		Body RequestResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "request.document"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		r, err := e.RemoveDocument(ctx, input.ID, input.DocumentID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequestResponse `json:"body"`
		}{Body: requestResponse(r)}, nil
	})
}

func registerCounts(api huma.API, e lifecycle.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "request-counts",
		Method:      http.MethodGet,
		Path:        "/requests/counts",
		Summary:     "Request counts per status",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		OrganizationID string `query:"organization_id"`
	}) (*struct {
		Body map[string]int `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "request.counts"); err != nil {
			return nil, handleError(err)
		}
		counts, err := e.StatusCounts(ctx, input.OrganizationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]int `json:"body"`
		}{Body: counts}, nil
	})
}

func registerAPIKeys(api huma.API, e lifecycle.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-apikey",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create API key",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body struct {
			ActorID string `json:"actor_id"`
			Name    string `json:"name,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "apikey.manage"); err != nil {
			return nil, handleError(err)
		}
		if input.Body.ActorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		rawKey := uuid.New().String() + uuid.New().String()
		key := domain.APIKey{
			ID:        uuid.New().String(),
			ActorID:   input.Body.ActorID,
			Name:      input.Body.Name,
			KeyHash:   repo.HashAPIKey(rawKey),
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
			return nil, handleError(err)
		}
		resp := apiKeyResponse(key)
		resp.Key = rawKey
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-apikeys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List API keys",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ActorID string `query:"actor_id"`
	}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e.Config, "apikey.manage"); err != nil {
			return nil, handleError(err)
		}
		keys, err := e.Repo.ListAPIKeys(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]APIKeyResponse, 0, len(keys))
		for _, k := range keys {
			res = append(res, apiKeyResponse(k))
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-apikey",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{id}",
		Summary:     "Revoke API key",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, e.Config, "apikey.manage"); err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.DeleteAPIKey(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
