package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/livebridge/internal/api/models"
	"github.com/smazurov/livebridge/internal/calendar"
)

func (s *Server) registerCalendarRoutes() {
	store := s.options.Calendar

	huma.Register(s.api, huma.Operation{
		OperationID: "list-calendar",
		Method:      http.MethodGet,
		Path:        "/api/calendar",
		Summary:     "Public calendar",
		Description: "Published events ordered by start time",
		Tags:        []string{"calendar"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.CalendarListResponse, error) {
		return calendarList(store.List(true)), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "admin-list-calendar",
		Method:      http.MethodGet,
		Path:        "/api/admin/calendar",
		Summary:     "List all events",
		Description: "All events including unpublished drafts",
		Tags:        []string{"calendar", "admin"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.CalendarListResponse, error) {
		return calendarList(store.List(false)), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "admin-create-calendar-event",
		Method:        http.MethodPost,
		Path:          "/api/admin/calendar",
		Summary:       "Create event",
		Tags:          []string{"calendar", "admin"},
		Security:      withAuth(),
		DefaultStatus: http.StatusCreated,
		Errors:        []int{401, 422},
	}, func(_ context.Context, input *models.CalendarCreateInput) (*models.CalendarEventResponse, error) {
		ev, err := store.Create(input.Body)
		if err != nil {
			return nil, calendarError(err)
		}
		return &models.CalendarEventResponse{Body: ev}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "admin-get-calendar-event",
		Method:      http.MethodGet,
		Path:        "/api/admin/calendar/{id}",
		Summary:     "Get event",
		Tags:        []string{"calendar", "admin"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.CalendarIDInput) (*models.CalendarEventResponse, error) {
		ev, err := store.Get(input.ID)
		if err != nil {
			return nil, calendarError(err)
		}
		return &models.CalendarEventResponse{Body: ev}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "admin-update-calendar-event",
		Method:      http.MethodPut,
		Path:        "/api/admin/calendar/{id}",
		Summary:     "Update event",
		Tags:        []string{"calendar", "admin"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 422},
	}, func(_ context.Context, input *models.CalendarUpdateInput) (*models.CalendarEventResponse, error) {
		ev, err := store.Update(input.ID, input.Body)
		if err != nil {
			return nil, calendarError(err)
		}
		return &models.CalendarEventResponse{Body: ev}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "admin-delete-calendar-event",
		Method:        http.MethodDelete,
		Path:          "/api/admin/calendar/{id}",
		Summary:       "Delete event",
		Tags:          []string{"calendar", "admin"},
		Security:      withAuth(),
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404},
	}, func(_ context.Context, input *models.CalendarIDInput) (*struct{}, error) {
		if err := store.Delete(input.ID); err != nil {
			return nil, calendarError(err)
		}
		return nil, nil
	})
}

func calendarList(list []calendar.Event) *models.CalendarListResponse {
	return &models.CalendarListResponse{
		Body: models.CalendarListData{Events: list, Count: len(list)},
	}
}

func calendarError(err error) error {
	switch {
	case errors.Is(err, calendar.ErrNotFound):
		return huma.Error404NotFound("event not found")
	case errors.Is(err, calendar.ErrInvalid):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		return huma.Error500InternalServerError("calendar update failed", err)
	}
}
