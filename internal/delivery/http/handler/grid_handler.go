package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"curation-grid/internal/delivery/http/dto"
	"curation-grid/internal/delivery/http/middleware"
	"curation-grid/internal/domain/job"
	"curation-grid/internal/grid"
	"curation-grid/internal/pkg/response"
	"curation-grid/internal/session"
)

// Sessions hands out the calling curator's controller.
type Sessions interface {
	Get(ctx context.Context, curator string) (*grid.Controller, error)
	Release(curator string) bool
}

// EventStream upgrades a request into a push channel for the curator.
type EventStream interface {
	Stream(c fiber.Ctx, curator string, ctl *grid.Controller) error
}

type GridHandler struct {
	sessions Sessions
	events   EventStream
}

func NewGridHandler(sessions Sessions, events EventStream) *GridHandler {
	return &GridHandler{sessions: sessions, events: events}
}

func (h *GridHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	r.Get("/state", h.State)
	r.Get("/rows", h.Rows)
	r.Post("/rows/measure", h.MeasureRow)
	r.Post("/reload", h.Reload)
	r.Delete("/session", h.ReleaseSession)

	r.Put("/search/draft", h.SetSearchDraft)
	r.Post("/search", h.CommitSearch)
	r.Put("/page", h.GoToPage)
	r.Put("/page-size", h.SetPageSize)
	r.Put("/view", h.SetViewMode)
	r.Put("/feed-source", h.SetFeedSource)

	r.Post("/selection/all", h.SelectAll)
	r.Post("/selection/:id/toggle", h.ToggleSelection)
	r.Delete("/selection", h.ClearSelection)

	r.Post("/edit", h.StartEdit)
	r.Put("/edit/draft", h.UpdateDraft)
	r.Post("/edit/commit", h.CommitEdit)
	r.Delete("/edit", h.CancelEdit)

	r.Get("/jobs/:id", h.Record)
	r.Get("/jobs/:id/copy", h.CopyText)
	r.Post("/jobs/:id/priority", h.TogglePriority)
	r.Delete("/jobs/:id/curation", h.RemoveFromCuration)
	r.Delete("/jobs/:id/communities/:communityId", h.RemoveFromCommunity)
	r.Post("/curate", h.CurateSelected)
	r.Get("/communities", h.Communities)

	r.Get("/ws", h.Events)
}

func (h *GridHandler) controller(c fiber.Ctx) (*grid.Controller, string, error) {
	curator, ok := middleware.CuratorFromCtx(c)
	if !ok {
		return nil, "", middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}
	ctl, err := h.sessions.Get(c.Context(), curator)
	if err != nil {
		return nil, "", mapGridError(err)
	}
	return ctl, curator, nil
}

func (h *GridHandler) state(c fiber.Ctx, ctl *grid.Controller, status int) error {
	snap, err := ctl.Snapshot()
	if err != nil {
		return mapGridError(err)
	}
	return response.Success(c, status, response.MessageOK, snap)
}

func (h *GridHandler) State(c fiber.Ctx) error {
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	return h.state(c, ctl, fiber.StatusOK)
}

func (h *GridHandler) Rows(c fiber.Ctx) error {
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	top, err := parseQueryFloatStrict(c, "scroll_top", 0)
	if err != nil {
		return badRequest(err)
	}
	height, err := parseQueryFloatStrict(c, "height", 0)
	if err != nil {
		return badRequest(err)
	}

	list, err := ctl.Render(grid.Viewport{ScrollTop: top, Height: height})
	if err != nil {
		return mapGridError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewRenderResponse(list))
}

func (h *GridHandler) MeasureRow(c fiber.Ctx) error {
	var req dto.MeasureRowRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.MeasureRow(req.Index, req.Height); err != nil {
		return mapGridError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, nil)
}

func (h *GridHandler) Reload(c fiber.Ctx) error {
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.Reload(); err != nil {
		return mapGridError(err)
	}
	return h.state(c, ctl, fiber.StatusAccepted)
}

func (h *GridHandler) ReleaseSession(c fiber.Ctx) error {
	curator, ok := middleware.CuratorFromCtx(c)
	if !ok {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, map[string]bool{"released": h.sessions.Release(curator)})
}

func (h *GridHandler) SetSearchDraft(c fiber.Ctx) error {
	var req dto.SearchRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.SetSearchDraft(req.Text); err != nil {
		return mapGridError(err)
	}
	return h.state(c, ctl, fiber.StatusOK)
}

func (h *GridHandler) CommitSearch(c fiber.Ctx) error {
	var req dto.SearchRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.CommitSearch(req.Text); err != nil {
		return mapGridError(err)
	}
	return h.state(c, ctl, fiber.StatusAccepted)
}

func (h *GridHandler) GoToPage(c fiber.Ctx) error {
	var req dto.PageRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.GoToPage(req.Page); err != nil {
		return mapGridError(err)
	}
	return h.state(c, ctl, fiber.StatusAccepted)
}

func (h *GridHandler) SetPageSize(c fiber.Ctx) error {
	var req dto.PageSizeRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.SetPageSize(req.PageSize); err != nil {
		return mapGridError(err)
	}
	return h.state(c, ctl, fiber.StatusAccepted)
}

func (h *GridHandler) SetViewMode(c fiber.Ctx) error {
	var req dto.ViewModeRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}
	mode, err := grid.ParseViewMode(req.Mode)
	if err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.SetViewMode(mode); err != nil {
		return mapGridError(err)
	}
	return h.state(c, ctl, fiber.StatusAccepted)
}

func (h *GridHandler) SetFeedSource(c fiber.Ctx) error {
	var req dto.FeedSourceRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.SetFeedSource(req.FeedSource); err != nil {
		return mapGridError(err)
	}
	return h.state(c, ctl, fiber.StatusAccepted)
}

func (h *GridHandler) ToggleSelection(c fiber.Ctx) error {
	id, err := parseJobID(c, "id")
	if err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	selected, err := ctl.ToggleSelection(id)
	if err != nil {
		return mapGridError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, map[string]bool{"selected": selected})
}

func (h *GridHandler) SelectAll(c fiber.Ctx) error {
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.SelectAll(); err != nil {
		return mapGridError(err)
	}
	return h.state(c, ctl, fiber.StatusOK)
}

func (h *GridHandler) ClearSelection(c fiber.Ctx) error {
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.ClearSelection(); err != nil {
		return mapGridError(err)
	}
	return h.state(c, ctl, fiber.StatusOK)
}

func (h *GridHandler) StartEdit(c fiber.Ctx) error {
	var req dto.StartEditRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}
	field, err := job.ParseField(req.Field)
	if err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.StartEdit(job.ID(req.JobID), field, req.Current); err != nil {
		return mapGridError(err)
	}
	return h.state(c, ctl, fiber.StatusOK)
}

func (h *GridHandler) UpdateDraft(c fiber.Ctx) error {
	var req dto.DraftRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.UpdateDraft(req.Value); err != nil {
		return mapGridError(err)
	}
	return h.state(c, ctl, fiber.StatusOK)
}

func (h *GridHandler) CommitEdit(c fiber.Ctx) error {
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	id, err := ctl.CommitEdit()
	return h.accepted(c, id, err)
}

func (h *GridHandler) CancelEdit(c fiber.Ctx) error {
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	if err := ctl.CancelEdit(); err != nil {
		return mapGridError(err)
	}
	return h.state(c, ctl, fiber.StatusOK)
}

func (h *GridHandler) Record(c fiber.Ctx) error {
	id, err := parseJobID(c, "id")
	if err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	rec, err := ctl.Record(id)
	if err != nil {
		return mapGridError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewJobRow(rec))
}

func (h *GridHandler) CopyText(c fiber.Ctx) error {
	id, err := parseJobID(c, "id")
	if err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	text, err := ctl.CopyText(id)
	if err != nil {
		return mapGridError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, map[string]string{"text": text})
}

func (h *GridHandler) TogglePriority(c fiber.Ctx) error {
	id, err := parseJobID(c, "id")
	if err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	mid, err := ctl.TogglePriority(id)
	return h.accepted(c, mid, err)
}

func (h *GridHandler) RemoveFromCuration(c fiber.Ctx) error {
	id, err := parseJobID(c, "id")
	if err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	mid, err := ctl.RemoveFromCuration(id)
	return h.accepted(c, mid, err)
}

func (h *GridHandler) RemoveFromCommunity(c fiber.Ctx) error {
	id, err := parseJobID(c, "id")
	if err != nil {
		return badRequest(err)
	}
	communityID, err := strconv.ParseInt(c.Params("communityId"), 10, 64)
	if err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	mid, err := ctl.RemoveFromCommunity(id, communityID)
	return h.accepted(c, mid, err)
}

func (h *GridHandler) CurateSelected(c fiber.Ctx) error {
	var req dto.CurateRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(err)
	}
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	mid, err := ctl.CurateSelected(req.CommunityIDs, strings.TrimSpace(req.Notes))
	return h.accepted(c, mid, err)
}

func (h *GridHandler) Communities(c fiber.Ctx) error {
	ctl, _, err := h.controller(c)
	if err != nil {
		return err
	}
	out, err := ctl.Communities()
	if err != nil {
		return mapGridError(err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, out)
}

func (h *GridHandler) Events(c fiber.Ctx) error {
	if h.events == nil {
		return middleware.NewAppError(fiber.StatusServiceUnavailable, "Event stream disabled", nil, nil)
	}
	ctl, curator, err := h.controller(c)
	if err != nil {
		return err
	}
	return h.events.Stream(c, curator, ctl)
}

func (h *GridHandler) accepted(c fiber.Ctx, mutationID uuid.UUID, err error) error {
	if err != nil {
		return mapGridError(err)
	}
	return response.Accepted(c, map[string]string{"mutation_id": mutationID.String()})
}

func parseJobID(c fiber.Ctx, key string) (job.ID, error) {
	v, err := strconv.ParseInt(c.Params(key), 10, 64)
	if err != nil {
		return 0, err
	}
	return job.ID(v), nil
}

func parseQueryFloatStrict(c fiber.Ctx, key string, defaultVal float64) (float64, error) {
	s := c.Query(key)
	if s == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(s, 64)
}

func badRequest(err error) error {
	return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
}

func mapGridError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, grid.ErrRecordNotFound):
		return middleware.NewAppError(fiber.StatusConflict, "Job is no longer on this page; reloading", nil, err)
	case errors.Is(err, grid.ErrEditInProgress),
		errors.Is(err, grid.ErrRecordBusy),
		errors.Is(err, grid.ErrNoActiveEdit):
		return middleware.NewAppError(fiber.StatusConflict, err.Error(), nil, err)
	case errors.Is(err, grid.ErrCurationRequired),
		errors.Is(err, grid.ErrLastCommunity),
		errors.Is(err, grid.ErrNotCurated),
		errors.Is(err, grid.ErrNotInCommunity):
		return middleware.NewAppError(fiber.StatusUnprocessableEntity, err.Error(), nil, err)
	case errors.Is(err, grid.ErrFieldNotEditable),
		errors.Is(err, grid.ErrEmptySelection),
		errors.Is(err, grid.ErrNoCommunities),
		errors.Is(err, grid.ErrInvalidViewMode):
		return middleware.NewAppError(fiber.StatusBadRequest, err.Error(), nil, err)
	case errors.Is(err, grid.ErrDisposed), errors.Is(err, session.ErrClosed):
		return middleware.NewAppError(fiber.StatusServiceUnavailable, "Session closed, retry", nil, err)
	case errors.Is(err, session.ErrInvalidCurator):
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, err)
	default:
		return middleware.NewAppError(fiber.StatusInternalServerError, response.MessageInternalServerError, nil, err)
	}
}
