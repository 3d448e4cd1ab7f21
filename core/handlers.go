package core

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const userIdHeader = "X-User-Id"

type Handlers interface {
	PostEvents(gctx *gin.Context)
	GetEvents(gctx *gin.Context)
	GetEvent(gctx *gin.Context)
	DeleteEvent(gctx *gin.Context)
	GetUserEvents(gctx *gin.Context)
	PostAttendees(gctx *gin.Context)
	DeleteAttendee(gctx *gin.Context)
	GetRole(gctx *gin.Context)
	PostReminders(gctx *gin.Context)
	GetReminders(gctx *gin.Context)
	PostScheduleReminders(gctx *gin.Context)
}

type handlers struct {
	store      AttendanceStore
	controller AttendanceController
	scheduler  ReminderScheduler
	window     time.Duration
	now        func() time.Time
}

func NewHandlers(store AttendanceStore, controller AttendanceController, scheduler ReminderScheduler, window time.Duration, now func() time.Time) Handlers {
	if now == nil {
		now = time.Now
	}

	return &handlers{
		store:      store,
		controller: controller,
		scheduler:  scheduler,
		window:     window,
		now:        now,
	}
}

// EventDetail is the event view the presentation layer renders: the
// event itself, its roster, the caller's role, and whether the caller
// may still cancel. CanCancel uses the same predicate the controller
// enforces, so the UI never offers an action the controller rejects.
type EventDetail struct {
	Event
	HostIds     []string `json:"host_ids"`
	AttendeeIds []string `json:"attendee_ids"`
	Role        Role     `json:"role"`
	CanCancel   bool     `json:"can_cancel"`
}

func (h *handlers) PostEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	userId := gctx.GetHeader(userIdHeader)
	if len(userId) == 0 {
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("header 'X-User-Id' is required"))
		return
	}

	var event Event

	err := gctx.ShouldBindJSON(&event)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	err = ValidateEvent(event, h.now())
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("event validation failed")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("event validation failed", err))

		return
	}

	// The creator becomes the event's host in the same transaction.
	saved, err := h.store.SaveEvent(ctx, &event, userId)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("saving event failed")
		gctx.AbortWithStatusJSON(http.StatusBadGateway, NewError("saving event failed", err))

		return
	}

	gctx.JSON(http.StatusCreated, saved)
}

func (h *handlers) GetEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	events, err := h.store.ListEvents(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("listing events failed")
		gctx.AbortWithStatusJSON(http.StatusBadGateway, NewError("listing events failed", err))

		return
	}

	gctx.JSON(http.StatusOK, events)
}

func (h *handlers) GetEvent(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id := gctx.Param("id")
	userId := gctx.GetHeader(userIdHeader)

	event, err := h.store.GetEventById(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			log.Ctx(ctx).Info().Str("event_id", id).Msg("event not found")
			gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("event not found", err))

			return
		}

		log.Ctx(ctx).Error().Err(err).Msg("getting event failed")
		gctx.AbortWithStatusJSON(http.StatusBadGateway, NewError("getting event failed", err))

		return
	}

	attendance, err := h.store.GetAttendance(ctx, id)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("getting attendance failed")
		gctx.AbortWithStatusJSON(http.StatusBadGateway, NewError("getting attendance failed", err))

		return
	}

	gctx.JSON(http.StatusOK, EventDetail{
		Event:       *event,
		HostIds:     sortedIds(attendance.HostIds),
		AttendeeIds: sortedIds(attendance.AttendeeIds),
		Role:        attendance.RoleOf(userId),
		CanCancel:   AllowedToCancel(event.StartsAt, h.now(), h.window),
	})
}

func (h *handlers) DeleteEvent(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	id := gctx.Param("id")
	userId := gctx.GetHeader(userIdHeader)

	role, err := h.controller.CurrentRole(ctx, id, userId)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("resolving role failed")
		gctx.AbortWithStatusJSON(http.StatusBadGateway, NewError("resolving role failed", err))

		return
	}

	if role != RoleHost {
		gctx.AbortWithStatusJSON(http.StatusForbidden, NewError("only the host can delete an event"))
		return
	}

	err = h.store.DeleteEvent(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("event not found", err))
			return
		}

		log.Ctx(ctx).Error().Err(err).Msg("deleting event failed")
		gctx.AbortWithStatusJSON(http.StatusBadGateway, NewError("deleting event failed", err))

		return
	}

	gctx.Status(http.StatusNoContent)
}

func (h *handlers) GetUserEvents(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	userId := gctx.Param("id")

	role := Role(gctx.DefaultQuery("role", string(RoleAttendee)))
	if role != RoleHost && role != RoleAttendee {
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("role must be 'host' or 'attendee'"))
		return
	}

	events, err := h.store.ListEventsByRole(ctx, userId, role)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("listing user events failed")
		gctx.AbortWithStatusJSON(http.StatusBadGateway, NewError("listing user events failed", err))

		return
	}

	gctx.JSON(http.StatusOK, events)
}

func (h *handlers) PostAttendees(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	eventId := gctx.Param("id")

	userId := gctx.GetHeader(userIdHeader)
	if len(userId) == 0 {
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("header 'X-User-Id' is required"))
		return
	}

	role, err := h.controller.Join(ctx, eventId, userId)
	if err != nil {
		if errors.Is(err, ErrAlreadyJoined) {
			gctx.AbortWithStatusJSON(http.StatusConflict, NewError("already joined", err))
			return
		}

		log.Ctx(ctx).Error().Err(err).Msg("joining event failed")
		gctx.AbortWithStatusJSON(http.StatusBadGateway, NewError("joining event failed", err))

		return
	}

	gctx.JSON(http.StatusCreated, gin.H{"role": role})
}

func (h *handlers) DeleteAttendee(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	eventId := gctx.Param("id")
	targetId := gctx.Param("userId")

	callerId := gctx.GetHeader(userIdHeader)
	if len(callerId) == 0 {
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("header 'X-User-Id' is required"))
		return
	}

	// Self-cancellation goes through the controller and its window
	// policy. A host removing someone else bypasses the window.
	if callerId == targetId {
		role, err := h.controller.Cancel(ctx, eventId, targetId)
		if err != nil {
			if errors.Is(err, ErrWindowClosed) {
				gctx.AbortWithStatusJSON(http.StatusConflict, NewError("cancellation window closed", err))
				return
			}

			log.Ctx(ctx).Error().Err(err).Msg("cancelling registration failed")
			gctx.AbortWithStatusJSON(http.StatusBadGateway, NewError("cancelling registration failed", err))

			return
		}

		gctx.JSON(http.StatusOK, gin.H{"role": role})

		return
	}

	callerRole, err := h.controller.CurrentRole(ctx, eventId, callerId)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("resolving role failed")
		gctx.AbortWithStatusJSON(http.StatusBadGateway, NewError("resolving role failed", err))

		return
	}

	if callerRole != RoleHost {
		gctx.AbortWithStatusJSON(http.StatusForbidden, NewError("only the host can remove attendees"))
		return
	}

	err = h.store.RemoveAttendee(ctx, eventId, targetId)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("removing attendee failed")
		gctx.AbortWithStatusJSON(http.StatusBadGateway, NewError("removing attendee failed", err))

		return
	}

	gctx.Status(http.StatusNoContent)
}

func (h *handlers) GetRole(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	eventId := gctx.Param("id")
	userId := gctx.Param("userId")

	role, err := h.controller.CurrentRole(ctx, eventId, userId)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("resolving role failed")
		gctx.AbortWithStatusJSON(http.StatusBadGateway, NewError("resolving role failed", err))

		return
	}

	gctx.JSON(http.StatusOK, gin.H{"role": role})
}

type reminderRequest struct {
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"time_of_day"`
}

func (h *handlers) PostReminders(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	eventId := gctx.Param("id")

	var req reminderRequest

	err := gctx.ShouldBindJSON(&req)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, NewError("failed to bind JSON", err))

		return
	}

	spec := h.scheduler.AddReminder(eventId, req.Date, req.TimeOfDay)

	gctx.JSON(http.StatusCreated, spec)
}

func (h *handlers) GetReminders(gctx *gin.Context) {
	eventId := gctx.Param("id")

	gctx.JSON(http.StatusOK, h.scheduler.PendingReminders(eventId))
}

// reminderOutcome is the wire form of a ScheduleResult.
type reminderOutcome struct {
	SpecId    string             `json:"spec_id"`
	Scheduled *ScheduledReminder `json:"scheduled,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func (h *handlers) PostScheduleReminders(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	eventId := gctx.Param("id")

	event, err := h.store.GetEventById(ctx, eventId)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			gctx.AbortWithStatusJSON(http.StatusNotFound, NewError("event not found", err))
			return
		}

		log.Ctx(ctx).Error().Err(err).Msg("getting event failed")
		gctx.AbortWithStatusJSON(http.StatusBadGateway, NewError("getting event failed", err))

		return
	}

	results := h.scheduler.ScheduleAll(ctx, event)

	outcomes := make([]reminderOutcome, 0, len(results))
	for _, result := range results {
		outcome := reminderOutcome{SpecId: result.Spec.Id, Scheduled: result.Scheduled}
		if result.Err != nil {
			outcome.Error = result.Err.Error()
		}

		outcomes = append(outcomes, outcome)
	}

	gctx.JSON(http.StatusOK, outcomes)
}

func sortedIds(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
