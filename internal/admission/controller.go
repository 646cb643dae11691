package admission

import (
	"errors"
	"io"
	"net/http"

	"attendly/internal/shared/middleware"
	"attendly/internal/shared/utils/response"
	"attendly/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// retryAfterSeconds is sent with boundary timeouts.
const retryAfterSeconds = "1"

type Controller struct {
	service   Service
	validator *validator.Validate
	log       *logger.Logger
}

func NewController(service Service, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Controller{
		service:   service,
		validator: validator.New(),
		log:       log,
	}
}

func (ctrl *Controller) Register(c *gin.Context) {
	eventID, ok := parseIDParam(c, "id", "Invalid event ID")
	if !ok {
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}
	if err := ctrl.validator.Struct(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Validation failed", nil, err.Error())
		return
	}

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	registrant := Registrant{UserID: userID, Email: req.Email, Name: req.Name}
	if registrant.Email == "" {
		registrant.Email = c.GetString("user_email")
	}
	if registrant.Name == "" {
		registrant.Name = c.GetString("user_name")
	}

	decision, err := ctrl.service.RegisterAttendee(c.Request.Context(), eventID, registrant)
	if err != nil {
		ctrl.respondServiceError(c, err)
		return
	}

	switch decision.Status {
	case DecisionConfirmed:
		response.RespondJSON(c, "success", http.StatusCreated, "Registration confirmed", decision, nil)
	case DecisionWaitlisted:
		response.RespondJSON(c, "success", http.StatusAccepted, "Added to waitlist", decision, nil)
	default:
		response.RespondJSON(c, "error", http.StatusConflict, "Registration rejected", decision, map[string]interface{}{
			"reason": decision.Reason,
		})
	}
}

func (ctrl *Controller) Remove(c *gin.Context) {
	attendanceID, ok := parseIDParam(c, "id", "Invalid registration ID")
	if !ok {
		return
	}
	if !ctrl.authorizeOwner(c, attendanceID) {
		return
	}

	result, err := ctrl.service.RemoveAttendee(c.Request.Context(), attendanceID)
	if err != nil {
		ctrl.respondServiceError(c, err)
		return
	}

	message := "Registration removed"
	if result.AlreadyRemoved {
		message = "Registration already removed"
	}
	response.RespondJSON(c, "success", http.StatusOK, message, result, nil)
}

func (ctrl *Controller) GetRegistration(c *gin.Context) {
	attendanceID, ok := parseIDParam(c, "id", "Invalid registration ID")
	if !ok {
		return
	}

	rec, err := ctrl.service.GetAttendance(c.Request.Context(), attendanceID)
	if err != nil {
		ctrl.respondServiceError(c, err)
		return
	}
	if !ctrl.ownsOrAdmin(c, rec.UserID) {
		response.RespondJSON(c, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Registration retrieved successfully", toAttendanceResponse(rec), nil)
}

func (ctrl *Controller) GetCapacity(c *gin.Context) {
	eventID, ok := parseIDParam(c, "id", "Invalid event ID")
	if !ok {
		return
	}

	summary, err := ctrl.service.GetCapacitySummary(c.Request.Context(), eventID)
	if err != nil {
		ctrl.respondServiceError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Capacity retrieved successfully", summary, nil)
}

// Admin handlers

func (ctrl *Controller) PromoteNext(c *gin.Context) {
	eventID, ok := parseIDParam(c, "id", "Invalid event ID")
	if !ok {
		return
	}

	result, err := ctrl.service.PromoteNext(c.Request.Context(), eventID)
	if err != nil {
		ctrl.respondServiceError(c, err)
		return
	}

	if err := result.Err(); err != nil {
		response.RespondJSON(c, "error", http.StatusConflict, err.Error(), result, map[string]interface{}{
			"code": result.Outcome,
		})
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Attendee promoted", result, nil)
}

func (ctrl *Controller) GetWaitlist(c *gin.Context) {
	eventID, ok := parseIDParam(c, "id", "Invalid event ID")
	if !ok {
		return
	}

	entries, err := ctrl.service.GetWaitlistSnapshot(c.Request.Context(), eventID)
	if err != nil {
		ctrl.respondServiceError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Waitlist retrieved successfully", WaitlistSnapshotResponse{
		EventID: eventID,
		Size:    len(entries),
		Entries: entries,
	}, nil)
}

func (ctrl *Controller) VerifyWaitlist(c *gin.Context) {
	eventID, ok := parseIDParam(c, "id", "Invalid event ID")
	if !ok {
		return
	}

	report, err := ctrl.service.VerifyWaitlist(c.Request.Context(), eventID)
	if err != nil {
		ctrl.respondServiceError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Waitlist verified", report, nil)
}

func (ctrl *Controller) RepairWaitlist(c *gin.Context) {
	eventID, ok := parseIDParam(c, "id", "Invalid event ID")
	if !ok {
		return
	}

	result, err := ctrl.service.RepairWaitlist(c.Request.Context(), eventID)
	if err != nil {
		ctrl.respondServiceError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Waitlist repaired", result, nil)
}

// authorizeOwner lets admins through and otherwise requires the caller to own
// the registration. It writes the response when access is denied.
func (ctrl *Controller) authorizeOwner(c *gin.Context, attendanceID uuid.UUID) bool {
	if middleware.IsAdmin(c) {
		return true
	}
	rec, err := ctrl.service.GetAttendance(c.Request.Context(), attendanceID)
	if err != nil {
		ctrl.respondServiceError(c, err)
		return false
	}
	if !ctrl.ownsOrAdmin(c, rec.UserID) {
		response.RespondJSON(c, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
		return false
	}
	return true
}

func (ctrl *Controller) ownsOrAdmin(c *gin.Context, owner uuid.UUID) bool {
	if middleware.IsAdmin(c) {
		return true
	}
	userID, ok := middleware.CurrentUserID(c)
	return ok && userID == owner
}

func (ctrl *Controller) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEventNotFound):
		response.RespondJSON(c, "error", http.StatusNotFound, "Event not found", nil, nil)
	case errors.Is(err, ErrAttendanceNotFound):
		response.RespondJSON(c, "error", http.StatusNotFound, "Registration not found", nil, nil)
	case errors.Is(err, ErrAlreadyRegistered):
		response.RespondJSON(c, "error", http.StatusConflict, err.Error(), nil, map[string]interface{}{
			"code": "already_registered",
		})
	case errors.Is(err, ErrInvalidRegistrant):
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
	case errors.Is(err, ErrBoundaryTimeout):
		c.Header("Retry-After", retryAfterSeconds)
		response.RespondJSON(c, "error", http.StatusServiceUnavailable, "Event is busy, retry shortly", nil, map[string]interface{}{
			"code": "boundary_timeout",
		})
	case errors.Is(err, ErrInconsistentState):
		ctrl.log.LogHTTPError(c, err, http.StatusInternalServerError)
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Waitlist requires operator repair", nil, map[string]interface{}{
			"code": "inconsistent_state",
		})
	default:
		ctrl.log.LogHTTPError(c, err, http.StatusInternalServerError)
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Internal server error", nil, nil)
	}
}

func parseIDParam(c *gin.Context, name, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, message, nil, err.Error())
		return uuid.Nil, false
	}
	return id, true
}
