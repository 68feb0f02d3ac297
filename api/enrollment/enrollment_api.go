package enrollment

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lendhub.GO/api"
	"lendhub.GO/core/auth"
	enrollmentEntity "lendhub.GO/model/entity/enrollment"
	enrollmentSvc "lendhub.GO/service/enrollment"
)

func init() {
	api.RegisterModule(RegisterEnrollmentRoutes)
}

// RegisterEnrollmentRoutes wires project admission control under
// /api/enrollment.
func RegisterEnrollmentRoutes(apiGroup *echo.Group, db *gorm.DB) {
	admission := enrollmentSvc.NewAdmissionController(db)

	g := apiGroup.Group("/enrollment")

	// POST /api/enrollment/windows — start enrollment with a cap
	g.POST("/windows", func(ctx echo.Context) error {
		actor := auth.ActorFromRequest(ctx)
		if actor.ID == "" {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"error": "user not authenticated"})
		}
		var body struct {
			ProjectID string `json:"project_id"`
			Cap       int    `json:"cap"`
		}
		if err := ctx.Bind(&body); err != nil {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		if body.ProjectID == "" {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "project_id is required"})
		}
		w, err := admission.OpenWindow(actor, body.ProjectID, body.Cap)
		if err != nil {
			return writeErr(ctx, err)
		}
		return ctx.JSON(http.StatusCreated, echo.Map{"window": w})
	})

	// GET /api/enrollment/windows/:project_id
	g.GET("/windows/:project_id", func(ctx echo.Context) error {
		w, err := admission.Window(ctx.Param("project_id"))
		if err != nil {
			return writeErr(ctx, err)
		}
		return ctx.JSON(http.StatusOK, echo.Map{"window": w})
	})

	// PATCH /api/enrollment/windows/:project_id — close or reopen
	g.PATCH("/windows/:project_id", func(ctx echo.Context) error {
		actor := auth.ActorFromRequest(ctx)
		if actor.ID == "" {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"error": "user not authenticated"})
		}
		var body struct {
			Action string `json:"action"`
		}
		if err := ctx.Bind(&body); err != nil {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		projectID := ctx.Param("project_id")
		var w *enrollmentEntity.EnrollmentWindow
		var err error
		switch body.Action {
		case "close":
			w, err = admission.CloseWindow(actor, projectID)
		case "reopen":
			w, err = admission.ReopenWindow(actor, projectID)
		default:
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "action must be 'close' or 'reopen'"})
		}
		if err != nil {
			return writeErr(ctx, err)
		}
		return ctx.JSON(http.StatusOK, echo.Map{"window": w})
	})

	// POST /api/enrollment/applications — apply to an open window
	g.POST("/applications", func(ctx echo.Context) error {
		actor := auth.ActorFromRequest(ctx)
		if actor.ID == "" {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"error": "user not authenticated"})
		}
		var body struct {
			ProjectID string         `json:"project_id"`
			Metadata  datatypes.JSON `json:"metadata"`
		}
		if err := ctx.Bind(&body); err != nil {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		if body.ProjectID == "" {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "project_id is required"})
		}
		app, err := admission.Submit(actor, body.ProjectID, body.Metadata)
		if err != nil {
			return writeErr(ctx, err)
		}
		return ctx.JSON(http.StatusCreated, echo.Map{"application": app})
	})

	// GET /api/enrollment/windows/:project_id/applications?status=
	g.GET("/windows/:project_id/applications", func(ctx echo.Context) error {
		actor := auth.ActorFromRequest(ctx)
		if actor.ID == "" {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"error": "user not authenticated"})
		}
		status := enrollmentEntity.ApplicationStatus(ctx.QueryParam("status"))
		apps, err := admission.Applications(actor, ctx.Param("project_id"), status)
		if err != nil {
			return writeErr(ctx, err)
		}
		return ctx.JSON(http.StatusOK, echo.Map{"applications": apps})
	})

	// PATCH /api/enrollment/applications/:id — approve or reject
	g.PATCH("/applications/:id", func(ctx echo.Context) error {
		actor := auth.ActorFromRequest(ctx)
		if actor.ID == "" {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"error": "user not authenticated"})
		}
		var body struct {
			Action string `json:"action"`
		}
		if err := ctx.Bind(&body); err != nil {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		id := ctx.Param("id")
		var app *enrollmentEntity.ProjectApplication
		var err error
		switch body.Action {
		case "approve":
			app, err = admission.Approve(actor, id)
		case "reject":
			app, err = admission.Reject(actor, id)
		default:
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "action must be 'approve' or 'reject'"})
		}
		if err != nil {
			return writeErr(ctx, err)
		}
		return ctx.JSON(http.StatusOK, echo.Map{"application": app})
	})
}

func writeErr(ctx echo.Context, err error) error {
	var capErr *enrollmentSvc.CapReachedError
	if errors.As(err, &capErr) {
		return ctx.JSON(http.StatusConflict, echo.Map{
			"error":          capErr.Error(),
			"cap":            capErr.Cap,
			"approved_count": capErr.ApprovedCount,
		})
	}
	var stateErr *enrollmentSvc.WindowStateError
	if errors.As(err, &stateErr) {
		return ctx.JSON(http.StatusConflict, echo.Map{
			"error":  stateErr.Error(),
			"status": stateErr.Status,
		})
	}
	switch {
	case errors.Is(err, enrollmentSvc.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return ctx.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, enrollmentSvc.ErrForbidden):
		return ctx.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, enrollmentSvc.ErrConcurrencyConflict):
		return ctx.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "retry": true})
	}
	return ctx.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
}
