package lending

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"lendhub.GO/api"
	"lendhub.GO/config"
	"lendhub.GO/core/auth"
	"lendhub.GO/core/identity"
	lendingEntity "lendhub.GO/model/entity/lending"
	lendingRepo "lendhub.GO/model/repository/lending"
	lendingSvc "lendhub.GO/service/lending"
)

func init() {
	api.RegisterModule(RegisterLendingRoutes)
}

// RegisterLendingRoutes wires the lending engine under /api/lending.
func RegisterLendingRoutes(apiGroup *echo.Group, db *gorm.DB) {
	ledger := lendingSvc.NewLedger(db, config.LendingPolicy())
	pools := lendingRepo.NewPoolRepository(db)
	avail := newAvailCache()

	g := apiGroup.Group("/lending")

	// GET /api/lending/pools — availability snapshot (public, cached)
	g.GET("/pools", func(ctx echo.Context) error {
		if cached, ok := avail.Pools(); ok {
			return ctx.JSON(http.StatusOK, echo.Map{"pools": cached, "cached": true})
		}
		list, err := pools.List()
		if err != nil {
			return writeErr(ctx, err)
		}
		avail.StorePools(list)
		return ctx.JSON(http.StatusOK, echo.Map{"pools": list})
	})

	// GET /api/lending/pools/:resource_id
	g.GET("/pools/:resource_id", func(ctx echo.Context) error {
		resourceID := ctx.Param("resource_id")
		if cached, ok := avail.Pool(resourceID); ok {
			return ctx.JSON(http.StatusOK, echo.Map{"pool": cached, "cached": true})
		}
		pool, err := pools.FindByResourceID(resourceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ctx.JSON(http.StatusNotFound, echo.Map{"error": "pool not found"})
			}
			return writeErr(ctx, err)
		}
		avail.StorePool(pool)
		return ctx.JSON(http.StatusOK, echo.Map{"pool": pool})
	})

	// POST /api/lending/pools — register a lendable resource (admin)
	g.POST("/pools", func(ctx echo.Context) error {
		actor := auth.ActorFromRequest(ctx)
		if actor.Role != identity.RoleAdmin {
			return ctx.JSON(http.StatusForbidden, echo.Map{"error": "admin only"})
		}
		var body struct {
			ResourceID    string `json:"resource_id"`
			Kind          string `json:"kind"`
			Name          string `json:"name"`
			Location      string `json:"location"`
			TotalQuantity int    `json:"total_quantity"`
		}
		if err := ctx.Bind(&body); err != nil {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		kind := lendingEntity.ResourceKind(body.Kind)
		if kind != lendingEntity.KindLibraryItem && kind != lendingEntity.KindLabComponent {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be LIBRARY_ITEM or LAB_COMPONENT"})
		}
		if body.ResourceID == "" || body.TotalQuantity < 0 {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "resource_id required, total_quantity must be >= 0"})
		}
		pool := &lendingEntity.InventoryPool{
			ResourceID:        body.ResourceID,
			Kind:              kind,
			Name:              body.Name,
			Location:          body.Location,
			TotalQuantity:     body.TotalQuantity,
			AvailableQuantity: body.TotalQuantity,
		}
		if err := pools.Create(pool); err != nil {
			return writeErr(ctx, err)
		}
		avail.Invalidate(pool.ResourceID)
		return ctx.JSON(http.StatusCreated, echo.Map{"pool": pool})
	})

	// POST /api/lending/pools/:resource_id/restock — adjust total (admin)
	g.POST("/pools/:resource_id/restock", func(ctx echo.Context) error {
		actor := auth.ActorFromRequest(ctx)
		if actor.Role != identity.RoleAdmin {
			return ctx.JSON(http.StatusForbidden, echo.Map{"error": "admin only"})
		}
		var body struct {
			Delta int `json:"delta"`
		}
		if err := ctx.Bind(&body); err != nil {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		resourceID := ctx.Param("resource_id")
		ok, err := pools.AdjustTotal(resourceID, body.Delta)
		if err != nil {
			return writeErr(ctx, err)
		}
		if !ok {
			return ctx.JSON(http.StatusConflict, echo.Map{"error": "restock rejected: pool missing or total would go negative"})
		}
		avail.Invalidate(resourceID)
		pool, err := pools.FindByResourceID(resourceID)
		if err != nil {
			return writeErr(ctx, err)
		}
		return ctx.JSON(http.StatusOK, echo.Map{"pool": pool})
	})

	// POST /api/lending/requests — reserve N units
	g.POST("/requests", func(ctx echo.Context) error {
		actor := auth.ActorFromRequest(ctx)
		if actor.ID == "" {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"error": "user not authenticated"})
		}
		var body struct {
			ResourceID       string  `json:"resource_id"`
			Quantity         int     `json:"quantity"`
			RequiredByDate   string  `json:"required_by_date"`
			Purpose          string  `json:"purpose"`
			Notes            string  `json:"notes"`
			JustificationRef *string `json:"justification_ref"`
		}
		if err := ctx.Bind(&body); err != nil {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		requiredBy, err := time.Parse(time.RFC3339, body.RequiredByDate)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "required_by_date must be RFC3339"})
		}
		req, err := ledger.Reserve(actor, lendingSvc.ReserveInput{
			ResourceID:       body.ResourceID,
			Quantity:         body.Quantity,
			RequiredByDate:   requiredBy,
			Purpose:          body.Purpose,
			Notes:            body.Notes,
			JustificationRef: body.JustificationRef,
		})
		if err != nil {
			return writeErr(ctx, err)
		}
		avail.Invalidate(req.ResourceID)
		return ctx.JSON(http.StatusCreated, echo.Map{"request": req})
	})

	// GET /api/lending/requests?status= — own requests, or all for staff
	g.GET("/requests", func(ctx echo.Context) error {
		actor := auth.ActorFromRequest(ctx)
		if actor.ID == "" {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"error": "user not authenticated"})
		}
		status := lendingEntity.Status(ctx.QueryParam("status"))
		reqs, err := ledger.List(actor, status)
		if err != nil {
			return writeErr(ctx, err)
		}
		return ctx.JSON(http.StatusOK, echo.Map{"requests": reqs})
	})

	// GET /api/lending/requests/:id — detail with derived overdue/expiry info
	g.GET("/requests/:id", func(ctx echo.Context) error {
		actor := auth.ActorFromRequest(ctx)
		if actor.ID == "" {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"error": "user not authenticated"})
		}
		req, err := ledger.Get(actor, ctx.Param("id"))
		if err != nil {
			return writeErr(ctx, err)
		}
		resp := echo.Map{"request": req, "overdue": ledger.Overdue(req)}
		if remaining, expired := ledger.TimeUntilExpiry(req); req.Status == lendingEntity.StatusApproved {
			resp["expiry"] = echo.Map{"expired": expired, "seconds_left": int64(remaining.Seconds())}
		}
		return ctx.JSON(http.StatusOK, resp)
	})

	// PATCH /api/lending/requests/:id — drive one state transition
	g.PATCH("/requests/:id", func(ctx echo.Context) error {
		actor := auth.ActorFromRequest(ctx)
		if actor.ID == "" {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"error": "user not authenticated"})
		}
		var body struct {
			Action string `json:"action"`
			Notes  string `json:"notes"`
		}
		if err := ctx.Bind(&body); err != nil {
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		id := ctx.Param("id")
		var req *lendingEntity.LoanRequest
		var err error
		switch body.Action {
		case "approve":
			req, err = ledger.Approve(actor, id)
		case "reject":
			req, err = ledger.Reject(actor, id, body.Notes)
		case "collect":
			req, err = ledger.Collect(actor, id)
		case "user_return":
			req, err = ledger.MarkUserReturned(actor, id)
		case "return":
			req, err = ledger.ConfirmReturn(actor, id, body.Notes)
		case "dismiss":
			req, err = ledger.Dismiss(actor, id)
		case "pin_overdue":
			req, err = ledger.PinOverdue(actor, id)
		case "settle_fine":
			req, err = ledger.SettleFine(actor, id)
		default:
			return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "unknown action " + body.Action})
		}
		if err != nil {
			return writeErr(ctx, err)
		}
		avail.Invalidate(req.ResourceID)
		return ctx.JSON(http.StatusOK, echo.Map{"request": req})
	})
}

// writeErr maps the service error taxonomy onto HTTP responses. Every
// rejection carries enough context for the caller to retry or back off.
func writeErr(ctx echo.Context, err error) error {
	var stockErr *lendingSvc.InsufficientStockError
	if errors.As(err, &stockErr) {
		return ctx.JSON(http.StatusConflict, echo.Map{
			"error":     stockErr.Error(),
			"resource":  stockErr.ResourceID,
			"requested": stockErr.Requested,
			"available": stockErr.Available,
		})
	}
	var transErr *lendingSvc.InvalidTransitionError
	if errors.As(err, &transErr) {
		return ctx.JSON(http.StatusConflict, echo.Map{
			"error": transErr.Error(),
			"from":  transErr.From,
			"to":    transErr.To,
		})
	}
	var valErr *lendingSvc.ValidationError
	if errors.As(err, &valErr) {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"error": valErr.Error()})
	}
	switch {
	case errors.Is(err, lendingSvc.ErrNotFound):
		return ctx.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, lendingSvc.ErrForbidden):
		return ctx.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	}
	return ctx.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
}
