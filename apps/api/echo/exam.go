package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/exam"
)

type examApi struct {
	deps ServerDeps
}

func registerExamAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := examApi{deps: deps}

	eg := g.Group("/exam/slots", jwt)
	eg.GET("", api.querySlots)
	eg.GET("/:id", api.layout)

	// booking is the student's own action
	bg := eg.Group("/:id/bookings", studentMiddleware())
	bg.POST("", api.book)
	bg.DELETE("", api.cancel)
}

// Handlers

func (api *examApi) querySlots(ctx echo.Context) error {
	slots, err := api.deps.ExamSvc.Slots(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying slots")
	}
	if slots == nil {
		slots = []exam.Slot{}
	}
	return ctx.JSON(http.StatusOK, slots)
}

// layout returns a consistent seating snapshot; safe to poll after a
// seat conflict.
func (api *examApi) layout(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	layout, err := api.deps.ExamSvc.Layout(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, layout)
}

func (api *examApi) book(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data exam.NewBooking
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBooking")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	booking, err := api.deps.ExamSvc.Book(ctx.Request().Context(), claims.Subject, id, data.Bench, data.Position)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, booking)
}

func (api *examApi) cancel(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.deps.ExamSvc.Cancel(ctx.Request().Context(), claims.Subject, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
