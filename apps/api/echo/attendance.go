package echoapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/student"
)

type attendanceApi struct {
	deps ServerDeps
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := attendanceApi{deps: deps}

	g.POST("/scan", api.scan, jwt, adminMiddleware())

	ag := g.Group("/attendance", jwt, adminMiddleware())
	ag.POST("", api.mark)
	ag.DELETE("", api.unmark)

	g.POST("/payments", api.recordPayment, jwt, adminMiddleware())

	cg := g.Group("/classes", jwt, adminMiddleware())
	cg.GET("", api.queryClasses)
	cg.PUT("/:id", api.updateClassFee)
	cg.GET("/:id/sheet", api.monthlySheet)
	cg.GET("/:id/sheet.xlsx", api.monthlySheetXLSX)
}

// Handlers

// scan resolves a QR identity token and reconciles the student's
// attendance and payment state for today.
func (api *attendanceApi) scan(ctx echo.Context) error {
	var data ScanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScanRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	studentID, err := api.deps.TokenSvc.Verify(ctx.Request().Context(), data.Token)
	if err != nil {
		return err
	}
	res, err := api.deps.AttendanceSvc.Reconcile(ctx.Request().Context(), studentID, time.Now().UTC())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ScanResponse{
		StudentName:   res.Student.Name,
		ClassName:     res.Class.Name,
		AlreadyMarked: res.AlreadyMarked,
		Paid:          res.Paid,
		AmountDue:     res.AmountDue,
	})
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	var data attendance.MarkRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}
	if err := api.deps.AttendanceSvc.Mark(ctx.Request().Context(), data.StudentID, data.ParsedDate()); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) unmark(ctx echo.Context) error {
	var data attendance.MarkRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}
	if err := api.deps.AttendanceSvc.Unmark(ctx.Request().Context(), data.StudentID, data.ParsedDate()); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) recordPayment(ctx echo.Context) error {
	var data attendance.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	p, err := api.deps.AttendanceSvc.RecordPayment(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *attendanceApi) queryClasses(ctx echo.Context) error {
	classes, err := api.deps.StudentSvc.QueryAllClasses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []student.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *attendanceApi) updateClassFee(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	var data student.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	cls, err := api.deps.StudentSvc.UpdateClassFee(ctx.Request().Context(), id, data.MonthlyFee)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *attendanceApi) monthlySheet(ctx echo.Context) error {
	sheet, err := api.bindSheet(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sheet)
}

func (api *attendanceApi) monthlySheetXLSX(ctx echo.Context) error {
	sheet, err := api.bindSheet(ctx)
	if err != nil {
		return err
	}
	buf, err := attendance.ExportXLSX(sheet)
	if err != nil {
		return errors.Wrap(err, "exporting sheet")
	}

	filename := fmt.Sprintf("attendance-%s.xlsx", sheet.Month)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename=`+filename)
	return ctx.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (api *attendanceApi) bindSheet(ctx echo.Context) (attendance.Sheet, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return attendance.Sheet{}, errHttpNotFound
	}

	var query SheetRequest
	if err := ctx.Bind(&query); err != nil {
		return attendance.Sheet{}, errors.Wrap(err, "binding to SheetRequest")
	}
	if err := query.Validate(api.deps.Validate); err != nil {
		return attendance.Sheet{}, err
	}
	return api.deps.AttendanceSvc.MonthlySheet(ctx.Request().Context(), id, query.Month)
}

type (
	ScanRequest struct {
		Token string `json:"token" validate:"required"`
	}

	ScanResponse struct {
		StudentName   string `json:"student_name"`
		ClassName     string `json:"class_name"`
		AlreadyMarked bool   `json:"already_marked"`
		Paid          bool   `json:"paid"`
		AmountDue     int    `json:"amount_due"`
	}

	SheetRequest struct {
		Month string `query:"month" json:"month" validate:"required,month"`
	}
)

func (sr *ScanRequest) Validate(validate *validator.Validate) error {
	sr.Token = core.CleanString(sr.Token)
	return validate.Struct(sr)
}

func (sr *SheetRequest) Validate(validate *validator.Validate) error {
	sr.Month = core.CleanString(sr.Month)
	return validate.Struct(sr)
}
