package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/shifts_backend/config"
	"github.com/mmdatafocus/shifts_backend/models"
	"github.com/mmdatafocus/shifts_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// respondError maps the model error taxonomy onto HTTP status codes.
// Unclassified errors are logged in full and answered with an opaque message.
func respondError(c *gin.Context, funcName string, err error) {
	var status int
	switch {
	case errors.Is(err, models.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrForbidden), errors.Is(err, config.ErrCrossTenantWrite):
		status = http.StatusForbidden
	case errors.Is(err, utils.ErrorRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrCompanyIdRequired):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrMissingPrice):
		status = http.StatusUnprocessableEntity
	default:
		ctx := c.Request.Context()
		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		fields := logrus.Fields{
			"field":          funcName,
			"path":           c.FullPath(),
			"correlation_id": cid,
		}
		if sc := trace.SpanFromContext(ctx).SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
		config.GetLogger().WithFields(fields).Error(err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "correlation_id": cid})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func actorOrAbort(c *gin.Context) (models.Actor, bool) {
	actor, err := models.ActorFromContext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return models.Actor{}, false
	}
	return actor, true
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func createShiftReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		var input models.NewShiftReport
		if !bindJSON(c, &input) {
			return
		}
		report, err := models.CreateShiftReport(c.Request.Context(), &input, actor)
		if err != nil {
			respondError(c, "createShiftReportHandler", err)
			return
		}
		c.JSON(http.StatusCreated, report)
	}
}

func getShiftReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		report, err := models.GetShiftReport(c.Request.Context(), actor.CompanyId, id)
		if err != nil {
			respondError(c, "getShiftReportHandler", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func updateShiftReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.ShiftReportChanges
		if !bindJSON(c, &input) {
			return
		}
		report, err := models.UpdateShiftReport(c.Request.Context(), id, &input, actor)
		if err != nil {
			respondError(c, "updateShiftReportHandler", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func deleteShiftReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		hard, _ := strconv.ParseBool(c.DefaultQuery("hard", "false"))
		report, err := models.DeleteShiftReport(c.Request.Context(), id, hard, actor)
		if err != nil {
			respondError(c, "deleteShiftReportHandler", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func recalculateShiftReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		report, err := models.RepriceShiftReport(c.Request.Context(), id, actor)
		if err != nil {
			respondError(c, "recalculateShiftReportHandler", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func updateShiftReportDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.ShiftReportDetailChanges
		if !bindJSON(c, &input) {
			return
		}
		detail, err := models.UpdateShiftReportDetail(c.Request.Context(), id, &input, actor)
		if err != nil {
			respondError(c, "updateShiftReportDetailHandler", err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

func createLeaveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		var input models.NewLeave
		if !bindJSON(c, &input) {
			return
		}
		leave, err := models.CreateLeave(c.Request.Context(), &input, actor)
		if err != nil {
			respondError(c, "createLeaveHandler", err)
			return
		}
		c.JSON(http.StatusCreated, leave)
	}
}

func updateLeaveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewLeave
		if !bindJSON(c, &input) {
			return
		}
		leave, err := models.UpdateLeave(c.Request.Context(), id, &input, actor)
		if err != nil {
			respondError(c, "updateLeaveHandler", err)
			return
		}
		c.JSON(http.StatusOK, leave)
	}
}

func deleteLeaveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		leave, err := models.DeleteLeave(c.Request.Context(), id, actor)
		if err != nil {
			respondError(c, "deleteLeaveHandler", err)
			return
		}
		c.JSON(http.StatusOK, leave)
	}
}

func createProjectWorkHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		var input models.NewProjectWork
		if !bindJSON(c, &input) {
			return
		}
		projectWork, err := models.CreateProjectWork(c.Request.Context(), &input, actor)
		if err != nil {
			respondError(c, "createProjectWorkHandler", err)
			return
		}
		c.JSON(http.StatusCreated, projectWork)
	}
}

func updateProjectWorkHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.ProjectWorkChanges
		if !bindJSON(c, &input) {
			return
		}
		projectWork, err := models.UpdateProjectWork(c.Request.Context(), id, &input, actor)
		if err != nil {
			respondError(c, "updateProjectWorkHandler", err)
			return
		}
		c.JSON(http.StatusOK, projectWork)
	}
}

func setPriceTierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		var input models.NewPriceTier
		if !bindJSON(c, &input) {
			return
		}
		tier, err := models.SetPriceTier(c.Request.Context(), &input, actor)
		if err != nil {
			respondError(c, "setPriceTierHandler", err)
			return
		}
		c.JSON(http.StatusCreated, tier)
	}
}

func savePushSubscriptionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		var input models.NewPushSubscription
		if !bindJSON(c, &input) {
			return
		}
		sub, err := models.SavePushSubscription(c.Request.Context(), &input, actor)
		if err != nil {
			respondError(c, "savePushSubscriptionHandler", err)
			return
		}
		c.JSON(http.StatusOK, sub)
	}
}

func payrollSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		if !actor.Elevated {
			respondError(c, "payrollSummaryHandler", models.ErrForbidden)
			return
		}
		from, errFrom := strconv.ParseInt(c.Query("from"), 10, 64)
		to, errTo := strconv.ParseInt(c.Query("to"), 10, 64)
		if errFrom != nil || errTo != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required (yyyymmdd)"})
			return
		}
		lines, err := models.PayrollSummary(c.Request.Context(), actor.CompanyId, from, to)
		if err != nil {
			respondError(c, "payrollSummaryHandler", err)
			return
		}
		c.JSON(http.StatusOK, lines)
	}
}

type notificationReplayRequest struct {
	RecordId int `json:"record_id" binding:"required"`
}

// notificationReplayHandler puts a FAILED notification back in the queue. Admin only.
func notificationReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		if actor.Role != models.UserRoleAdmin {
			respondError(c, "notificationReplayHandler", models.ErrForbidden)
			return
		}
		var req notificationReplayRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := utils.SetIsAdminInContext(c.Request.Context(), true)
		record, err := models.ReplayNotification(ctx, req.RecordId)
		if err != nil {
			respondError(c, "notificationReplayHandler", err)
			return
		}
		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		c.JSON(http.StatusOK, gin.H{
			"record_id":      record.ID,
			"company_id":     record.CompanyId,
			"status":         record.Status,
			"correlation_id": cid,
		})
	}
}

// payrollExportHandler streams the payroll summary as an XLSX attachment.
func payrollExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		if !actor.Elevated {
			respondError(c, "payrollExportHandler", models.ErrForbidden)
			return
		}
		from, errFrom := strconv.ParseInt(c.Query("from"), 10, 64)
		to, errTo := strconv.ParseInt(c.Query("to"), 10, 64)
		if errFrom != nil || errTo != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required (yyyymmdd)"})
			return
		}
		lines, err := models.PayrollSummary(c.Request.Context(), actor.CompanyId, from, to)
		if err != nil {
			respondError(c, "payrollExportHandler", err)
			return
		}
		data, err := models.PayrollXlsx(lines, from, to)
		if err != nil {
			respondError(c, "payrollExportHandler", err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=payroll_%d_%d.xlsx", from, to))
		c.Data(http.StatusOK, utils.XlsxContentType, data)
	}
}

func listLeavesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		workerId, _ := strconv.Atoi(c.Query("worker_id"))
		// workers only see their own leaves
		if !actor.Elevated {
			workerId = actor.UserId
		}
		leaves, err := models.ListLeaves(c.Request.Context(), actor.CompanyId, workerId)
		if err != nil {
			respondError(c, "listLeavesHandler", err)
			return
		}
		c.JSON(http.StatusOK, leaves)
	}
}
