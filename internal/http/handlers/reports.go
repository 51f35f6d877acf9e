package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/realtravo/realtravo-sub000/internal/http/middleware"
	"github.com/realtravo/realtravo-sub000/internal/modules/reports"
	"github.com/realtravo/realtravo-sub000/internal/shared/apperr"
)

type ReportHandlers struct {
	reports *reports.Service
}

func NewReportHandlers(svc *reports.Service) *ReportHandlers {
	return &ReportHandlers{reports: svc}
}

// GET /api/admin/reports/settlements?from=2026-01-01&to=2026-02-01
// Streams an xlsx workbook. Defaults to the last 30 days.
func (h *ReportHandlers) Settlements(c *gin.Context) {
	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			middleware.Fail(c, apperr.InvalidErr("from must be YYYY-MM-DD.", nil))
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			middleware.Fail(c, apperr.InvalidErr("to must be YYYY-MM-DD.", nil))
			return
		}
		to = t
	}
	if !from.Before(to) {
		middleware.Fail(c, apperr.InvalidErr("from must be before to.", nil))
		return
	}

	f, filename, err := h.reports.SettlementReport(c.Request.Context(), from, to)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		// Headers already sent; log via gin's error list.
		_ = c.Error(err)
	}
}
