package api

import (
	"net/http"
	"time"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	mid "FxPipe/internal/middleware"
	"FxPipe/internal/service/metrics"
	"FxPipe/internal/service/ratelimit"
	"FxPipe/internal/usecase"
	xhttp "FxPipe/pkg/http"
	xlogger "FxPipe/pkg/logger"

	"github.com/labstack/echo/v4"
)

// JobsEchoHandler exposes the job trigger surface and read-only views over
// job runs and quality events.
type JobsEchoHandler struct {
	logger  *xlogger.Logger
	runner  *usecase.Runner
	jobs    *usecase.JobSet
	runs    drepo.JobStore
	quality drepo.QualityLog
	limiter *ratelimit.Limiter
	secret  string
}

func NewJobsEchoHandler(
	logger *xlogger.Logger,
	runner *usecase.Runner,
	jobs *usecase.JobSet,
	runs drepo.JobStore,
	quality drepo.QualityLog,
	limiter *ratelimit.Limiter,
	secret string,
) *JobsEchoHandler {
	metrics.Register()
	return &JobsEchoHandler{
		logger:  logger,
		runner:  runner,
		jobs:    jobs,
		runs:    runs,
		quality: quality,
		limiter: limiter,
		secret:  secret,
	}
}

func (h *JobsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.Any("/jobs/:name", h.Trigger, mid.RequirePOST(), mid.CronSecret(h.secret))

	g := e.Group("/api")
	g.GET("/job-runs", h.JobRuns)
	g.GET("/quality-events", h.QualityEvents)

	e.GET("/healthz", h.Health)
}

// Trigger runs one job synchronously and reports its counters.
func (h *JobsEchoHandler) Trigger(c echo.Context) error {
	name := c.Param("name")
	job, ok := h.jobs.Get(name)
	if !ok {
		metrics.TriggerErrors.WithLabelValues("unknown", "not_found").Inc()
		return xhttp.JobErrorResponse(c, http.StatusNotFound, "Unknown job "+name)
	}
	if h.limiter != nil && !h.limiter.Allow(name) {
		metrics.TriggerErrors.WithLabelValues(name, "throttled").Inc()
		h.logger.Warn("job trigger throttled", xlogger.String("job", name), xlogger.String("remote", c.RealIP()))
		return xhttp.JobErrorResponse(c, http.StatusTooManyRequests, "Too many requests")
	}

	start := time.Now()
	res, err := h.runner.Run(c.Request().Context(), job)
	metrics.TriggerLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TriggerErrors.WithLabelValues(name, "failed").Inc()
		return xhttp.JobErrorResponse(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, JobResponseFrom(res))
}

// JobResponseFrom renders a job result as the trigger response body.
func JobResponseFrom(res models.JobResult) xhttp.JobResponse {
	if res.Skipped {
		return xhttp.JobResponse{OK: true, Skipped: true, Reason: res.Reason}
	}
	rows, credits := res.RowsProcessed, res.CreditsUsed
	return xhttp.JobResponse{
		OK:              true,
		RowsProcessed:   &rows,
		CreditsUsed:     &credits,
		RequestsMade:    res.RequestsMade,
		MissingDetected: res.MissingDetected,
	}
}

func (h *JobsEchoHandler) JobRuns(c echo.Context) error {
	req := &models.JobRunsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	runs, err := h.runs.RecentRuns(c.Request().Context(), req.Name, req.Limit)
	if err != nil {
		h.logger.Error("job runs query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not load job runs").WithError(err))
	}
	return xhttp.ListResponse(c, runs, int64(len(runs)))
}

func (h *JobsEchoHandler) QualityEvents(c echo.Context) error {
	req := &models.QualityEventsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	events, err := h.quality.Recent(c.Request().Context(), req.Symbol, models.Timeframe(req.TF), req.Limit)
	if err != nil {
		h.logger.Error("quality events query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not load quality events").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.ListResponse(c, events, int64(len(events)))
}

func (h *JobsEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"ok":   true,
		"jobs": h.jobs.Names(),
	})
}

var _ xhttp.Handler = (*JobsEchoHandler)(nil)
