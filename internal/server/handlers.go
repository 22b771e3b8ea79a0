package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchdesk/internal/export"
	"github.com/mohammad-safakhou/researchdesk/internal/history"
	"go.uber.org/zap"
)

const maxReportsLimit = 100

type Handler struct {
	researcher Researcher
	registry   *core.Registry
	history    ReportStore
	telemetry  *telemetry.Telemetry
	logger     *zap.Logger
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/research", h.research)
	g.GET("/agents", h.agents)
	g.GET("/reports", h.listReports)
	g.GET("/reports/:id", h.getReport)
	g.GET("/reports/:id/markdown", h.reportMarkdown)
	g.GET("/metrics/agents", h.agentMetrics)
}

type researchRequest struct {
	Query  string   `json:"query"`
	Domain string   `json:"domain"`
	Agents []string `json:"agents"`
}

// research runs the agents and returns the consolidated report. Request level
// problems such as an empty query come back inside the report with 200.
func (h *Handler) research(c echo.Context) error {
	var req researchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	domain := core.ParseDomain(req.Domain)
	agents := req.Agents
	if len(agents) == 0 {
		agents = core.DefaultAgents(domain)
	}

	ctx := c.Request().Context()
	res := h.researcher.Execute(ctx, core.Request{Query: req.Query, Domain: domain, AgentIDs: agents})
	if h.history != nil && len(res.AgentResults) > 0 {
		if err := h.history.Save(ctx, res); err != nil {
			h.logger.Warn("save report failed", zap.String("run_id", res.RunID), zap.Error(err))
		}
	}
	return c.JSON(http.StatusOK, res)
}

type agentsResponse struct {
	Domain        core.Domain       `json:"domain"`
	Agents        []core.Descriptor `json:"agents"`
	Defaults      []string          `json:"defaults"`
	EstimatedCost float64           `json:"estimated_cost"`
	EstimatedTime float64           `json:"estimated_time"`
}

func (h *Handler) agents(c echo.Context) error {
	domain := core.ParseDomain(c.QueryParam("domain"))
	defaults := core.DefaultAgents(domain)
	cost, secs := core.Estimate(defaults)
	return c.JSON(http.StatusOK, agentsResponse{
		Domain:        domain,
		Agents:        h.registry.Descriptors(),
		Defaults:      defaults,
		EstimatedCost: cost,
		EstimatedTime: secs,
	})
}

func (h *Handler) requireHistory() error {
	if h.history == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "report history is not configured")
	}
	return nil
}

func (h *Handler) listReports(c echo.Context) error {
	if err := h.requireHistory(); err != nil {
		return err
	}
	limit := 20
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxReportsLimit)
	}
	items, err := h.history.Recent(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) loadReport(c echo.Context) (core.WorkflowResult, error) {
	if err := h.requireHistory(); err != nil {
		return core.WorkflowResult{}, err
	}
	res, err := h.history.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		return res, echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return res, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return res, nil
}

func (h *Handler) getReport(c echo.Context) error {
	res, err := h.loadReport(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) reportMarkdown(c echo.Context) error {
	res, err := h.loadReport(c)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+export.Filename(res)+`"`)
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(export.Markdown(res)))
}

func (h *Handler) agentMetrics(c echo.Context) error {
	if h.telemetry == nil {
		return c.JSON(http.StatusOK, telemetry.Snapshot{Agents: map[string]telemetry.AgentStats{}})
	}
	return c.JSON(http.StatusOK, h.telemetry.Snapshot())
}
