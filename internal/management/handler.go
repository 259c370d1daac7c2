package management

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"leadcolor/internal/coloring"
	"leadcolor/internal/logger"
	"leadcolor/pkg/errors"
	"leadcolor/pkg/logging"
	"leadcolor/pkg/models"
)

const changedByHeader = "X-User-ID"

type BaseHandler struct {
	Logger logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.WarnwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, errors.ToErrorResponse(err))
}

func (h *BaseHandler) badRequest(c *gin.Context, err error) {
	h.HandleError(c, errors.ErrValidation.WithMessage("invalid request body").WithCause(err))
}

// requireSubdomain rejects paths whose subdomain is not a single DNS label
// and rewrites the param to its normalized form.
func (h *BaseHandler) requireSubdomain() gin.HandlerFunc {
	return func(c *gin.Context) {
		subdomain, err := models.NormalizeSubdomain(c.Param("subdomain"))
		if err != nil {
			h.HandleError(c, err)
			c.Abort()
			return
		}
		for i := range c.Params {
			if c.Params[i].Key == "subdomain" {
				c.Params[i].Value = subdomain
			}
		}
		c.Next()
	}
}

// subdomainParam returns the path subdomain and puts it, along with the
// caller named in X-User-ID, on the request context.
func subdomainParam(c *gin.Context) string {
	subdomain := c.Param("subdomain")
	ctx := logging.WithSubdomain(c.Request.Context(), subdomain)
	ctx = WithChangedBy(ctx, c.GetHeader(changedByHeader))
	c.Request = c.Request.WithContext(ctx)
	return subdomain
}

func (h *BaseHandler) ruleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.HandleError(c, errors.ErrValidation.WithMessage("rule id must be a positive integer").WithDetail("id", c.Param("id")))
		return 0, false
	}
	return id, true
}

type Handler struct {
	BaseHandler
	Service Service
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{Logger: log},
		Service:     service,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1/subdomains/:subdomain", h.requireSubdomain())
	{
		rules := v1.Group("/rules")
		{
			rules.GET("", h.ListRules)
			rules.POST("", h.CreateRule)
			rules.PUT("/priorities", h.UpdatePriorities)
			rules.GET("/:id", h.GetRule)
			rules.PUT("/:id", h.UpdateRule)
			rules.DELETE("/:id", h.DeleteRule)
			rules.GET("/:id/audit", h.GetRuleAuditLog)
		}

		v1.GET("/audit", h.GetAuditLog)
	}
}

// ListRules godoc
// @Summary      List coloring rules
// @Description  All rules of a subdomain, active or not, in evaluation order
// @Tags         rules
// @Produce      json
// @Param        subdomain  path      string  true  "CRM subdomain"
// @Success      200        {array}   coloring.Rule
// @Failure      400        {object}  errors.ErrorResponse
// @Failure      500        {object}  errors.ErrorResponse
// @Router       /subdomains/{subdomain}/rules [get]
func (h *Handler) ListRules(c *gin.Context) {
	subdomain := subdomainParam(c)
	rules, err := h.Service.ListRules(c.Request.Context(), subdomain)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// CreateRule godoc
// @Summary      Create a coloring rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        subdomain  path      string             true  "CRM subdomain"
// @Param        rule       body      CreateRuleRequest  true  "Rule data"
// @Success      201        {object}  coloring.Rule
// @Failure      400        {object}  errors.ErrorResponse
// @Failure      409        {object}  errors.ErrorResponse
// @Failure      500        {object}  errors.ErrorResponse
// @Router       /subdomains/{subdomain}/rules [post]
func (h *Handler) CreateRule(c *gin.Context) {
	subdomain := subdomainParam(c)
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	rule, err := h.Service.CreateRule(c.Request.Context(), subdomain, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// GetRule godoc
// @Summary      Get a coloring rule
// @Tags         rules
// @Produce      json
// @Param        subdomain  path      string  true  "CRM subdomain"
// @Param        id         path      int     true  "Rule ID"
// @Success      200        {object}  coloring.Rule
// @Failure      404        {object}  errors.ErrorResponse
// @Failure      500        {object}  errors.ErrorResponse
// @Router       /subdomains/{subdomain}/rules/{id} [get]
func (h *Handler) GetRule(c *gin.Context) {
	subdomain := subdomainParam(c)
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	rule, err := h.Service.GetRule(c.Request.Context(), subdomain, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// UpdateRule godoc
// @Summary      Update a coloring rule
// @Description  Only the fields present in the body change
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        subdomain  path      string             true  "CRM subdomain"
// @Param        id         path      int                true  "Rule ID"
// @Param        rule       body      UpdateRuleRequest  true  "Changed fields"
// @Success      200        {object}  coloring.Rule
// @Failure      400        {object}  errors.ErrorResponse
// @Failure      404        {object}  errors.ErrorResponse
// @Failure      409        {object}  errors.ErrorResponse
// @Failure      500        {object}  errors.ErrorResponse
// @Router       /subdomains/{subdomain}/rules/{id} [put]
func (h *Handler) UpdateRule(c *gin.Context) {
	subdomain := subdomainParam(c)
	id, ok := h.ruleID(c)
	if !ok {
		return
	}
	var req UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	rule, err := h.Service.UpdateRule(c.Request.Context(), subdomain, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteRule godoc
// @Summary      Delete a coloring rule
// @Tags         rules
// @Param        subdomain  path  string  true  "CRM subdomain"
// @Param        id         path  int     true  "Rule ID"
// @Success      204        "No Content"
// @Failure      404        {object}  errors.ErrorResponse
// @Failure      500        {object}  errors.ErrorResponse
// @Router       /subdomains/{subdomain}/rules/{id} [delete]
func (h *Handler) DeleteRule(c *gin.Context) {
	subdomain := subdomainParam(c)
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	if err := h.Service.DeleteRule(c.Request.Context(), subdomain, id); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdatePriorities godoc
// @Summary      Reorder coloring rules
// @Description  Sets the priority of several rules at once. Ids of other subdomains are ignored.
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        subdomain   path      string             true  "CRM subdomain"
// @Param        priorities  body      PrioritiesRequest  true  "New priorities"
// @Success      200         {object}  PrioritiesResult
// @Failure      400         {object}  errors.ErrorResponse
// @Failure      500         {object}  errors.ErrorResponse
// @Router       /subdomains/{subdomain}/rules/priorities [put]
func (h *Handler) UpdatePriorities(c *gin.Context) {
	subdomain := subdomainParam(c)
	var req PrioritiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.Service.UpdatePriorities(c.Request.Context(), subdomain, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetRuleAuditLog godoc
// @Summary      Change log of one rule
// @Tags         audit
// @Produce      json
// @Param        subdomain  path      string  true   "CRM subdomain"
// @Param        id         path      int     true   "Rule ID"
// @Param        limit      query     int     false  "Maximum number of entries (1-1000)" default(100)
// @Success      200        {array}   AuditEntry
// @Failure      400        {object}  errors.ErrorResponse
// @Failure      500        {object}  errors.ErrorResponse
// @Router       /subdomains/{subdomain}/rules/{id}/audit [get]
func (h *Handler) GetRuleAuditLog(c *gin.Context) {
	subdomain := subdomainParam(c)
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	entries, err := h.Service.GetAuditLog(c.Request.Context(), subdomain, id, parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetAuditLog godoc
// @Summary      Change log of a subdomain's rules
// @Tags         audit
// @Produce      json
// @Param        subdomain  path      string  true   "CRM subdomain"
// @Param        limit      query     int     false  "Maximum number of entries (1-1000)" default(100)
// @Success      200        {array}   AuditEntry
// @Failure      500        {object}  errors.ErrorResponse
// @Router       /subdomains/{subdomain}/audit [get]
func (h *Handler) GetAuditLog(c *gin.Context) {
	subdomain := subdomainParam(c)
	entries, err := h.Service.GetAuditLog(c.Request.Context(), subdomain, 0, parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// LeadsHandler serves lead coloring, rule dry runs, the field catalogue and
// the resolution history.
type LeadsHandler struct {
	BaseHandler
	Colorer  Colorer
	Fields   FieldLister
	History  HistoryReader
	MaxLeads int
}

func NewLeadsHandler(colorer Colorer, fields FieldLister, history HistoryReader, maxLeads int, log logger.Logger) *LeadsHandler {
	return &LeadsHandler{
		BaseHandler: BaseHandler{Logger: log},
		Colorer:     colorer,
		Fields:      fields,
		History:     history,
		MaxLeads:    maxLeads,
	}
}

func (h *LeadsHandler) RegisterLeadsRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1/subdomains/:subdomain", h.requireSubdomain())
	{
		v1.POST("/rules/test", h.TestRule)
		v1.POST("/leads/styles", h.LeadsStyles)
		v1.GET("/fields", h.DealFields)
		v1.GET("/history", h.GetHistory)
	}
}

// LeadsStyles godoc
// @Summary      Resolve lead styles
// @Description  Returns the style of every lead that matched a rule, keyed by lead id. Unmatched leads are omitted.
// @Tags         leads
// @Accept       json
// @Produce      json
// @Param        subdomain  path      string              true  "CRM subdomain"
// @Param        request    body      LeadsStylesRequest  true  "Lead ids"
// @Success      200        {object}  map[string]coloring.LeadStyle
// @Failure      400        {object}  errors.ErrorResponse
// @Failure      503        {object}  errors.ErrorResponse
// @Router       /subdomains/{subdomain}/leads/styles [post]
func (h *LeadsHandler) LeadsStyles(c *gin.Context) {
	subdomain := subdomainParam(c)
	var req LeadsStylesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := ValidateLeadsStyles(req, h.MaxLeads); err != nil {
		h.HandleError(c, err)
		return
	}

	styles, err := h.Colorer.LeadsStyles(c.Request.Context(), subdomain, req.LeadIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, styles)
}

// TestRule godoc
// @Summary      Dry-run a condition tree
// @Description  Evaluates the conditions against lead_data, or against the CRM lead lead_id when no data is given
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        subdomain  path      string                    true  "CRM subdomain"
// @Param        request    body      coloring.TestRuleRequest  true  "Conditions and lead"
// @Success      200        {object}  coloring.TestRuleResult
// @Failure      400        {object}  errors.ErrorResponse
// @Failure      404        {object}  errors.ErrorResponse
// @Router       /subdomains/{subdomain}/rules/test [post]
func (h *LeadsHandler) TestRule(c *gin.Context) {
	subdomain := subdomainParam(c)
	var req coloring.TestRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.Colorer.TestRule(c.Request.Context(), subdomain, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DealFields godoc
// @Summary      List rule fields
// @Description  Standard lead fields followed by the subdomain's custom fields, with the operators each supports
// @Tags         fields
// @Produce      json
// @Param        subdomain  path      string  true  "CRM subdomain"
// @Success      200        {array}   fields.Field
// @Failure      503        {object}  errors.ErrorResponse
// @Router       /subdomains/{subdomain}/fields [get]
func (h *LeadsHandler) DealFields(c *gin.Context) {
	subdomain := subdomainParam(c)
	list, err := h.Fields.DealFields(c.Request.Context(), subdomain)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetHistory godoc
// @Summary      Recent coloring passes
// @Tags         leads
// @Produce      json
// @Param        subdomain  path      string  true   "CRM subdomain"
// @Param        limit      query     int     false  "Maximum number of passes (1-500)" default(50)
// @Success      200        {array}   coloring.PassSummary
// @Failure      503        {object}  errors.ErrorResponse
// @Router       /subdomains/{subdomain}/history [get]
func (h *LeadsHandler) GetHistory(c *gin.Context) {
	subdomain := subdomainParam(c)
	if h.History == nil {
		h.HandleError(c, errors.ErrServiceUnavailable.WithMessage("history not enabled"))
		return
	}

	passes, err := h.History.Recent(c.Request.Context(), subdomain, parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, errors.ErrInternal.WithCause(err))
		return
	}
	c.JSON(http.StatusOK, passes)
}

// parseLimit returns 0, meaning the default, for missing or bad values.
func parseLimit(limitStr string) int {
	if limitStr == "" {
		return 0
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
