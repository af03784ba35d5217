package registry

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/instantiate", h.Instantiate)

	r.POST("/claims", h.CreateClaim)
	r.GET("/claims", h.ListClaims)
	r.GET("/claims/:id", h.GetClaim)
	r.POST("/claims/:id/votes", h.CastVote)
	r.POST("/claims/:id/finalize", h.FinalizeVoting)

	r.POST("/lend-requests", h.RequestTokens)
	r.GET("/lend-requests", h.ListUserLendRequests)
	r.POST("/lend-requests/:id/respond", h.RespondToLendRequest)
	r.POST("/repayments", h.RepayTokens)
	r.POST("/eligibility/verify", h.VerifyEligibility)

	r.GET("/config", h.GetConfig)
	r.GET("/total-carbon-credits", h.GetTotalCarbonCredits)
	r.GET("/organizations", h.ListOrganizations)
	r.GET("/organizations/:address", h.GetOrganization)
	r.PUT("/organizations/name", h.UpdateOrganizationName)
	r.POST("/organizations/emissions", h.AddOrganizationEmission)
}

// caller returns the host-supplied caller identity set by the auth
// middleware. The registry trusts it without further checks.
func caller(c *gin.Context) string {
	return c.GetString("addr")
}

func (h *Handler) abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusForError(err), gin.H{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrClaimNotFound), errors.Is(err, ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrVotingEnded), errors.Is(err, ErrVotingNotEnded),
		errors.Is(err, ErrAlreadyVoted), errors.Is(err, ErrRequestNotActive),
		errors.Is(err, ErrClaimNotActive), errors.Is(err, ErrNotEnoughCredits),
		errors.Is(err, ErrBorrowerNotEligible), errors.Is(err, ErrAlreadyInstantiated):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidResponse), errors.Is(err, ErrInvalidNumericInput),
		errors.Is(err, ErrOverflow):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotInstantiated):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// parsePagination reads the shared start_after/limit query parameters for
// id-keyed collections.
func parsePagination(c *gin.Context) (startAfter *uint64, limit *int, ok bool) {
	if raw := c.Query("start_after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid start_after"})
			return nil, nil, false
		}
		startAfter = &v
	}
	limit, ok = parseLimit(c)
	return startAfter, limit, ok
}

func parseLimit(c *gin.Context) (*int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return nil, false
	}
	return &v, true
}

type instantiateRequest struct {
	VotingPeriod uint64 `json:"voting_period"`
}

func (h *Handler) Instantiate(c *gin.Context) {
	var req instantiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg, err := h.service.Instantiate(c.Request.Context(), caller(c), req.VotingPeriod)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

func (h *Handler) CreateClaim(c *gin.Context) {
	var req CreateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.service.CreateClaim(c.Request.Context(), caller(c), req)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type castVoteRequest struct {
	Vote string `json:"vote"`
}

func (h *Handler) CastVote(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	option, err := ParseVoteOption(req.Vote)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	result, err := h.service.CastVote(c.Request.Context(), caller(c), id, option)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) FinalizeVoting(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	result, err := h.service.FinalizeVoting(c.Request.Context(), caller(c), id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type requestTokensRequest struct {
	Lender string `json:"lender"`
	Amount uint64 `json:"amount"`
}

func (h *Handler) RequestTokens(c *gin.Context) {
	var req requestTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.service.RequestTokens(c.Request.Context(), caller(c), req.Lender, req.Amount)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type respondRequest struct {
	Response string `json:"response"`
}

func (h *Handler) RespondToLendRequest(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.service.RespondToLendRequest(c.Request.Context(), caller(c), id, req.Response)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type repayRequest struct {
	Lender string `json:"lender"`
	Amount uint64 `json:"amount"`
}

func (h *Handler) RepayTokens(c *gin.Context) {
	var req repayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.service.RepayTokens(c.Request.Context(), caller(c), req.Lender, req.Amount)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type verifyEligibilityRequest struct {
	Borrower string `json:"borrower"`
	Lender   string `json:"lender"`
	Amount   uint64 `json:"amount"`
}

func (h *Handler) VerifyEligibility(c *gin.Context) {
	var req verifyEligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.service.VerifyEligibility(c.Request.Context(), caller(c), req.Borrower, req.Lender, req.Amount)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type updateNameRequest struct {
	Name string `json:"name"`
}

func (h *Handler) UpdateOrganizationName(c *gin.Context) {
	var req updateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.UpdateOrganizationName(c.Request.Context(), caller(c), req.Name); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type addEmissionRequest struct {
	Emissions string `json:"emissions"`
}

func (h *Handler) AddOrganizationEmission(c *gin.Context) {
	var req addEmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.AddOrganizationEmission(c.Request.Context(), caller(c), req.Emissions); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (h *Handler) GetConfig(c *gin.Context) {
	cfg, err := h.service.GetConfig(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *Handler) GetTotalCarbonCredits(c *gin.Context) {
	total, err := h.service.GetTotalCarbonCredits(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total})
}

func (h *Handler) GetClaim(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	claim, err := h.service.GetClaim(c.Request.Context(), id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, claim)
}

// ListClaims handles both the unfiltered listing and the by-status variant,
// selected by the optional status query parameter.
func (h *Handler) ListClaims(c *gin.Context) {
	startAfter, limit, ok := parsePagination(c)
	if !ok {
		return
	}
	var (
		claims []ClaimView
		err    error
	)
	if raw := c.Query("status"); raw != "" {
		status := ClaimStatus(raw)
		switch status {
		case ClaimActive, ClaimApproved, ClaimRejected:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		claims, err = h.service.ListClaimsByStatus(c.Request.Context(), status, startAfter, limit)
	} else {
		claims, err = h.service.ListClaims(c.Request.Context(), startAfter, limit)
	}
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claims": claims})
}

func (h *Handler) GetOrganization(c *gin.Context) {
	org, err := h.service.GetOrganization(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

// ListOrganizations paginates by address, so start_after is taken verbatim.
func (h *Handler) ListOrganizations(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	orgs, err := h.service.ListOrganizations(c.Request.Context(), c.Query("start_after"), limit)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

func (h *Handler) ListUserLendRequests(c *gin.Context) {
	startAfter, limit, ok := parsePagination(c)
	if !ok {
		return
	}
	user := c.Query("user")
	if user == "" {
		user = caller(c)
	}
	requests, err := h.service.ListUserLendRequests(c.Request.Context(), user, startAfter, limit)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lend_requests": requests})
}
