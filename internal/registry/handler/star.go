package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/starregistry/internal/chain"
	"github.com/jmerrifield20/starregistry/internal/ownership"
	"github.com/jmerrifield20/starregistry/internal/registry/model"
	"github.com/jmerrifield20/starregistry/internal/registry/service"
	"go.uber.org/zap"
)

// StarHandler exposes the star registry over HTTP.
type StarHandler struct {
	svc    *service.StarService
	logger *zap.Logger
}

// NewStarHandler creates a new StarHandler.
func NewStarHandler(svc *service.StarService, logger *zap.Logger) *StarHandler {
	return &StarHandler{svc: svc, logger: logger}
}

// Register mounts the star registry routes on the given router group.
func (h *StarHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/requestValidation", h.RequestValidation)
	rg.POST("/submitstar", h.SubmitStar)
	rg.GET("/block/hash/:hash", h.GetBlockByHash)
	rg.GET("/block/height/:height", h.GetBlockByHeight)
	rg.GET("/blocks/:address", h.GetStarsByOwner)
	rg.GET("/validate", h.Validate)
	rg.GET("/chain", h.Overview)
}

// RequestValidation handles POST /requestValidation. It issues the message
// a wallet must sign to claim a star.
func (h *StarHandler) RequestValidation(c *gin.Context) {
	var req model.ValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.ValidationResponse{
		Address:        req.Address,
		Message:        h.svc.RequestValidation(req.Address),
		ValidityWindow: int(h.svc.ValidityWindow().Seconds()),
	})
}

// SubmitStar handles POST /submitstar. It verifies the signed message
// and appends the star to the ledger.
func (h *StarHandler) SubmitStar(c *gin.Context) {
	var req model.SubmitStarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	block, err := h.svc.SubmitStar(c.Request.Context(), service.SubmitRequest{
		Address:   req.Address,
		Message:   req.Message,
		Signature: req.Signature,
		Star:      req.Star.Star(),
	})
	if err != nil {
		c.JSON(submitErrorStatus(err), gin.H{
			"error":  err.Error(),
			"reason": service.RejectionReason(err),
		})
		return
	}

	c.JSON(http.StatusCreated, model.NewBlockView(block))
}

// submitErrorStatus maps a submission error to an HTTP status.
func submitErrorStatus(err error) int {
	switch {
	case errors.Is(err, ownership.ErrMalformedMessage), errors.Is(err, chain.ErrInvalidStar):
		return http.StatusBadRequest
	case errors.Is(err, chain.ErrVerificationExpired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chain.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, chain.ErrVerifierBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GetBlockByHash handles GET /block/hash/:hash.
func (h *StarHandler) GetBlockByHash(c *gin.Context) {
	block, ok := h.svc.BlockByHash(c.Param("hash"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	c.JSON(http.StatusOK, model.NewBlockView(block))
}

// GetBlockByHeight handles GET /block/height/:height.
func (h *StarHandler) GetBlockByHeight(c *gin.Context) {
	height, err := strconv.Atoi(c.Param("height"))
	if err != nil || height < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "height must be a non-negative integer"})
		return
	}

	block, ok := h.svc.BlockByHeight(height)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	c.JSON(http.StatusOK, model.NewBlockView(block))
}

// GetStarsByOwner handles GET /blocks/:address and lists the stars claimed by a wallet.
func (h *StarHandler) GetStarsByOwner(c *gin.Context) {
	stars, err := h.svc.StarsByOwner(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to decode ledger"})
		return
	}
	c.JSON(http.StatusOK, stars)
}

// Validate handles GET /validate. It walks the full chain and reports integrity.
func (h *StarHandler) Validate(c *gin.Context) {
	errs := h.svc.Validate()
	c.JSON(http.StatusOK, model.ValidationReport{Valid: len(errs) == 0, Errors: errs})
}

// Overview handles GET /chain. It returns the chain ID, height and tip hash.
func (h *StarHandler) Overview(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Overview())
}
