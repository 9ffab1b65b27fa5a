package handler

import (
	"net/http"

	"github.com/blues/pledge/internal/logic"
	"github.com/gin-gonic/gin"
)

type PlatformHandler struct {
	escrow *logic.Escrow
}

func NewPlatformHandler(escrow *logic.Escrow) *PlatformHandler {
	return &PlatformHandler{escrow: escrow}
}

// GetFee 当前手续费
func (h *PlatformHandler) GetFee(c *gin.Context) {
	platform, err := h.escrow.Platform.Platform(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取手续费成功", FeeResponse{
		Percent:  platform.FeePercent,
		Operator: platform.Operator,
	})
}

// SetFee 运营者修改手续费
func (h *PlatformHandler) SetFee(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req SetFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.escrow.Platform.SetPlatformFee(c.Request.Context(), caller, *req.Percent); err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "手续费修改成功", FeeResponse{Percent: *req.Percent})
}
