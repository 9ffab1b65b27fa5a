package handler

import (
	"net/http"

	"github.com/blues/pledge/internal/logic"
	"github.com/blues/pledge/internal/model"
	"github.com/gin-gonic/gin"
)

type RefundHandler struct {
	escrow *logic.Escrow
}

func NewRefundHandler(escrow *logic.Escrow) *RefundHandler {
	return &RefundHandler{escrow: escrow}
}

// Refund 调用者取回在失败项目中的贡献
func (h *RefundHandler) Refund(c *gin.Context) {
	backer, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := parseProjectID(c)
	if !ok {
		return
	}

	amount, err := h.escrow.Refunds.Refund(c.Request.Context(), id, backer)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "退款成功", RefundResponse{
		ProjectId: id,
		Backer:    backer.Hex(),
		Amount:    amount,
	})
}

// GetTransfers 分页获取项目资金流出记录，可按类型过滤
func (h *RefundHandler) GetTransfers(c *gin.Context) {
	id, ok := parseProjectID(c)
	if !ok {
		return
	}
	kind := model.TransferKind(c.Query("kind"))
	switch kind {
	case "", model.TransferKindRelease, model.TransferKindFee, model.TransferKindRefund:
	default:
		ErrorResponse(c, http.StatusBadRequest, "无效的流出类型")
		return
	}
	page, pageSize := parsePage(c)

	transfers, total, err := h.escrow.Transfers.GetProjectTransfers(c.Request.Context(), id, kind, page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取资金记录成功", ListResponse[model.TransferModel]{
		Items:      transfers,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetTransferStats 项目资金流出汇总
func (h *RefundHandler) GetTransferStats(c *gin.Context) {
	id, ok := parseProjectID(c)
	if !ok {
		return
	}

	stats, err := h.escrow.Transfers.GetTransferStats(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取资金统计成功", stats)
}
