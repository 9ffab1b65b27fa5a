package handler

import (
	"net/http"
	"strconv"

	"github.com/blues/pledge/internal/logic"
	"github.com/gin-gonic/gin"
)

type RewardHandler struct {
	escrow *logic.Escrow
}

func NewRewardHandler(escrow *logic.Escrow) *RewardHandler {
	return &RewardHandler{escrow: escrow}
}

// GetBackerNFTs 支持者在项目中的凭证ID
func (h *RewardHandler) GetBackerNFTs(c *gin.Context) {
	id, ok := parseProjectID(c)
	if !ok {
		return
	}
	backer, ok := parseAddress(c, "backer")
	if !ok {
		return
	}

	tokens, err := h.escrow.Rewards.GetBackerNFTs(c.Request.Context(), id, backer)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取凭证成功", tokens)
}

// GetNFTMetadata 凭证详情
func (h *RewardHandler) GetNFTMetadata(c *gin.Context) {
	tokenID, err := strconv.ParseInt(c.Param("tokenId"), 10, 64)
	if err != nil || tokenID <= 0 {
		ErrorResponse(c, http.StatusBadRequest, "无效的凭证ID")
		return
	}

	reward, err := h.escrow.Rewards.GetNFTMetadata(c.Request.Context(), tokenID)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取凭证详情成功", RewardResponse{
		RewardModel: reward,
		TierName:    reward.Tier.String(),
	})
}

// BalanceOf 地址持有的凭证数量
func (h *RewardHandler) BalanceOf(c *gin.Context) {
	backer, ok := parseAddress(c, "backer")
	if !ok {
		return
	}

	balance, err := h.escrow.Rewards.BalanceOf(c.Request.Context(), backer)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取凭证数量成功", gin.H{"backer": backer.Hex(), "balance": balance})
}
