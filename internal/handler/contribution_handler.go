package handler

import (
	"net/http"

	"github.com/blues/pledge/internal/logic"
	"github.com/blues/pledge/internal/model"
	"github.com/gin-gonic/gin"
)

type ContributionHandler struct {
	escrow *logic.Escrow
}

func NewContributionHandler(escrow *logic.Escrow) *ContributionHandler {
	return &ContributionHandler{escrow: escrow}
}

// Contribute 调用者向项目贡献
func (h *ContributionHandler) Contribute(c *gin.Context) {
	backer, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := parseProjectID(c)
	if !ok {
		return
	}

	var req ContributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.escrow.Contributions.Contribute(c.Request.Context(), id, backer, req.Amount)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "贡献成功", ContributeResponse{
		Project:      newProjectResponse(result.Project),
		Contribution: result.Contribution,
		Reward:       result.Reward,
		Funded:       result.Funded,
	})
}

// GetContribution 获取支持者在项目中的累计贡献
func (h *ContributionHandler) GetContribution(c *gin.Context) {
	id, ok := parseProjectID(c)
	if !ok {
		return
	}
	backer, ok := parseAddress(c, "backer")
	if !ok {
		return
	}

	amount, err := h.escrow.Contributions.GetContribution(c.Request.Context(), id, backer)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取贡献成功", ContributionResponse{
		ProjectId: id,
		Backer:    backer.Hex(),
		Amount:    amount,
	})
}

// GetContributions 分页获取项目贡献记录
func (h *ContributionHandler) GetContributions(c *gin.Context) {
	id, ok := parseProjectID(c)
	if !ok {
		return
	}
	page, pageSize := parsePage(c)

	contributions, total, err := h.escrow.Contributions.ListContributions(c.Request.Context(), id, page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取贡献记录成功", ListResponse[model.ContributionModel]{
		Items:      contributions,
		Pagination: newPagination(page, pageSize, total),
	})
}
