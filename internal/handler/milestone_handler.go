package handler

import (
	"net/http"

	"github.com/blues/pledge/internal/logic"
	"github.com/gin-gonic/gin"
)

type MilestoneHandler struct {
	escrow *logic.Escrow
}

func NewMilestoneHandler(escrow *logic.Escrow) *MilestoneHandler {
	return &MilestoneHandler{escrow: escrow}
}

// SubmitMilestone 创建者提交里程碑成果
func (h *MilestoneHandler) SubmitMilestone(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := parseProjectID(c)
	if !ok {
		return
	}
	index, ok := parseIndex(c)
	if !ok {
		return
	}

	var req SubmitMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	milestone, err := h.escrow.Milestones.SubmitMilestone(c.Request.Context(), id, index, caller, req.ProofURI)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "里程碑提交成功", milestone)
}

// Vote 支持者投票，达到多数时直接放款
func (h *MilestoneHandler) Vote(c *gin.Context) {
	backer, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := parseProjectID(c)
	if !ok {
		return
	}
	index, ok := parseIndex(c)
	if !ok {
		return
	}

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.escrow.Milestones.VoteOnMilestone(c.Request.Context(), id, index, backer, *req.Approve)
	if err != nil {
		HandleError(c, err)
		return
	}

	message := "投票成功"
	if result.Released {
		message = "投票成功，资金已释放"
	}
	SuccessResponse(c, http.StatusOK, message, VoteResponse{
		Milestone: result.Milestone,
		Project:   newProjectResponse(result.Project),
		Released:  result.Released,
		Payout:    result.Payout,
		Fee:       result.Fee,
	})
}

// GetVotes 里程碑投票记录
func (h *MilestoneHandler) GetVotes(c *gin.Context) {
	id, ok := parseProjectID(c)
	if !ok {
		return
	}
	index, ok := parseIndex(c)
	if !ok {
		return
	}

	votes, err := h.escrow.Milestones.GetVotes(c.Request.Context(), id, index)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取投票记录成功", votes)
}
