package handler

import (
	"net/http"

	"github.com/blues/pledge/internal/logic"
	"github.com/blues/pledge/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	escrow *logic.Escrow
}

func NewProjectHandler(escrow *logic.Escrow) *ProjectHandler {
	return &ProjectHandler{escrow: escrow}
}

// CreateProject 创建项目，调用者即创建者
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	creator, ok := callerFrom(c)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.escrow.Projects.CreateProject(c.Request.Context(), logic.CreateProjectInput{
		Creator:      creator,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		ImageURI:     req.ImageURI,
		GoalAmount:   req.GoalAmount,
		DurationDays: req.DurationDays,
		Milestones:   toMilestoneInputs(req.Milestones),
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "项目创建成功", newProjectResponse(project))
}

// GetProjects 获取项目列表
func (h *ProjectHandler) GetProjects(c *gin.Context) {
	page, pageSize := parsePage(c)
	filter := logic.ProjectFilter{
		Category: c.Query("category"),
		Page:     page,
		PageSize: pageSize,
	}
	if status := c.Query("status"); status != "" {
		parsed, ok := model.ParseProjectStatus(status)
		if !ok {
			ErrorResponse(c, http.StatusBadRequest, "无效的项目状态")
			return
		}
		filter.Status = parsed
	}
	if creator := c.Query("creator"); creator != "" {
		if !common.IsHexAddress(creator) {
			ErrorResponse(c, http.StatusBadRequest, "无效的地址")
			return
		}
		addr := common.HexToAddress(creator)
		filter.Creator = &addr
	}

	projects, total, err := h.escrow.Projects.ListProjects(c.Request.Context(), filter)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取项目列表成功", newProjectListResponse(projects, page, pageSize, total))
}

// GetProject 获取单个项目详情
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, ok := parseProjectID(c)
	if !ok {
		return
	}

	project, err := h.escrow.Projects.GetProject(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取项目详情成功", newProjectResponse(project))
}

// ProjectCount 项目总数
func (h *ProjectHandler) ProjectCount(c *gin.Context) {
	count, err := h.escrow.Projects.ProjectCount(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取项目总数成功", gin.H{"count": count})
}

// GetMilestones 获取项目里程碑
func (h *ProjectHandler) GetMilestones(c *gin.Context) {
	id, ok := parseProjectID(c)
	if !ok {
		return
	}

	milestones, err := h.escrow.Projects.GetProjectMilestones(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取里程碑成功", milestones)
}

// GetBackers 获取项目支持者，按首次贡献顺序
func (h *ProjectHandler) GetBackers(c *gin.Context) {
	id, ok := parseProjectID(c)
	if !ok {
		return
	}

	backers, err := h.escrow.Contributions.GetBackers(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取支持者成功", backers)
}

// GetStats 平台统计
func (h *ProjectHandler) GetStats(c *gin.Context) {
	stats, err := h.escrow.Projects.Stats(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取统计信息成功", stats)
}
