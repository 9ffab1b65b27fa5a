package handler

import (
	"github.com/blues/pledge/internal/logic"
	"github.com/blues/pledge/internal/model"
	"github.com/shopspring/decimal"
	"github.com/samber/lo"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	p := Pagination{Page: page, PageSize: pageSize, Total: total}
	if pageSize > 0 {
		p.TotalPage = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return p
}

// 请求模型，金额均为最小单位整数

// MilestoneRequest 里程碑
type MilestoneRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// CreateProjectRequest 创建项目
type CreateProjectRequest struct {
	Title        string             `json:"title" binding:"required"`
	Description  string             `json:"description"`
	Category     string             `json:"category"`
	ImageURI     string             `json:"image_uri"`
	GoalAmount   decimal.Decimal    `json:"goal_amount"`
	DurationDays int                `json:"duration_days"`
	Milestones   []MilestoneRequest `json:"milestones"`
}

// ContributeRequest 贡献
type ContributeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// SubmitMilestoneRequest 提交里程碑
type SubmitMilestoneRequest struct {
	ProofURI string `json:"proof_uri" binding:"required"`
}

// VoteRequest 投票
type VoteRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

// SetFeeRequest 修改手续费
type SetFeeRequest struct {
	Percent *int `json:"percent" binding:"required"`
}

// 响应模型

// ProjectResponse 项目，附带状态编码
type ProjectResponse struct {
	*model.ProjectModel
	StatusCode    int             `json:"status_code"`
	EscrowBalance decimal.Decimal `json:"escrow_balance"`
}

func newProjectResponse(p *model.ProjectModel) ProjectResponse {
	return ProjectResponse{
		ProjectModel:  p,
		StatusCode:    p.Status.Code(),
		EscrowBalance: p.EscrowBalance(),
	}
}

// ProjectListResponse 项目列表
type ProjectListResponse struct {
	Projects   []ProjectResponse `json:"projects"`
	Pagination Pagination        `json:"pagination"`
}

// ContributeResponse 贡献结果
type ContributeResponse struct {
	Project      ProjectResponse          `json:"project"`
	Contribution *model.ContributionModel `json:"contribution"`
	Reward       *model.RewardModel       `json:"reward"`
	Funded       bool                     `json:"funded"`
}

// VoteResponse 投票结果
type VoteResponse struct {
	Milestone *model.MilestoneModel `json:"milestone"`
	Project   ProjectResponse       `json:"project"`
	Released  bool                  `json:"released"`
	Payout    decimal.Decimal       `json:"payout"`
	Fee       decimal.Decimal       `json:"fee"`
}

// RefundResponse 退款结果
type RefundResponse struct {
	ProjectId int64           `json:"project_id"`
	Backer    string          `json:"backer"`
	Amount    decimal.Decimal `json:"amount"`
}

// ContributionResponse 单个支持者的贡献
type ContributionResponse struct {
	ProjectId int64           `json:"project_id"`
	Backer    string          `json:"backer"`
	Amount    decimal.Decimal `json:"amount"`
}

// RewardResponse 奖励凭证详情
type RewardResponse struct {
	*model.RewardModel
	TierName string `json:"tier_name"`
}

// FeeResponse 手续费
type FeeResponse struct {
	Percent  int    `json:"percent"`
	Operator string `json:"operator,omitempty"`
}

// ListResponse 通用分页列表
type ListResponse[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

func newProjectListResponse(projects []model.ProjectModel, page, pageSize int, total int64) ProjectListResponse {
	return ProjectListResponse{
		Projects: lo.Map(projects, func(p model.ProjectModel, _ int) ProjectResponse {
			return newProjectResponse(&p)
		}),
		Pagination: newPagination(page, pageSize, total),
	}
}

func toMilestoneInputs(in []MilestoneRequest) []logic.MilestoneInput {
	return lo.Map(in, func(m MilestoneRequest, _ int) logic.MilestoneInput {
		return logic.MilestoneInput{Title: m.Title, Description: m.Description, Amount: m.Amount}
	})
}
