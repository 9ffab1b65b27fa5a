package logic

import (
	"errors"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"    // 参数错误，修正后可重试
	KindState         ErrorKind = "state"         // 当前生命周期不允许该操作
	KindAuthorization ErrorKind = "authorization" // 调用者无权限
	KindNotFound      ErrorKind = "not_found"     // 对象不存在
)

// Error 业务拒绝错误，所有拒绝都不会修改状态
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidGoal       = newError(KindValidation, "INVALID_GOAL", "goal must be greater than 0")
	ErrInvalidDuration   = newError(KindValidation, "INVALID_DURATION", "duration must be 1-60 days")
	ErrMilestoneMismatch = newError(KindValidation, "MILESTONE_MISMATCH", "milestones must equal goal")
	ErrInvalidMilestone  = newError(KindValidation, "INVALID_MILESTONE", "milestone amount must be greater than 0")
	ErrInvalidAmount     = newError(KindValidation, "INVALID_AMOUNT", "amount must be a whole number of base units")
	ErrZeroContribution  = newError(KindValidation, "ZERO_CONTRIBUTION", "contribution must be greater than 0")
	ErrFeeTooHigh        = newError(KindValidation, "FEE_TOO_HIGH", "fee cannot exceed 5%")
	ErrInvalidFee        = newError(KindValidation, "INVALID_FEE", "fee cannot be negative")

	ErrInactiveProject           = newError(KindState, "INACTIVE_PROJECT", "project not active")
	ErrProjectNotFunded          = newError(KindState, "PROJECT_NOT_FUNDED", "project not funded")
	ErrDuplicateVote             = newError(KindState, "DUPLICATE_VOTE", "already voted")
	ErrRefundUnavailable         = newError(KindState, "REFUND_UNAVAILABLE", "refund not available")
	ErrNothingToRefund           = newError(KindState, "NOTHING_TO_REFUND", "no contribution to refund")
	ErrMilestoneAlreadyCompleted = newError(KindState, "MILESTONE_ALREADY_COMPLETED", "milestone already completed")
	ErrMilestoneAlreadyVerified  = newError(KindState, "MILESTONE_ALREADY_VERIFIED", "milestone already verified")
	ErrMilestoneNotSubmitted     = newError(KindState, "MILESTONE_NOT_SUBMITTED", "milestone not completed")

	ErrNotCreator  = newError(KindAuthorization, "NOT_CREATOR", "only creator can perform this action")
	ErrNotOperator = newError(KindAuthorization, "NOT_OPERATOR", "only platform operator can perform this action")
	ErrNotBacker   = newError(KindAuthorization, "NOT_BACKER", "only backers can vote")

	ErrProjectNotFound   = newError(KindNotFound, "PROJECT_NOT_FOUND", "project not found")
	ErrMilestoneNotFound = newError(KindNotFound, "MILESTONE_NOT_FOUND", "milestone not found")
	ErrTokenNotFound     = newError(KindNotFound, "TOKEN_NOT_FOUND", "token not found")
)

// AsError 提取业务错误
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf 返回错误分类，非业务错误返回 false
func KindOf(err error) (ErrorKind, bool) {
	if e, ok := AsError(err); ok {
		return e.Kind, true
	}
	return "", false
}
