package domain

import (
	"time"
)

// ProbeStrategy 标识一种访问探测策略。
type ProbeStrategy string

const (
	StrategyCalendarDelegation ProbeStrategy = "calendar-delegation"
	StrategyUnlicensed         ProbeStrategy = "unlicensed"
	StrategySendAs             ProbeStrategy = "send-as"
	StrategyDirectAccess       ProbeStrategy = "direct-access"
)

// ProbeOutcome 表示对单个候选邮箱执行一种策略的结果。
//
// 仅在一次发现运行内存活，用于诊断记录，不参与业务判定之外的
// 任何持久状态。
type ProbeOutcome struct {
	CandidateID    string        `json:"candidateId"`
	CandidateEmail string        `json:"candidateEmail"`
	Strategy       ProbeStrategy `json:"strategy"`
	Granted        bool          `json:"granted"`
	Kind           MailboxKind   `json:"kind,omitempty"` // 命中时的分类提示
	Err            string        `json:"error,omitempty"`
	Elapsed        time.Duration `json:"elapsed"`
}
