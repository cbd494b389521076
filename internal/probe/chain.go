// Package probe 实现针对单个候选邮箱的访问探测策略链。
//
// 四种策略按固定顺序求值，一旦某个策略判定命中，后续策略不再
// 执行。单次探测的超时和传输错误一律视为"无访问权"，只记录
// 诊断信息，不向上传播。
package probe

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sharedmail/backend/internal/domain"
	"sharedmail/backend/internal/graph"
)

// DefaultTimeout 单次探测的默认超时
const DefaultTimeout = 5 * time.Second

// Decision 一条候选探测链的最终判定。
type Decision struct {
	Granted  bool
	Kind     domain.MailboxKind
	Outcomes []domain.ProbeOutcome // 本次链上每个已执行策略的诊断记录
}

// Chain 按固定顺序执行探测策略。
type Chain struct {
	directory graph.Service
	timeout   time.Duration
	log       *zap.Logger
}

// NewChain 创建探测链。
//
// timeout <= 0 时使用 DefaultTimeout。
func NewChain(directory graph.Service, timeout time.Duration, log *zap.Logger) *Chain {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Chain{
		directory: directory,
		timeout:   timeout,
		log:       log,
	}
}

// Evaluate 对一个候选执行完整的策略链。
//
// 顺序:
//  1. 日历委托 → 命中即 delegated
//  2. 无许可证 → 不授予访问，仅把候选标记为共享邮箱候选
//  3. 发送代理 → 命中即 delegated
//  4. 直接访问 → 仅在第 2 步命中且 1/3 都未命中时尝试，成功即 shared
func (c *Chain) Evaluate(ctx context.Context, candidate graph.User, actingAs domain.Identity) Decision {
	decision := Decision{}

	granted, outcome := c.run(ctx, domain.StrategyCalendarDelegation, candidate, c.checkCalendarDelegation(candidate, actingAs))
	decision.Outcomes = append(decision.Outcomes, outcome)
	if granted {
		decision.Granted = true
		decision.Kind = domain.KindDelegated
		return decision
	}

	sharedCandidate, outcome := c.run(ctx, domain.StrategyUnlicensed, candidate, c.checkUnlicensed(candidate))
	decision.Outcomes = append(decision.Outcomes, outcome)

	granted, outcome = c.run(ctx, domain.StrategySendAs, candidate, c.checkSendAs(candidate, actingAs))
	decision.Outcomes = append(decision.Outcomes, outcome)
	if granted {
		decision.Granted = true
		decision.Kind = domain.KindDelegated
		return decision
	}

	if sharedCandidate {
		granted, outcome = c.run(ctx, domain.StrategyDirectAccess, candidate, c.checkDirectAccess(candidate))
		decision.Outcomes = append(decision.Outcomes, outcome)
		if granted {
			decision.Granted = true
			decision.Kind = domain.KindShared
		}
	}

	return decision
}

// checkFunc 单个策略的求值函数
type checkFunc func(ctx context.Context) (bool, error)

// run 在独立的超时上下文中执行一个策略，并吞掉它的错误。
//
// 超时只取消当前策略自己的在途请求，不会波及同一候选的后续
// 策略，也不会波及批次内的兄弟候选。
func (c *Chain) run(ctx context.Context, strategy domain.ProbeStrategy, candidate graph.User, check checkFunc) (bool, domain.ProbeOutcome) {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	granted, err := check(probeCtx)
	elapsed := time.Since(start)

	outcome := domain.ProbeOutcome{
		CandidateID:    candidate.ID,
		CandidateEmail: candidate.Email(),
		Strategy:       strategy,
		Granted:        granted,
		Elapsed:        elapsed,
	}

	if err != nil {
		// 错误视为无访问权，只留诊断记录
		outcome.Granted = false
		outcome.Err = err.Error()
		c.log.Debug("probe failed",
			zap.String("strategy", string(strategy)),
			zap.String("candidate", candidate.Email()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return false, outcome
	}

	return granted, outcome
}

// checkCalendarDelegation 候选的日历权限列表中是否出现代理身份。
func (c *Chain) checkCalendarDelegation(candidate graph.User, actingAs domain.Identity) checkFunc {
	return func(ctx context.Context) (bool, error) {
		perms, err := c.directory.ListCalendarPermissions(ctx, candidate.ID)
		if err != nil {
			return false, err
		}
		for _, perm := range perms {
			if actingAs.Equals(perm.EmailAddress.Address) {
				return true, nil
			}
		}
		return false, nil
	}
}

// checkUnlicensed 候选是否没有任何许可证分配。
//
// 无许可证是"共享/资源邮箱"的启发式信号，存在误报的可能
// （真实账户也可能暂时没有许可证），这是已知局限而非缺陷。
func (c *Chain) checkUnlicensed(candidate graph.User) checkFunc {
	return func(ctx context.Context) (bool, error) {
		licenses, err := c.directory.ListLicenses(ctx, candidate.ID)
		if err != nil {
			return false, err
		}
		return len(licenses) == 0, nil
	}
}

// checkSendAs 候选的发送代理权限列表中是否出现代理身份。
func (c *Chain) checkSendAs(candidate graph.User, actingAs domain.Identity) checkFunc {
	return func(ctx context.Context) (bool, error) {
		perms, err := c.directory.ListSendAsPermissions(ctx, candidate.ID)
		if err != nil {
			return false, err
		}
		for _, perm := range perms {
			if actingAs.Equals(perm.Address) {
				return true, nil
			}
		}
		return false, nil
	}
}

// checkDirectAccess 尝试读取候选的收件箱元数据，能读到即视为有权访问。
func (c *Chain) checkDirectAccess(candidate graph.User) checkFunc {
	return func(ctx context.Context) (bool, error) {
		if _, err := c.directory.GetInboxFolder(ctx, candidate.ID); err != nil {
			return false, err
		}
		return true, nil
	}
}
