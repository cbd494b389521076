// Package discovery 发现一个身份可以访问的全部邮箱。
package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sharedmail/backend/internal/domain"
	"sharedmail/backend/internal/graph"
	"sharedmail/backend/internal/monitoring"
	"sharedmail/backend/internal/probe"
)

const (
	// DefaultBatchSize 每批并发探测的候选数量
	DefaultBatchSize = 5
	// DefaultPageSize 目录候选列表的单页上限
	DefaultPageSize = 999
)

// Recorder 接收一次发现运行产生的探测诊断记录。
//
// 记录是尽力而为的，失败不影响发现结果。
type Recorder interface {
	Record(ctx context.Context, runID, identity string, outcomes []domain.ProbeOutcome)
}

// Engine 对目录的全量候选执行探测并组装可访问邮箱列表。
type Engine struct {
	directory graph.Service
	chain     *probe.Chain
	batchSize int
	pageSize  int
	log       *zap.Logger
	metrics   *monitoring.Metrics
	recorder  Recorder
}

// EngineOption 配置 Engine 的可选项。
type EngineOption func(*Engine)

// WithBatchSize 覆盖每批并发的候选数量。
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithPageSize 覆盖目录候选列表的单页上限。
func WithPageSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithMetrics 挂载监控指标。
func WithMetrics(m *monitoring.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRecorder 挂载探测诊断记录器。
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// NewEngine 创建发现引擎。
func NewEngine(directory graph.Service, chain *probe.Chain, log *zap.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		directory: directory,
		chain:     chain,
		batchSize: DefaultBatchSize,
		pageSize:  DefaultPageSize,
		log:       log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Discover 返回身份可访问的邮箱列表。
//
// 个人邮箱永远在下标 0；其余记录的顺序是批次内外探测链完成的
// 先后顺序，调用方不得依赖。个人邮箱获取失败时整体失败；目录
// 候选查询失败时降级为只返回个人邮箱。
func (e *Engine) Discover(ctx context.Context, identity domain.Identity) ([]domain.MailboxRecord, error) {
	start := time.Now()
	runID := uuid.NewString()

	// 第一步：个人邮箱，获取不到就没有任何有意义的结果
	owner, err := e.directory.GetUser(ctx, identity.Canonical())
	if err != nil {
		return nil, fmt.Errorf("fetch personal mailbox for %s: %w", identity.Canonical(), err)
	}

	records := []domain.MailboxRecord{{
		ID:          owner.ID,
		Email:       owner.Email(),
		DisplayName: owner.DisplayName,
		Kind:        domain.KindPersonal,
		Permissions: []domain.Permission{domain.PermissionRead, domain.PermissionWrite, domain.PermissionSend},
	}}

	// 第二步：租户候选列表，失败时降级为只含个人邮箱的结果
	candidates, err := e.listCandidates(ctx, owner.ID)
	if err != nil {
		e.log.Warn("directory candidate query failed, degrading to personal mailbox only",
			zap.String("identity", identity.Canonical()),
			zap.Error(err),
		)
		if e.metrics != nil {
			e.metrics.RecordDirectoryQueryFailure()
		}
		return records, nil
	}

	// 第三步：按批次探测，批内并发、批间串行
	accessible, outcomes := e.probeCandidates(ctx, candidates, identity)
	records = append(records, accessible...)

	if e.recorder != nil {
		e.recorder.Record(ctx, runID, identity.Canonical(), outcomes)
	}
	if e.metrics != nil {
		e.metrics.RecordDiscovery(time.Since(start), len(records))
	}

	e.log.Info("mailbox discovery completed",
		zap.String("identity", identity.Canonical()),
		zap.String("run_id", runID),
		zap.Int("candidates", len(candidates)),
		zap.Int("accessible", len(records)),
		zap.Duration("duration", time.Since(start)),
	)

	return records, nil
}

// listCandidates 获取租户成员用户并剔除身份自己的账户。
func (e *Engine) listCandidates(ctx context.Context, ownerID string) ([]graph.User, error) {
	users, err := e.directory.ListUsers(ctx, e.pageSize)
	if err != nil {
		return nil, err
	}

	candidates := make([]graph.User, 0, len(users))
	for _, u := range users {
		if u.ID == ownerID {
			continue
		}
		candidates = append(candidates, u)
	}
	return candidates, nil
}

// probeCandidates 分批执行探测链。
//
// 同一批内的候选并发探测，批与批之间严格串行，把对远端服务的
// 在途请求数限制在批大小以内。
func (e *Engine) probeCandidates(ctx context.Context, candidates []graph.User, actingAs domain.Identity) ([]domain.MailboxRecord, []domain.ProbeOutcome) {
	var (
		mu       sync.Mutex
		records  []domain.MailboxRecord
		outcomes []domain.ProbeOutcome
	)

	for batchStart := 0; batchStart < len(candidates); batchStart += e.batchSize {
		batchEnd := batchStart + e.batchSize
		if batchEnd > len(candidates) {
			batchEnd = len(candidates)
		}

		var wg sync.WaitGroup
		for _, candidate := range candidates[batchStart:batchEnd] {
			wg.Add(1)
			go func(candidate graph.User) {
				defer wg.Done()

				decision := e.chain.Evaluate(ctx, candidate, actingAs)
				if e.metrics != nil {
					for _, o := range decision.Outcomes {
						e.metrics.RecordProbe(string(o.Strategy), o.Granted, o.Err != "")
					}
				}

				mu.Lock()
				defer mu.Unlock()
				outcomes = append(outcomes, decision.Outcomes...)
				if decision.Granted {
					records = append(records, domain.MailboxRecord{
						ID:          candidate.ID,
						Email:       candidate.Email(),
						DisplayName: candidate.DisplayName,
						Kind:        decision.Kind,
						Permissions: permissionsFor(decision.Kind),
					})
				}
			}(candidate)
		}
		wg.Wait()
	}

	return records, outcomes
}

// permissionsFor 按访问分类推导权限集合。
//
// 委托访问来自日历或发送代理授权，授予读和发；共享邮箱通过
// 直接访问验证，授予完整权限。
func permissionsFor(kind domain.MailboxKind) []domain.Permission {
	switch kind {
	case domain.KindShared:
		return []domain.Permission{domain.PermissionRead, domain.PermissionWrite, domain.PermissionSend}
	case domain.KindDelegated:
		return []domain.Permission{domain.PermissionRead, domain.PermissionSend}
	default:
		return []domain.Permission{domain.PermissionRead, domain.PermissionWrite, domain.PermissionSend}
	}
}
