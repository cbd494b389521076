package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"sharedmail/backend/internal/domain"
	"sharedmail/backend/internal/graph"
	"sharedmail/backend/internal/probe"
)

// fakeDirectory 可按字段定制行为的目录服务桩
type fakeDirectory struct {
	getUser                 func(ctx context.Context, idOrEmail string) (*graph.User, error)
	listUsers               func(ctx context.Context, pageSize int) ([]graph.User, error)
	listCalendarPermissions func(ctx context.Context, userID string) ([]graph.CalendarPermission, error)
	listLicenses            func(ctx context.Context, userID string) ([]graph.LicenseDetail, error)
	listSendAsPermissions   func(ctx context.Context, userID string) ([]graph.SendAsPermission, error)
	getInboxFolder          func(ctx context.Context, userID string) (*graph.MailFolder, error)
}

func (f *fakeDirectory) GetUser(ctx context.Context, idOrEmail string) (*graph.User, error) {
	return f.getUser(ctx, idOrEmail)
}

func (f *fakeDirectory) ListUsers(ctx context.Context, pageSize int) ([]graph.User, error) {
	return f.listUsers(ctx, pageSize)
}

func (f *fakeDirectory) ListCalendarPermissions(ctx context.Context, userID string) ([]graph.CalendarPermission, error) {
	return f.listCalendarPermissions(ctx, userID)
}

func (f *fakeDirectory) ListLicenses(ctx context.Context, userID string) ([]graph.LicenseDetail, error) {
	return f.listLicenses(ctx, userID)
}

func (f *fakeDirectory) ListSendAsPermissions(ctx context.Context, userID string) ([]graph.SendAsPermission, error) {
	return f.listSendAsPermissions(ctx, userID)
}

func (f *fakeDirectory) GetInboxFolder(ctx context.Context, userID string) (*graph.MailFolder, error) {
	return f.getInboxFolder(ctx, userID)
}

// newFakeDirectory 返回一个所有探测都不命中的目录桩。
func newFakeDirectory(owner graph.User, tenant []graph.User) *fakeDirectory {
	return &fakeDirectory{
		getUser: func(ctx context.Context, idOrEmail string) (*graph.User, error) {
			u := owner
			return &u, nil
		},
		listUsers: func(ctx context.Context, pageSize int) ([]graph.User, error) {
			return tenant, nil
		},
		listCalendarPermissions: func(ctx context.Context, userID string) ([]graph.CalendarPermission, error) {
			return nil, nil
		},
		listLicenses: func(ctx context.Context, userID string) ([]graph.LicenseDetail, error) {
			return []graph.LicenseDetail{{SKUID: "sku-1"}}, nil
		},
		listSendAsPermissions: func(ctx context.Context, userID string) ([]graph.SendAsPermission, error) {
			return nil, nil
		},
		getInboxFolder: func(ctx context.Context, userID string) (*graph.MailFolder, error) {
			return nil, errors.New("access denied")
		},
	}
}

func engineIdentity(t *testing.T) domain.Identity {
	t.Helper()
	identity, err := domain.NewIdentity("owner@example.com")
	assert.NoError(t, err)
	return identity
}

var engineOwner = graph.User{ID: "owner-1", Mail: "owner@example.com", DisplayName: "Owner"}

func newEngine(directory graph.Service, opts ...EngineOption) *Engine {
	chain := probe.NewChain(directory, time.Second, zap.NewNop())
	return NewEngine(directory, chain, zap.NewNop(), opts...)
}

func TestDiscoverPersonalMailbox(t *testing.T) {
	t.Run("个人邮箱永远排在第一位", func(t *testing.T) {
		directory := newFakeDirectory(engineOwner, []graph.User{
			engineOwner,
			{ID: "u-2", Mail: "other@example.com"},
		})

		records, err := newEngine(directory).Discover(context.Background(), engineIdentity(t))

		assert.NoError(t, err)
		assert.NotEmpty(t, records)
		assert.Equal(t, "owner-1", records[0].ID)
		assert.Equal(t, domain.KindPersonal, records[0].Kind)
		assert.ElementsMatch(t,
			[]domain.Permission{domain.PermissionRead, domain.PermissionWrite, domain.PermissionSend},
			records[0].Permissions)
	})

	t.Run("个人邮箱获取失败时整体失败", func(t *testing.T) {
		directory := newFakeDirectory(engineOwner, nil)
		directory.getUser = func(ctx context.Context, idOrEmail string) (*graph.User, error) {
			return nil, graph.ErrUserNotFound
		}

		records, err := newEngine(directory).Discover(context.Background(), engineIdentity(t))

		assert.Error(t, err)
		assert.ErrorIs(t, err, graph.ErrUserNotFound)
		assert.Nil(t, records)
	})

	t.Run("候选列表里剔除身份自己的账户", func(t *testing.T) {
		var probed sync.Map
		directory := newFakeDirectory(engineOwner, []graph.User{
			engineOwner,
			{ID: "u-2", Mail: "other@example.com"},
		})
		inner := directory.listCalendarPermissions
		directory.listCalendarPermissions = func(ctx context.Context, userID string) ([]graph.CalendarPermission, error) {
			probed.Store(userID, true)
			return inner(ctx, userID)
		}

		_, err := newEngine(directory).Discover(context.Background(), engineIdentity(t))

		assert.NoError(t, err)
		_, ownerProbed := probed.Load("owner-1")
		assert.False(t, ownerProbed, "身份自己的账户不应进入探测链")
		_, otherProbed := probed.Load("u-2")
		assert.True(t, otherProbed)
	})
}

func TestDiscoverDegradesOnDirectoryFailure(t *testing.T) {
	directory := newFakeDirectory(engineOwner, nil)
	directory.listUsers = func(ctx context.Context, pageSize int) ([]graph.User, error) {
		return nil, errors.New("directory unavailable")
	}

	records, err := newEngine(directory).Discover(context.Background(), engineIdentity(t))

	// 候选查询失败降级为只含个人邮箱，不报错
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, domain.KindPersonal, records[0].Kind)
}

func TestDiscoverAccessibleMailboxes(t *testing.T) {
	tenant := []graph.User{
		engineOwner,
		{ID: "u-2", Mail: "delegated@example.com", DisplayName: "Delegated"},
		{ID: "u-3", Mail: "shared@example.com", DisplayName: "Shared"},
		{ID: "u-4", Mail: "stranger@example.com", DisplayName: "Stranger"},
	}

	directory := newFakeDirectory(engineOwner, tenant)
	directory.listCalendarPermissions = func(ctx context.Context, userID string) ([]graph.CalendarPermission, error) {
		if userID == "u-2" {
			var perm graph.CalendarPermission
			perm.Role = "read"
			perm.EmailAddress.Address = "owner@example.com"
			return []graph.CalendarPermission{perm}, nil
		}
		return nil, nil
	}
	directory.listLicenses = func(ctx context.Context, userID string) ([]graph.LicenseDetail, error) {
		if userID == "u-3" {
			return nil, nil
		}
		return []graph.LicenseDetail{{SKUID: "sku-1"}}, nil
	}
	directory.getInboxFolder = func(ctx context.Context, userID string) (*graph.MailFolder, error) {
		if userID == "u-3" {
			return &graph.MailFolder{ID: "inbox"}, nil
		}
		return nil, errors.New("access denied")
	}

	records, err := newEngine(directory).Discover(context.Background(), engineIdentity(t))

	assert.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, domain.KindPersonal, records[0].Kind)

	byID := make(map[string]domain.MailboxRecord)
	for _, r := range records[1:] {
		byID[r.ID] = r
	}
	assert.Equal(t, domain.KindDelegated, byID["u-2"].Kind)
	assert.ElementsMatch(t,
		[]domain.Permission{domain.PermissionRead, domain.PermissionSend},
		byID["u-2"].Permissions)
	assert.Equal(t, domain.KindShared, byID["u-3"].Kind)
	assert.ElementsMatch(t,
		[]domain.Permission{domain.PermissionRead, domain.PermissionWrite, domain.PermissionSend},
		byID["u-3"].Permissions)
	assert.NotContains(t, byID, "u-4")
}

func TestDiscoverBatchConcurrency(t *testing.T) {
	const batchSize = 3

	tenant := make([]graph.User, 0, 12)
	for i := 0; i < 12; i++ {
		tenant = append(tenant, graph.User{
			ID:   fmt.Sprintf("u-%d", i),
			Mail: fmt.Sprintf("user%d@example.com", i),
		})
	}

	var inFlight, peak int64
	directory := newFakeDirectory(engineOwner, tenant)
	directory.listCalendarPermissions = func(ctx context.Context, userID string) ([]graph.CalendarPermission, error) {
		current := atomic.AddInt64(&inFlight, 1)
		defer atomic.AddInt64(&inFlight, -1)
		for {
			observed := atomic.LoadInt64(&peak)
			if current <= observed || atomic.CompareAndSwapInt64(&peak, observed, current) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return nil, nil
	}

	_, err := newEngine(directory, WithBatchSize(batchSize)).Discover(context.Background(), engineIdentity(t))

	assert.NoError(t, err)
	// 批内并发、批间串行，在途探测数不超过批大小
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(batchSize))
	assert.Greater(t, atomic.LoadInt64(&peak), int64(1), "同一批内的候选应当并发探测")
}

// recordingRecorder 收集诊断回调
type recordingRecorder struct {
	mu       sync.Mutex
	runIDs   []string
	outcomes []domain.ProbeOutcome
}

func (r *recordingRecorder) Record(ctx context.Context, runID, identity string, outcomes []domain.ProbeOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runIDs = append(r.runIDs, runID)
	r.outcomes = append(r.outcomes, outcomes...)
}

func TestDiscoverRecordsOutcomes(t *testing.T) {
	directory := newFakeDirectory(engineOwner, []graph.User{
		engineOwner,
		{ID: "u-2", Mail: "other@example.com"},
	})

	recorder := &recordingRecorder{}
	_, err := newEngine(directory, WithRecorder(recorder)).Discover(context.Background(), engineIdentity(t))

	assert.NoError(t, err)
	assert.Len(t, recorder.runIDs, 1)
	assert.NotEmpty(t, recorder.outcomes)
	for _, o := range recorder.outcomes {
		assert.Equal(t, "u-2", o.CandidateID)
	}
}
