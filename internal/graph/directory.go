package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// User 目录用户。
type User struct {
	ID                string `json:"id"`
	Mail              string `json:"mail"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Email 返回用户的首选邮箱地址。
//
// 部分目录账户 mail 字段为空，此时回退到 UPN。
func (u *User) Email() string {
	if u.Mail != "" {
		return u.Mail
	}
	return u.UserPrincipalName
}

// CalendarPermission 日历权限条目。
type CalendarPermission struct {
	Role         string `json:"role"`
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

// LicenseDetail 许可证分配条目。
type LicenseDetail struct {
	SKUID         string `json:"skuId"`
	SKUPartNumber string `json:"skuPartNumber"`
}

// SendAsPermission 发送代理权限条目。
type SendAsPermission struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName"`
}

// MailFolder 邮件文件夹元数据。
type MailFolder struct {
	ID              string `json:"id"`
	DisplayName     string `json:"displayName"`
	TotalItemCount  int    `json:"totalItemCount"`
	UnreadItemCount int    `json:"unreadItemCount"`
}

// Service 是发现引擎和探测策略依赖的目录操作集合。
type Service interface {
	// GetUser 按 id 或邮箱地址获取用户，不存在时返回 ErrUserNotFound。
	GetUser(ctx context.Context, idOrEmail string) (*User, error)
	// ListUsers 获取租户成员用户（单页，pageSize 为上限）。
	ListUsers(ctx context.Context, pageSize int) ([]User, error)
	// ListCalendarPermissions 获取用户日历的权限列表。
	ListCalendarPermissions(ctx context.Context, userID string) ([]CalendarPermission, error)
	// ListLicenses 获取用户的许可证分配。
	ListLicenses(ctx context.Context, userID string) ([]LicenseDetail, error)
	// ListSendAsPermissions 获取邮箱的发送代理权限列表。
	ListSendAsPermissions(ctx context.Context, userID string) ([]SendAsPermission, error)
	// GetInboxFolder 读取收件箱元数据，无权限时返回错误。
	GetInboxFolder(ctx context.Context, userID string) (*MailFolder, error)
}

// listResponse 目录服务的集合响应包装
type listResponse[T any] struct {
	Value []T `json:"value"`
}

// Directory 基于 Client 实现 Service。
type Directory struct {
	client Client
}

// NewDirectory 创建目录服务包装。
func NewDirectory(client Client) *Directory {
	return &Directory{client: client}
}

func (d *Directory) GetUser(ctx context.Context, idOrEmail string) (*User, error) {
	var user User
	path := fmt.Sprintf("/users/%s", url.PathEscape(idOrEmail))
	if err := d.client.Request(ctx, http.MethodGet, path, &user); err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, idOrEmail)
		}
		return nil, err
	}
	return &user, nil
}

func (d *Directory) ListUsers(ctx context.Context, pageSize int) ([]User, error) {
	var resp listResponse[User]
	path := fmt.Sprintf("/users?$top=%d&$select=id,mail,displayName,userPrincipalName", pageSize)
	if err := d.client.Request(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (d *Directory) ListCalendarPermissions(ctx context.Context, userID string) ([]CalendarPermission, error) {
	var resp listResponse[CalendarPermission]
	path := fmt.Sprintf("/users/%s/calendar/calendarPermissions", url.PathEscape(userID))
	if err := d.client.Request(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (d *Directory) ListLicenses(ctx context.Context, userID string) ([]LicenseDetail, error) {
	var resp listResponse[LicenseDetail]
	path := fmt.Sprintf("/users/%s/licenseDetails", url.PathEscape(userID))
	if err := d.client.Request(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (d *Directory) ListSendAsPermissions(ctx context.Context, userID string) ([]SendAsPermission, error) {
	var resp listResponse[SendAsPermission]
	path := fmt.Sprintf("/users/%s/mailbox/sendAsPermissions", url.PathEscape(userID))
	if err := d.client.Request(ctx, http.MethodGet, path, &resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (d *Directory) GetInboxFolder(ctx context.Context, userID string) (*MailFolder, error) {
	var folder MailFolder
	path := fmt.Sprintf("/users/%s/mailFolders/inbox", url.PathEscape(userID))
	if err := d.client.Request(ctx, http.MethodGet, path, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// UserValidator 基于目录服务实现身份存在性校验。
//
// 供身份解析器作为可选协作方使用。
type UserValidator struct {
	directory Service
}

// NewUserValidator 创建存在性校验器。
func NewUserValidator(directory Service) *UserValidator {
	return &UserValidator{directory: directory}
}

// ValidateUser 校验邮箱地址对应的目录用户是否存在。
func (v *UserValidator) ValidateUser(ctx context.Context, email string) error {
	_, err := v.directory.GetUser(ctx, email)
	return err
}
