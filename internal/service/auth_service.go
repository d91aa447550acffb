package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sipenduk/internal/domain"
	"sipenduk/internal/repository"
)

// AuthService 登录与账号管理
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	// EnsureDefaultAdmin 不存在 admin 账号时创建；返回 nil 表示无需创建
	EnsureDefaultAdmin(ctx context.Context) (*ProvisionedAccount, error)

	CreateUser(ctx context.Context, req CreateUserRequest) (*CreateUserResponse, error)
	GetUser(ctx context.Context, userID string) (*UserItem, error)
	ListUsers(ctx context.Context, req ListUsersRequest) (*ListUsersResponse, error)
	UpdateUser(ctx context.Context, userID string, req UpdateUserRequest) (*UserItem, error)
	ResetPassword(ctx context.Context, userID string) (*ProvisionedAccount, error)
	DeleteUser(ctx context.Context, userID string) error
}

type authService struct {
	store         repository.Store
	sessions      SessionManager
	adminUsername string
	logger        *zap.Logger
}

func NewAuthService(store repository.Store, sessions SessionManager, adminUsername string, logger *zap.Logger) AuthService {
	if adminUsername == "" {
		adminUsername = "admin"
	}
	return &authService{
		store:         store,
		sessions:      sessions,
		adminUsername: adminUsername,
		logger:        logger,
	}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserDescriptor 登录成功后返回的最小用户描述
type UserDescriptor struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      UserDescriptor `json:"user"`
}

// Login 用户名不存在与密码错误返回同一个错误
func (s *authService) Login(ctx context.Context, req LoginRequest) (resp *LoginResponse, err error) {
	defer func() { observe("auth.login", err) }()

	req.Username = strings.TrimSpace(req.Username)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	user, err := s.store.Repos().Users.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("Login failed", zap.String("username", req.Username), zap.String("reason", "unknown_user"))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !checkPassword(user.PasswordHash, req.Password) {
		s.logger.Info("Login failed", zap.String("username", req.Username), zap.String("reason", "bad_password"))
		return nil, ErrInvalidCredentials
	}

	token, session, err := s.sessions.Issue(user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Login succeeded", zap.String("user_id", user.UserID), zap.String("role", user.Role))
	return &LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User: UserDescriptor{
			UserID:   user.UserID,
			Name:     user.DisplayName,
			Username: user.Username,
			Role:     user.Role,
		},
	}, nil
}

func (s *authService) EnsureDefaultAdmin(ctx context.Context) (*ProvisionedAccount, error) {
	var account *ProvisionedAccount
	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		n, err := r.Users.CountUsersByRole(ctx, domain.RoleAdmin)
		if err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if n > 0 {
			return nil
		}
		plain, hash, err := generateCredential()
		if err != nil {
			return err
		}
		user := &domain.User{
			DisplayName:  "Administrator",
			Username:     s.adminUsername,
			PasswordHash: hash,
			Role:         domain.RoleAdmin,
		}
		if err := r.Users.CreateUser(ctx, user); err != nil {
			return mapStoreError(err)
		}
		account = &ProvisionedAccount{UserID: user.UserID, Username: user.Username, Password: plain, Role: user.Role}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if account != nil {
		s.logger.Warn("Default admin account created; change the password after first login",
			zap.String("username", account.Username),
			zap.String("password", account.Password),
		)
	}
	return account, nil
}

// UserItem 账号（不含密码）
type UserItem struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	ResidentID  string    `json:"resident_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toUserItem(u *domain.User) *UserItem {
	return &UserItem{
		UserID:      u.UserID,
		DisplayName: u.DisplayName,
		Username:    u.Username,
		Role:        u.Role,
		ResidentID:  u.ResidentID,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// CreateUserRequest Password 为空时生成随机密码并在响应中返回一次
type CreateUserRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Username    string `json:"username" validate:"required,max=64"`
	Role        string `json:"role" validate:"required,oneof=admin guest"`
	Password    string `json:"password" validate:"omitempty,min=6"`
}

type CreateUserResponse struct {
	User     *UserItem `json:"user"`
	Password string    `json:"password,omitempty"`
}

func (s *authService) CreateUser(ctx context.Context, req CreateUserRequest) (resp *CreateUserResponse, err error) {
	defer func() { observe("user.create", err) }()

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Username = strings.TrimSpace(req.Username)
	req.Role = strings.TrimSpace(req.Role)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	generated := ""
	password := req.Password
	if password == "" {
		if password, err = GeneratePassword(); err != nil {
			return nil, err
		}
		generated = password
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{DisplayName: req.DisplayName, Username: req.Username, PasswordHash: hash, Role: req.Role}
	if err := s.store.Repos().Users.CreateUser(ctx, user); err != nil {
		return nil, mapStoreError(err)
	}
	s.logger.Info("User created", zap.String("user_id", user.UserID), zap.String("role", user.Role))
	return &CreateUserResponse{User: toUserItem(user), Password: generated}, nil
}

func (s *authService) GetUser(ctx context.Context, userID string) (*UserItem, error) {
	u, err := s.store.Repos().Users.GetUser(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return toUserItem(u), nil
}

type ListUsersRequest struct {
	Role string
	Page int
	Size int
}

type ListUsersResponse struct {
	Items []*UserItem `json:"items"`
	Total int         `json:"total"`
}

func (s *authService) ListUsers(ctx context.Context, req ListUsersRequest) (*ListUsersResponse, error) {
	page, size := normalizePaging(req.Page, req.Size)
	users, total, err := s.store.Repos().Users.ListUsers(ctx, strings.TrimSpace(req.Role), page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	items := make([]*UserItem, 0, len(users))
	for _, u := range users {
		items = append(items, toUserItem(u))
	}
	return &ListUsersResponse{Items: items, Total: total}, nil
}

type UpdateUserRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Username    string `json:"username" validate:"required,max=64"`
	Role        string `json:"role" validate:"required,oneof=admin guest"`
}

// UpdateUser 最后一个 admin 不能降级
func (s *authService) UpdateUser(ctx context.Context, userID string, req UpdateUserRequest) (item *UserItem, err error) {
	defer func() { observe("user.update", err) }()

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Username = strings.TrimSpace(req.Username)
	req.Role = strings.TrimSpace(req.Role)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	var updated *domain.User
	err = s.store.WithinTx(ctx, func(r repository.Repos) error {
		user, err := r.Users.GetUser(ctx, userID)
		if err != nil {
			return mapStoreError(err)
		}
		if user.Role == domain.RoleAdmin && req.Role != domain.RoleAdmin {
			if err := ensureNotLastAdmin(ctx, r); err != nil {
				return err
			}
		}
		user.DisplayName = req.DisplayName
		user.Username = req.Username
		user.Role = req.Role
		if err := r.Users.UpdateUser(ctx, user); err != nil {
			return mapStoreError(err)
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toUserItem(updated), nil
}

func (s *authService) ResetPassword(ctx context.Context, userID string) (acc *ProvisionedAccount, err error) {
	defer func() { observe("user.reset_password", err) }()

	repo := s.store.Repos().Users
	user, err := repo.GetUser(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	plain, hash, err := generateCredential()
	if err != nil {
		return nil, err
	}
	if err := repo.UpdatePassword(ctx, userID, hash); err != nil {
		return nil, mapStoreError(err)
	}
	s.logger.Info("Password reset", zap.String("user_id", userID))
	return &ProvisionedAccount{UserID: user.UserID, Username: user.Username, Password: plain, Role: user.Role}, nil
}

func (s *authService) DeleteUser(ctx context.Context, userID string) (err error) {
	defer func() { observe("user.delete", err) }()

	return s.store.WithinTx(ctx, func(r repository.Repos) error {
		user, err := r.Users.GetUser(ctx, userID)
		if err != nil {
			return mapStoreError(err)
		}
		if user.Role == domain.RoleAdmin {
			if err := ensureNotLastAdmin(ctx, r); err != nil {
				return err
			}
		}
		return mapStoreError(r.Users.DeleteUser(ctx, userID))
	})
}

func ensureNotLastAdmin(ctx context.Context, r repository.Repos) error {
	n, err := r.Users.CountUsersByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if n <= 1 {
		return ErrLastAdmin
	}
	return nil
}
