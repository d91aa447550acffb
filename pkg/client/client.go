package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	httpapi "sipenduk/internal/http"
	"sipenduk/internal/service"
)

// APIError 服务端返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("sipenduk api: %d %s %v", e.StatusCode, e.Message, e.Fields)
	}
	return fmt.Sprintf("sipenduk api: %d %s", e.StatusCode, e.Message)
}

// IsStatus 判断 err 是否为指定状态码的 APIError
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Client sipenduk HTTP API 客户端
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

func New(baseURL string, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{httpClient: httpClient, logger: logger}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func call[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var (
		result  httpapi.Result[T]
		failure httpapi.ErrorResult
		zero    T
	)
	req := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&failure)
	if token := c.Token(); token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Error("sipenduk API call failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return zero, fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return zero, &APIError{StatusCode: resp.StatusCode(), Message: failure.Error, Fields: failure.Errors}
	}
	return result.Data, nil
}

func pageQuery(path string, values url.Values, page, size int) string {
	if page > 0 {
		values.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		values.Set("size", strconv.Itoa(size))
	}
	if len(values) == 0 {
		return path
	}
	return path + "?" + values.Encode()
}

// Login 登录成功后自动保存 token
func (c *Client) Login(ctx context.Context, username, password string) (*service.LoginResponse, error) {
	resp, err := call[service.LoginResponse](ctx, c, http.MethodPost, "/api/v1/auth/login", service.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}
	c.SetToken(resp.Token)
	c.logger.Info("Logged in", zap.String("username", resp.User.Username), zap.String("role", resp.User.Role))
	return &resp, nil
}

func (c *Client) Me(ctx context.Context) (*service.Session, error) {
	s, err := call[service.Session](ctx, c, http.MethodGet, "/api/v1/auth/me", nil)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ===== Residents =====

func (c *Client) CreateResident(ctx context.Context, req service.CreateResidentRequest) (*service.CreateResidentResponse, error) {
	resp, err := call[service.CreateResidentResponse](ctx, c, http.MethodPost, "/api/v1/residents", req)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetResident(ctx context.Context, residentID string) (*service.ResidentItem, error) {
	item, err := call[service.ResidentItem](ctx, c, http.MethodGet, "/api/v1/residents/"+url.PathEscape(residentID), nil)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) ListResidents(ctx context.Context, search string, page, size int) (*httpapi.Page[service.ResidentItem], error) {
	values := url.Values{}
	if search != "" {
		values.Set("search", search)
	}
	p, err := call[httpapi.Page[service.ResidentItem]](ctx, c, http.MethodGet, pageQuery("/api/v1/residents", values, page, size), nil)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateResident(ctx context.Context, residentID string, req service.UpdateResidentRequest) (*service.ResidentItem, error) {
	item, err := call[service.ResidentItem](ctx, c, http.MethodPut, "/api/v1/residents/"+url.PathEscape(residentID), req)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) DeleteResident(ctx context.Context, residentID string) error {
	_, err := call[map[string]string](ctx, c, http.MethodDelete, "/api/v1/residents/"+url.PathEscape(residentID), nil)
	return err
}

// ===== Family cards =====

func (c *Client) CreateFamilyCard(ctx context.Context, req service.CreateFamilyCardRequest) (*service.CreateFamilyCardResponse, error) {
	resp, err := call[service.CreateFamilyCardResponse](ctx, c, http.MethodPost, "/api/v1/family-cards", req)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetFamilyCard(ctx context.Context, familyCardID string) (*service.FamilyCardDetail, error) {
	detail, err := call[service.FamilyCardDetail](ctx, c, http.MethodGet, "/api/v1/family-cards/"+url.PathEscape(familyCardID), nil)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) AddMembership(ctx context.Context, req service.AddMembershipRequest) (*service.AddMembershipResponse, error) {
	resp, err := call[service.AddMembershipResponse](ctx, c, http.MethodPost, "/api/v1/memberships", req)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RemoveMembership(ctx context.Context, membershipID string) error {
	_, err := call[map[string]string](ctx, c, http.MethodDelete, "/api/v1/memberships/"+url.PathEscape(membershipID), nil)
	return err
}

// ===== Vital events =====

func (c *Client) CreateDeath(ctx context.Context, req service.DeathEventRequest) (*service.DeathEventItem, error) {
	item, err := call[service.DeathEventItem](ctx, c, http.MethodPost, "/api/v1/deaths", req)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) DeleteDeath(ctx context.Context, deathEventID string) error {
	_, err := call[map[string]string](ctx, c, http.MethodDelete, "/api/v1/deaths/"+url.PathEscape(deathEventID), nil)
	return err
}

func (c *Client) CreateDeparture(ctx context.Context, req service.DepartureEventRequest) (*service.DepartureEventItem, error) {
	item, err := call[service.DepartureEventItem](ctx, c, http.MethodPost, "/api/v1/departures", req)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) DeleteDeparture(ctx context.Context, departureEventID string) error {
	_, err := call[map[string]string](ctx, c, http.MethodDelete, "/api/v1/departures/"+url.PathEscape(departureEventID), nil)
	return err
}
