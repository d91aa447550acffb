package client

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httpapi "sipenduk/internal/http"
	"sipenduk/internal/repository"
	"sipenduk/internal/service"
)

func getTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// startServer 内存存储上的完整 API；返回默认 admin 的账号
func startServer(t *testing.T) (*httptest.Server, *service.ProvisionedAccount) {
	t.Helper()
	logger := getTestLogger()
	st := repository.NewMemoryStore()
	sessions := service.NewJWTSessionManager("client-test", time.Hour)
	auth := service.NewAuthService(st, sessions, "admin", logger)
	acc, err := auth.EnsureDefaultAdmin(t.Context())
	require.NoError(t, err)

	router := httpapi.NewRouter(sessions, logger)
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(auth, logger))
	router.RegisterResidentRoutes(httpapi.NewResidentHandler(service.NewResidentService(st, nil, logger), logger))
	router.RegisterFamilyCardRoutes(httpapi.NewFamilyCardHandler(service.NewFamilyCardService(st, nil, logger), logger))
	router.RegisterVitalEventRoutes(httpapi.NewVitalEventHandler(
		service.NewBirthEventService(st, nil, logger),
		service.NewDeathEventService(st, nil, logger),
		service.NewArrivalEventService(st, nil, logger),
		service.NewDepartureEventService(st, nil, logger),
		logger,
	))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, acc
}

func residentInput(nik, name, sex string) service.ResidentInput {
	return service.ResidentInput{NIK: nik, FullName: name, Sex: sex}
}

func TestClient_LoginRequired(t *testing.T) {
	srv, _ := startServer(t)
	c := New(srv.URL, getTestLogger())

	_, err := c.ListResidents(t.Context(), "", 0, 0)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
}

func TestClient_LoginWrongPassword(t *testing.T) {
	srv, acc := startServer(t)
	c := New(srv.URL, getTestLogger())

	_, err := c.Login(t.Context(), acc.Username, "bukan-password")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Empty(t, c.Token())
}

func TestClient_EndToEnd(t *testing.T) {
	srv, acc := startServer(t)
	c := New(srv.URL, getTestLogger())
	ctx := t.Context()

	login, err := c.Login(ctx, acc.Username, acc.Password)
	require.NoError(t, err)
	assert.Equal(t, login.Token, c.Token())

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, acc.UserID, me.UserID)

	// KK-001 / Budi：户主随家庭卡一起创建
	card, err := c.CreateFamilyCard(ctx, service.CreateFamilyCardRequest{
		CardNumber: "KK-001",
		Address:    "Jl. Merdeka 1",
		HeadName:   "Budi",
		HeadNIK:    "3201000000000001",
		HeadSex:    "male",
	})
	require.NoError(t, err)
	assert.Equal(t, "Budi", card.Head.FullName)
	assert.Equal(t, "Jl. Merdeka 1", card.Head.Address)

	wife, err := c.CreateResident(ctx, service.CreateResidentRequest{
		ResidentInput: residentInput("3201000000000002", "Sari", "female"),
	})
	require.NoError(t, err)

	added, err := c.AddMembership(ctx, service.AddMembershipRequest{
		FamilyCardID: card.FamilyCard.FamilyCardID,
		ResidentID:   wife.Resident.ResidentID,
		Relationship: "Wife",
	})
	require.NoError(t, err)
	assert.False(t, added.Moved)

	detail, err := c.GetFamilyCard(ctx, card.FamilyCard.FamilyCardID)
	require.NoError(t, err)
	require.Len(t, detail.Members, 2)

	page, err := c.ListResidents(ctx, "Sari", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	// 迁出 -> relocated；撤销后恢复 present
	departure, err := c.CreateDeparture(ctx, service.DepartureEventRequest{
		ResidentID:    wife.Resident.ResidentID,
		DepartureDate: "2024-02-01",
		Reason:        "Ikut suami kerja",
		Destination:   "Surabaya",
	})
	require.NoError(t, err)

	res, err := c.GetResident(ctx, wife.Resident.ResidentID)
	require.NoError(t, err)
	assert.Equal(t, "relocated", res.Status)

	_, err = c.CreateDeath(ctx, service.DeathEventRequest{
		ResidentID:  wife.Resident.ResidentID,
		DateOfDeath: "2024-03-01",
		Cause:       "Sakit",
	})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusConflict))

	require.NoError(t, c.DeleteDeparture(ctx, departure.DepartureEventID))
	res, err = c.GetResident(ctx, wife.Resident.ResidentID)
	require.NoError(t, err)
	assert.Equal(t, "present", res.Status)

	// 仍是家庭成员的居民不能删除
	err = c.DeleteResident(ctx, wife.Resident.ResidentID)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusConflict))

	require.NoError(t, c.RemoveMembership(ctx, added.Membership.MembershipID))
	require.NoError(t, c.DeleteResident(ctx, wife.Resident.ResidentID))

	_, err = c.GetResident(ctx, wife.Resident.ResidentID)
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestClient_ValidationFields(t *testing.T) {
	srv, acc := startServer(t)
	c := New(srv.URL, getTestLogger())
	_, err := c.Login(t.Context(), acc.Username, acc.Password)
	require.NoError(t, err)

	_, err = c.CreateResident(t.Context(), service.CreateResidentRequest{
		ResidentInput: residentInput("12", "", "male"),
	})
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Fields, "nik")
	assert.Contains(t, apiErr.Fields, "full_name")
	assert.Contains(t, apiErr.Error(), fmt.Sprint(http.StatusBadRequest))
}
