package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sipenduk/internal/domain"
	"sipenduk/internal/repository"
)

// seedLegacyKV 写入旧版 KV 数据：2 个居民、1 张家庭卡、1 条死亡、1 个账号、1 条公告，外加坏数据
func seedLegacyKV(t *testing.T, mr *miniredis.Miniredis) {
	t.Helper()
	records := map[string]string{
		"penduduk:1":   `{"id":1,"nik":"3201000000000001","nama":"Budi","jenis_kelamin":"L","tanggal_lahir":"1980-01-02","dusun":"Krajan"}`,
		"penduduk:2":   `{"id":2,"nik":"3201000000000002","nama":"Ani","jenis_kelamin":"Perempuan","tanggal_lahir":"02-03-1985"}`,
		"penduduk:3":   `{"id":3,"nama":`,
		"kk:1":         `{"id":"1","no_kk":"3201999900000001","kepala_keluarga":"Budi","alamat":"Jl. Lama 1"}`,
		"anggota_kk:1": `{"id":1,"kk_id":1,"penduduk_id":1,"hubungan":"Suami"}`,
		"anggota_kk:2": `{"id":2,"kk_id":1,"penduduk_id":2,"hubungan":"Istri"}`,
		"anggota_kk:3": `{"id":3,"kk_id":1,"penduduk_id":99,"hubungan":"Anak"}`,
		"kematian:1":   `{"id":1,"penduduk_id":1,"tanggal":"2023-12-01","sebab":"Sakit"}`,
		"user:1":       `{"id":1,"nama":"Admin Desa","username":"admin","password":"admin123","role":"admin"}`,
		"pengumuman:1": `{"id":1,"judul":"Rapat desa","isi":"Balai desa","penulis":"Sekdes"}`,
		"penduduk:1:x": `{"ignored":true}`,
	}
	for k, v := range records {
		require.NoError(t, mr.Set(k, v))
	}
}

func TestReconcileService_ImportLegacy(t *testing.T) {
	mr, kv := setupTestKV(t)
	seedLegacyKV(t, mr)
	st := newTestStore()
	svc := NewReconcileService(st, kv, getTestLogger())
	ctx := context.Background()

	report, err := svc.ImportLegacy(ctx, ImportOptions{})
	require.NoError(t, err)
	assert.False(t, report.DryRun)

	residents := report.Entities[LegacyResidents]
	assert.Equal(t, 3, residents.Scanned)
	assert.Equal(t, 2, residents.Imported)
	assert.Equal(t, 1, residents.Failed)
	assert.Equal(t, 2, report.Entities[LegacyMemberships].Imported)
	assert.Equal(t, 1, report.Entities[LegacyMemberships].Failed)
	assert.Equal(t, 1, report.Entities[LegacyDeaths].Imported)
	assert.Equal(t, 1, report.Entities[LegacyUsers].Imported)
	assert.Equal(t, 1, report.Entities[LegacyAnnouncements].Imported)
	require.Len(t, report.Corrections, 1)
	assert.Equal(t, domain.ResidentStatusDeceased, report.Corrections[0].To)

	budi, err := st.Repos().Residents.GetResidentByNIK(ctx, "3201000000000001")
	require.NoError(t, err)
	assert.Equal(t, domain.ResidentStatusDeceased, budi.Status)
	assert.Equal(t, "1980-01-02", formatDate(budi.BirthDate))

	ani, err := st.Repos().Residents.GetResidentByNIK(ctx, "3201000000000002")
	require.NoError(t, err)
	assert.Equal(t, domain.SexFemale, ani.Sex)
	assert.Equal(t, "1985-03-02", formatDate(ani.BirthDate))

	card, err := st.Repos().FamilyCards.GetFamilyCardByNumber(ctx, "3201999900000001")
	require.NoError(t, err)
	members, err := st.Repos().Memberships.ListMemberships(ctx, card.FamilyCardID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, domain.RelationshipHusband, members[0].Relationship)
	assert.Equal(t, domain.RelationshipWife, members[1].Relationship)

	auth := NewAuthService(st, NewJWTSessionManager("s", 0), "admin", getTestLogger())
	_, err = auth.Login(ctx, LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)

	// 再次导入：自然键已存在的记录全部跳过
	again, err := svc.ImportLegacy(ctx, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Entities[LegacyResidents].Imported)
	assert.Equal(t, 2, again.Entities[LegacyResidents].Skipped)
	assert.Equal(t, 1, again.Entities[LegacyFamilyCards].Skipped)
	assert.Equal(t, 1, again.Entities[LegacyDeaths].Skipped)
	assert.Equal(t, 1, again.Entities[LegacyUsers].Skipped)
	assert.Empty(t, again.Corrections)
}

func TestReconcileService_ImportLegacy_LinksGuestAccount(t *testing.T) {
	mr, kv := setupTestKV(t)
	require.NoError(t, mr.Set("penduduk:1", `{"id":1,"nik":"3201000000000011","nama":"Rini","jenis_kelamin":"P"}`))
	require.NoError(t, mr.Set("user:1", `{"id":1,"nama":"Rini","username":"3201000000000011","password":"warga123","role":"warga"}`))
	st := newTestStore()
	ctx := context.Background()

	_, err := NewReconcileService(st, kv, getTestLogger()).ImportLegacy(ctx, ImportOptions{})
	require.NoError(t, err)

	rini, err := st.Repos().Residents.GetResidentByNIK(ctx, "3201000000000011")
	require.NoError(t, err)
	user, err := st.Repos().Users.GetUserByResident(ctx, rini.ResidentID)
	require.NoError(t, err)
	assert.Equal(t, "3201000000000011", user.Username)
	assert.Equal(t, domain.RoleGuest, user.Role)

	require.NoError(t, NewResidentService(st, nil, getTestLogger()).DeleteResident(ctx, rini.ResidentID))
	_, err = st.Repos().Users.GetUser(ctx, user.UserID)
	assert.Error(t, err)
}

func TestReconcileService_ImportLegacy_DryRun(t *testing.T) {
	mr, kv := setupTestKV(t)
	seedLegacyKV(t, mr)
	st := newTestStore()
	svc := NewReconcileService(st, kv, getTestLogger())
	ctx := context.Background()

	report, err := svc.ImportLegacy(ctx, ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Entities[LegacyResidents].Imported)

	residents, total, err := st.Repos().Residents.ListResidents(ctx, repository.ResidentFilters{}, 1, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, residents)
}

func TestReconcileService_RepairStatuses(t *testing.T) {
	st := newTestStore()
	svc := NewReconcileService(st, nil, getTestLogger())
	ctx := context.Background()

	stale := createTestResident(t, st, "Status Lama", "male")
	moved := createTestResident(t, st, "Sudah Pindah", "female")
	require.NoError(t, st.Repos().Residents.UpdateResidentStatus(ctx, stale.ResidentID, domain.ResidentStatusDeceased))
	require.NoError(t, st.Repos().Departures.CreateDeparture(ctx, &domain.DepartureEvent{ResidentID: moved.ResidentID, Reason: "-"}))

	corrections, err := svc.RepairStatuses(ctx, true)
	require.NoError(t, err)
	require.Len(t, corrections, 2)
	assert.Equal(t, domain.ResidentStatusDeceased, residentStatus(t, st, stale.ResidentID))

	corrections, err = svc.RepairStatuses(ctx, false)
	require.NoError(t, err)
	assert.Len(t, corrections, 2)
	assert.Equal(t, domain.ResidentStatusPresent, residentStatus(t, st, stale.ResidentID))
	assert.Equal(t, domain.ResidentStatusRelocated, residentStatus(t, st, moved.ResidentID))

	corrections, err = svc.RepairStatuses(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, corrections)
}
