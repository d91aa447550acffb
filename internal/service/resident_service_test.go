package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sipenduk/internal/domain"
	"sipenduk/internal/repository"
)

// ===== 创建 =====

func TestResidentService_CreateResident(t *testing.T) {
	st := newTestStore()
	pub := &recordingPublisher{}
	svc := NewResidentService(st, pub, getTestLogger())
	ctx := context.Background()

	nik := testNIK()
	resp, err := svc.CreateResident(ctx, CreateResidentRequest{
		ResidentInput: ResidentInput{
			NIK:       nik,
			FullName:  "  Siti Aminah ",
			Sex:       "Female",
			BirthDate: "1990-04-12",
			Hamlet:    "Krajan",
		},
		CreateAccount: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Resident.ResidentID)
	assert.Equal(t, "Siti Aminah", resp.Resident.FullName)
	assert.Equal(t, domain.SexFemale, resp.Resident.Sex)
	assert.Equal(t, "1990-04-12", resp.Resident.BirthDate)
	assert.Equal(t, domain.ResidentStatusPresent, resp.Resident.Status)

	require.NotNil(t, resp.Account)
	assert.Equal(t, nik, resp.Account.Username)
	assert.Equal(t, domain.RoleGuest, resp.Account.Role)
	assert.Len(t, resp.Account.Password, generatedPasswordLength)

	user, err := st.Repos().Users.GetUserByUsername(ctx, nik)
	require.NoError(t, err)
	assert.True(t, checkPassword(user.PasswordHash, resp.Account.Password))

	assert.Equal(t, []string{EventResidentCreated}, pub.types())
}

func TestResidentService_CreateResident_Validation(t *testing.T) {
	svc := NewResidentService(newTestStore(), nil, getTestLogger())

	_, err := svc.CreateResident(context.Background(), CreateResidentRequest{
		ResidentInput: ResidentInput{NIK: "12ab", Sex: "other", BirthDate: "12/04/1990"},
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, ve.Fields, "nik")
	assert.Contains(t, ve.Fields, "full_name")
	assert.Contains(t, ve.Fields, "sex")
	assert.Contains(t, ve.Fields, "birth_date")
	assert.Equal(t, "wajib diisi", ve.Fields["full_name"])

	_, err = svc.CreateResident(context.Background(), CreateResidentRequest{
		ResidentInput: ResidentInput{FullName: "Tanpa NIK", Sex: "male"},
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "wajib diisi", ve.Fields["nik"])
}

func TestResidentService_CreateResident_DuplicateNIK(t *testing.T) {
	st := newTestStore()
	svc := NewResidentService(st, nil, getTestLogger())
	ctx := context.Background()

	nik := testNIK()
	_, err := svc.CreateResident(ctx, CreateResidentRequest{ResidentInput: ResidentInput{NIK: nik, FullName: "Budi", Sex: "male"}})
	require.NoError(t, err)

	_, err = svc.CreateResident(ctx, CreateResidentRequest{
		ResidentInput: ResidentInput{NIK: nik, FullName: "Budi Lain", Sex: "male"},
		CreateAccount: true,
	})
	assert.ErrorIs(t, err, ErrDuplicateNationalID)
	assert.Equal(t, KindConflict, KindOf(err))

	list, err := svc.ListResidents(ctx, ListResidentsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, "Budi", list.Items[0].FullName)

	_, err = st.Repos().Users.GetUserByUsername(ctx, nik)
	assert.Error(t, err, "no account should be created for a rejected resident")
}

// ===== 查询 =====

func TestResidentService_GetResident_NotFound(t *testing.T) {
	svc := NewResidentService(newTestStore(), nil, getTestLogger())
	_, err := svc.GetResident(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestResidentService_ListResidents_Filters(t *testing.T) {
	st := newTestStore()
	svc := NewResidentService(st, nil, getTestLogger())
	ctx := context.Background()

	createTestResident(t, st, "Ahmad", "male")
	createTestResident(t, st, "Bunga", "female")
	createTestResident(t, st, "Cahya", "female")

	list, err := svc.ListResidents(ctx, ListResidentsRequest{Sex: "female"})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)

	list, err = svc.ListResidents(ctx, ListResidentsRequest{Search: "ahm"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Ahmad", list.Items[0].FullName)

	list, err = svc.ListResidents(ctx, ListResidentsRequest{Page: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Cahya", list.Items[0].FullName)
}

// ===== 更新 =====

func TestResidentService_UpdateResident_RenamesAccount(t *testing.T) {
	st := newTestStore()
	svc := NewResidentService(st, nil, getTestLogger())
	ctx := context.Background()

	oldNIK := testNIK()
	created, err := svc.CreateResident(ctx, CreateResidentRequest{
		ResidentInput: ResidentInput{NIK: oldNIK, FullName: "Dewi", Sex: "female"},
		CreateAccount: true,
	})
	require.NoError(t, err)
	before, err := st.Repos().Users.GetUserByUsername(ctx, oldNIK)
	require.NoError(t, err)

	newNIK := testNIK()
	updated, err := svc.UpdateResident(ctx, created.Resident.ResidentID, UpdateResidentRequest{
		ResidentInput: ResidentInput{NIK: newNIK, FullName: "Dewi Lestari", Sex: "female"},
	})
	require.NoError(t, err)
	assert.Equal(t, newNIK, updated.NIK)
	assert.Equal(t, domain.ResidentStatusPresent, updated.Status)

	_, err = st.Repos().Users.GetUserByUsername(ctx, oldNIK)
	assert.Error(t, err)
	after, err := st.Repos().Users.GetUserByUsername(ctx, newNIK)
	require.NoError(t, err)
	assert.Equal(t, before.UserID, after.UserID)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	assert.Equal(t, before.Role, after.Role)
	assert.True(t, checkPassword(after.PasswordHash, created.Account.Password))
}

func TestResidentService_UpdateResident_CannotClearNIK(t *testing.T) {
	st := newTestStore()
	svc := NewResidentService(st, nil, getTestLogger())
	ctx := context.Background()

	nik := testNIK()
	created, err := svc.CreateResident(ctx, CreateResidentRequest{
		ResidentInput: ResidentInput{NIK: nik, FullName: "Indah", Sex: "female"},
		CreateAccount: true,
	})
	require.NoError(t, err)

	_, err = svc.UpdateResident(ctx, created.Resident.ResidentID, UpdateResidentRequest{
		ResidentInput: ResidentInput{NIK: "", FullName: "Indah", Sex: "female"},
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "wajib diisi", ve.Fields["nik"])

	got, err := svc.GetResident(ctx, created.Resident.ResidentID)
	require.NoError(t, err)
	assert.Equal(t, nik, got.NIK)

	require.NoError(t, svc.DeleteResident(ctx, created.Resident.ResidentID))
	_, err = st.Repos().Users.GetUserByUsername(ctx, nik)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestResidentService_UpdateResident_DuplicateNIK(t *testing.T) {
	st := newTestStore()
	svc := NewResidentService(st, nil, getTestLogger())
	ctx := context.Background()

	a := createTestResident(t, st, "Eka", "male")
	b := createTestResident(t, st, "Fajar", "male")

	_, err := svc.UpdateResident(ctx, b.ResidentID, UpdateResidentRequest{
		ResidentInput: ResidentInput{NIK: a.NIK, FullName: "Fajar", Sex: "male"},
	})
	assert.ErrorIs(t, err, ErrDuplicateNationalID)

	got, err := svc.GetResident(ctx, b.ResidentID)
	require.NoError(t, err)
	assert.Equal(t, b.NIK, got.NIK)
}

// ===== 删除 =====

func TestResidentService_DeleteResident_WithMembership(t *testing.T) {
	st := newTestStore()
	svc := NewResidentService(st, nil, getTestLogger())
	ctx := context.Background()

	card := createTestFamilyCard(t, st, "KK-100", "Gilang")

	err := svc.DeleteResident(ctx, card.Head.ResidentID)
	assert.ErrorIs(t, err, ErrResidentHasMembership)
	assert.Equal(t, KindReferential, KindOf(err))

	_, err = svc.GetResident(ctx, card.Head.ResidentID)
	require.NoError(t, err)
	m, err := st.Repos().Memberships.GetMembershipByResident(ctx, card.Head.ResidentID)
	require.NoError(t, err)
	assert.Equal(t, card.Membership.MembershipID, m.MembershipID)
	assert.Equal(t, card.FamilyCard.FamilyCardID, m.FamilyCardID)
}

func TestResidentService_DeleteResident_RemovesGuestAccount(t *testing.T) {
	st := newTestStore()
	pub := &recordingPublisher{}
	svc := NewResidentService(st, pub, getTestLogger())
	ctx := context.Background()

	created, err := svc.CreateResident(ctx, CreateResidentRequest{
		ResidentInput: ResidentInput{NIK: testNIK(), FullName: "Hadi", Sex: "male"},
		CreateAccount: true,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteResident(ctx, created.Resident.ResidentID))
	_, err = st.Repos().Users.GetUserByUsername(ctx, created.Resident.NIK)
	assert.Error(t, err)

	err = svc.DeleteResident(ctx, created.Resident.ResidentID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{EventResidentCreated, EventResidentDeleted}, pub.types())
}

func TestResidentService_DeleteResident_ReferencedByLetter(t *testing.T) {
	st := newTestStore()
	svc := NewResidentService(st, nil, getTestLogger())
	ctx := context.Background()

	res := createTestResident(t, st, "Intan", "female")
	letters := NewLetterService(st, nil, getTestLogger())
	_, err := letters.CreateLetter(ctx, CreateLetterRequest{ResidentID: res.ResidentID, LetterType: "domisili", Purpose: "bank"})
	require.NoError(t, err)

	err = svc.DeleteResident(ctx, res.ResidentID)
	assert.ErrorIs(t, err, ErrResidentReferenced)
}

// ===== 导出 =====

func TestResidentService_ExportResidents(t *testing.T) {
	st := newTestStore()
	svc := NewResidentService(st, nil, getTestLogger())

	a := createTestResident(t, st, "Joko", "male")
	createTestResident(t, st, "Kartini", "female")

	var buf bytes.Buffer
	require.NoError(t, svc.ExportResidents(context.Background(), ListResidentsRequest{}, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(residentSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, a.NIK, rows[1][0])
	assert.Equal(t, "Joko", rows[1][1])
	assert.Equal(t, "Kartini", rows[2][1])
}
