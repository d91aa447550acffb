package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sipenduk/internal/domain"
)

func seedResident(t *testing.T, r Repos, name, nik string) *domain.Resident {
	t.Helper()
	res := &domain.Resident{FullName: name, NIK: nik, Sex: domain.SexMale}
	require.NoError(t, r.Residents.CreateResident(context.Background(), res))
	return res
}

func seedCard(t *testing.T, r Repos, number string) *domain.FamilyCard {
	t.Helper()
	c := &domain.FamilyCard{CardNumber: number, HeadName: "Kepala " + number}
	require.NoError(t, r.FamilyCards.CreateFamilyCard(context.Background(), c))
	return c
}

func TestMemoryStore_ResidentUniqueNIK(t *testing.T) {
	r := NewMemoryStore().Repos()
	ctx := context.Background()

	seedResident(t, r, "A", "3201010101010001")
	err := r.Residents.CreateResident(ctx, &domain.Resident{FullName: "B", NIK: "3201010101010001", Sex: domain.SexMale})
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.Equal(t, ConstraintResidentNIK, ConstraintOf(err))

	// 多个空 NIK 允许共存
	seedResident(t, r, "Bayi 1", "")
	seedResident(t, r, "Bayi 2", "")

	_, total, err := r.Residents.ListResidents(ctx, ResidentFilters{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestMemoryStore_ListResidentsFilters(t *testing.T) {
	r := NewMemoryStore().Repos()
	ctx := context.Background()

	seedResident(t, r, "Citra", "3201010101010003")
	seedResident(t, r, "Budi", "3201010101010002")
	seedResident(t, r, "Ani", "3201010101010001")

	items, total, err := r.Residents.ListResidents(ctx, ResidentFilters{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "Ani", items[0].FullName)
	assert.Equal(t, "Budi", items[1].FullName)

	items, total, err = r.Residents.ListResidents(ctx, ResidentFilters{Search: "0003"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Citra", items[0].FullName)
}

func TestMemoryStore_UpdateResidentKeepsStatus(t *testing.T) {
	r := NewMemoryStore().Repos()
	ctx := context.Background()

	res := seedResident(t, r, "A", "3201010101010001")
	require.NoError(t, r.Residents.UpdateResidentStatus(ctx, res.ResidentID, domain.ResidentStatusDeceased))

	res.FullName = "A Updated"
	res.Status = domain.ResidentStatusPresent
	require.NoError(t, r.Residents.UpdateResident(ctx, res))

	got, err := r.Residents.GetResident(ctx, res.ResidentID)
	require.NoError(t, err)
	assert.Equal(t, "A Updated", got.FullName)
	assert.Equal(t, domain.ResidentStatusDeceased, got.Status)
}

func TestMemoryStore_DeleteResidentReferenced(t *testing.T) {
	r := NewMemoryStore().Repos()
	ctx := context.Background()

	res := seedResident(t, r, "A", "3201010101010001")
	card := seedCard(t, r, "KK-1")
	_, err := r.Memberships.UpsertMembership(ctx, &domain.Membership{ResidentID: res.ResidentID, FamilyCardID: card.FamilyCardID, Relationship: "Husband"})
	require.NoError(t, err)

	err = r.Residents.DeleteResident(ctx, res.ResidentID)
	assert.ErrorIs(t, err, ErrForeignKeyViolation)
	assert.Equal(t, ConstraintMembershipResidentF, ConstraintOf(err))

	err = r.FamilyCards.DeleteFamilyCard(ctx, card.FamilyCardID)
	assert.Equal(t, ConstraintMembershipCardF, ConstraintOf(err))
}

func TestMemoryStore_DeleteResidentNullsArrivalReporter(t *testing.T) {
	r := NewMemoryStore().Repos()
	ctx := context.Background()

	reporter := seedResident(t, r, "Reporter", "3201010101010001")
	arrival := &domain.ArrivalEvent{NIK: "3201010101010009", FullName: "Pendatang", Sex: domain.SexFemale, ArrivalDate: time.Now(), ReporterResidentID: reporter.ResidentID}
	require.NoError(t, r.Arrivals.CreateArrival(ctx, arrival))

	require.NoError(t, r.Residents.DeleteResident(ctx, reporter.ResidentID))
	got, err := r.Arrivals.GetArrival(ctx, arrival.ArrivalEventID)
	require.NoError(t, err)
	assert.Empty(t, got.ReporterResidentID)
}

func TestMemoryStore_UpsertMembershipMoves(t *testing.T) {
	r := NewMemoryStore().Repos()
	ctx := context.Background()

	res := seedResident(t, r, "A", "3201010101010001")
	card1 := seedCard(t, r, "KK-1")
	card2 := seedCard(t, r, "KK-2")

	m := &domain.Membership{ResidentID: res.ResidentID, FamilyCardID: card1.FamilyCardID, Relationship: "Child"}
	existed, err := r.Memberships.UpsertMembership(ctx, m)
	require.NoError(t, err)
	assert.False(t, existed)
	firstID := m.MembershipID

	moved := &domain.Membership{ResidentID: res.ResidentID, FamilyCardID: card2.FamilyCardID, Relationship: "Husband"}
	existed, err = r.Memberships.UpsertMembership(ctx, moved)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, firstID, moved.MembershipID)

	n1, _ := r.Memberships.CountMemberships(ctx, card1.FamilyCardID)
	n2, _ := r.Memberships.CountMemberships(ctx, card2.FamilyCardID)
	assert.Equal(t, 0, n1)
	assert.Equal(t, 1, n2)
}

func TestMemoryStore_UpsertMembershipForeignKeys(t *testing.T) {
	r := NewMemoryStore().Repos()
	ctx := context.Background()
	card := seedCard(t, r, "KK-1")

	_, err := r.Memberships.UpsertMembership(ctx, &domain.Membership{ResidentID: "missing", FamilyCardID: card.FamilyCardID})
	assert.Equal(t, ConstraintMembershipResidentF, ConstraintOf(err))
}

func TestMemoryStore_MemberDetailsInsertionOrder(t *testing.T) {
	r := NewMemoryStore().Repos()
	ctx := context.Background()
	card := seedCard(t, r, "KK-1")

	for _, name := range []string{"Zaki", "Ayu", "Mira"} {
		res := seedResident(t, r, name, "")
		_, err := r.Memberships.UpsertMembership(ctx, &domain.Membership{ResidentID: res.ResidentID, FamilyCardID: card.FamilyCardID, Relationship: "Child"})
		require.NoError(t, err)
	}

	details, err := r.Memberships.ListMemberDetails(ctx, card.FamilyCardID)
	require.NoError(t, err)
	require.Len(t, details, 3)
	assert.Equal(t, "Zaki", details[0].Resident.FullName)
	assert.Equal(t, "Ayu", details[1].Resident.FullName)
	assert.Equal(t, "Mira", details[2].Resident.FullName)
}

func TestMemoryStore_DeathUniquePerResident(t *testing.T) {
	r := NewMemoryStore().Repos()
	ctx := context.Background()
	res := seedResident(t, r, "A", "")

	require.NoError(t, r.Deaths.CreateDeath(ctx, &domain.DeathEvent{ResidentID: res.ResidentID, DateOfDeath: time.Now(), Cause: "sakit"}))
	err := r.Deaths.CreateDeath(ctx, &domain.DeathEvent{ResidentID: res.ResidentID, DateOfDeath: time.Now(), Cause: "sakit"})
	assert.Equal(t, ConstraintDeathResident, ConstraintOf(err))

	got, err := r.Deaths.GetDeathByResident(ctx, res.ResidentID)
	require.NoError(t, err)
	assert.Equal(t, "sakit", got.Cause)
}

func TestMemoryStore_UserByResident(t *testing.T) {
	r := NewMemoryStore().Repos()
	ctx := context.Background()

	res := seedResident(t, r, "A", "3201010101010009")
	require.NoError(t, r.Users.CreateUser(ctx, &domain.User{Username: "KK-9", Role: domain.RoleGuest, PasswordHash: []byte("x"), ResidentID: res.ResidentID}))
	require.NoError(t, r.Users.CreateUser(ctx, &domain.User{Username: "admin", Role: domain.RoleAdmin, PasswordHash: []byte("x")}))

	got, err := r.Users.GetUserByResident(ctx, res.ResidentID)
	require.NoError(t, err)
	assert.Equal(t, "KK-9", got.Username)

	_, err = r.Users.GetUserByResident(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	err = r.Users.CreateUser(ctx, &domain.User{Username: "other", Role: domain.RoleGuest, PasswordHash: []byte("x"), ResidentID: res.ResidentID})
	assert.Equal(t, ConstraintUserResident, ConstraintOf(err))

	got.Username = "taken"
	require.NoError(t, r.Users.UpdateUser(ctx, got))
	again, err := r.Users.GetUserByResident(ctx, res.ResidentID)
	require.NoError(t, err)
	assert.Equal(t, "taken", again.Username)
	assert.Equal(t, res.ResidentID, again.ResidentID)
}

func TestMemoryStore_WithinTxRollback(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(r Repos) error {
		seedCard(t, r, "KK-1")
		seedResident(t, r, "A", "3201010101010001")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, total, _ := store.Repos().FamilyCards.ListFamilyCards(ctx, "", 1, 10)
	assert.Equal(t, 0, total)
	_, err = store.Repos().Residents.GetResidentByNIK(ctx, "3201010101010001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_WithinTxCommit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
		seedCard(t, r, "KK-1")
		return nil
	}))
	_, err := store.Repos().FamilyCards.GetFamilyCardByNumber(ctx, "KK-1")
	assert.NoError(t, err)
}

func TestMemoryStore_DeleteTwiceNotFound(t *testing.T) {
	r := NewMemoryStore().Repos()
	ctx := context.Background()

	a := &domain.Announcement{Title: "Kerja bakti", Body: "Minggu pagi"}
	require.NoError(t, r.Announcements.CreateAnnouncement(ctx, a))
	require.NoError(t, r.Announcements.DeleteAnnouncement(ctx, a.AnnouncementID))
	assert.ErrorIs(t, r.Announcements.DeleteAnnouncement(ctx, a.AnnouncementID), ErrNotFound)
}
