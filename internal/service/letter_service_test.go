package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sipenduk/internal/domain"
)

func TestLetterSerial(t *testing.T) {
	at := time.Date(2024, time.November, 3, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "1A2B3C4D/DOMISILI/XI/2024", letterSerial("1a2b3c4d-0000-0000-0000-000000000000", "domisili", at))
	assert.Equal(t, "ABC/SKTM-USAHA/I/2025", letterSerial("abc", "sktm usaha", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestLetterService_CreateAndTransition(t *testing.T) {
	st := newTestStore()
	pub := &recordingPublisher{}
	svc := NewLetterService(st, pub, getTestLogger())
	svc.(*letterService).now = func() time.Time { return time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	res := createTestResident(t, st, "Agung", "male")
	letter, err := svc.CreateLetter(ctx, CreateLetterRequest{ResidentID: res.ResidentID, LetterType: "domisili", Purpose: "Pendaftaran sekolah"})
	require.NoError(t, err)
	assert.Equal(t, domain.LetterStatusProcessing, letter.Status)
	assert.Regexp(t, `^[0-9A-F]{8}/DOMISILI/III/2024$`, letter.SerialNumber)

	done, err := svc.UpdateLetterStatus(ctx, letter.LetterID, UpdateLetterStatusRequest{Status: "done", Notes: "Sudah ditandatangani"})
	require.NoError(t, err)
	assert.Equal(t, domain.LetterStatusDone, done.Status)
	assert.Equal(t, "Sudah ditandatangani", done.Notes)

	_, err = svc.UpdateLetterStatus(ctx, letter.LetterID, UpdateLetterStatusRequest{Status: "rejected"})
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Equal(t, KindState, KindOf(err))

	_, err = svc.UpdateLetterStatus(ctx, letter.LetterID, UpdateLetterStatusRequest{Status: "processing"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "status")

	assert.Equal(t, []string{EventLetterRequested, EventLetterStatusChange}, pub.types())
}

func TestLetterService_UnknownResident(t *testing.T) {
	svc := NewLetterService(newTestStore(), nil, getTestLogger())
	_, err := svc.CreateLetter(context.Background(), CreateLetterRequest{ResidentID: "missing", LetterType: "sktm", Purpose: "x"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "resident_id")
}

func TestLetterService_GuestSelfService(t *testing.T) {
	st := newTestStore()
	svc := NewLetterService(st, nil, getTestLogger())
	ctx := context.Background()

	mine := createTestResident(t, st, "Bagus", "male")
	other := createTestResident(t, st, "Citra", "female")
	_, err := svc.CreateLetter(ctx, CreateLetterRequest{ResidentID: other.ResidentID, LetterType: "sktm", Purpose: "beasiswa"})
	require.NoError(t, err)

	account := &domain.User{DisplayName: mine.FullName, Username: mine.NIK, PasswordHash: []byte("x"), Role: domain.RoleGuest, ResidentID: mine.ResidentID}
	require.NoError(t, st.Repos().Users.CreateUser(ctx, account))
	session := &Session{UserID: account.UserID, Username: account.Username, Role: domain.RoleGuest}
	letter, err := svc.RequestOwnLetter(ctx, session, OwnLetterRequest{LetterType: "usaha", Purpose: "kredit"})
	require.NoError(t, err)
	assert.Equal(t, mine.ResidentID, letter.ResidentID)

	own, err := svc.ListOwnLetters(ctx, session, EventPage{})
	require.NoError(t, err)
	require.Equal(t, 1, own.Total)
	assert.Equal(t, letter.LetterID, own.Items[0].LetterID)

	all, err := svc.ListLetters(ctx, ListLettersRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)

	_, err = svc.ListOwnLetters(ctx, &Session{Username: "admin", Role: domain.RoleAdmin}, EventPage{})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.RequestOwnLetter(ctx, nil, OwnLetterRequest{LetterType: "usaha", Purpose: "x"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.ListOwnLetters(ctx, &Session{UserID: "deleted-user", Username: mine.NIK, Role: domain.RoleGuest}, EventPage{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestLetterService_GuestWithoutNIK(t *testing.T) {
	st := newTestStore()
	svc := NewLetterService(st, nil, getTestLogger())
	ctx := context.Background()

	card, err := NewFamilyCardService(st, nil, getTestLogger()).CreateFamilyCard(ctx, CreateFamilyCardRequest{
		CardNumber: "KK-TANPA-NIK",
		HeadName:   "Parmin",
		HeadSex:    "male",
	})
	require.NoError(t, err)
	require.Equal(t, "KK-TANPA-NIK", card.Account.Username)

	session := &Session{UserID: card.Account.UserID, Username: card.Account.Username, Role: domain.RoleGuest}
	letter, err := svc.RequestOwnLetter(ctx, session, OwnLetterRequest{LetterType: "domisili", Purpose: "bank"})
	require.NoError(t, err)
	assert.Equal(t, card.Head.ResidentID, letter.ResidentID)
}

func TestLetterService_LegacyAccountByNIK(t *testing.T) {
	st := newTestStore()
	svc := NewLetterService(st, nil, getTestLogger())
	ctx := context.Background()

	res := createTestResident(t, st, "Sumi", "female")
	legacy := &domain.User{DisplayName: "Sumi", Username: res.NIK, PasswordHash: []byte("x"), Role: domain.RoleGuest}
	require.NoError(t, st.Repos().Users.CreateUser(ctx, legacy))

	letter, err := svc.RequestOwnLetter(ctx, &Session{UserID: legacy.UserID, Username: legacy.Username, Role: domain.RoleGuest}, OwnLetterRequest{LetterType: "sktm", Purpose: "sekolah"})
	require.NoError(t, err)
	assert.Equal(t, res.ResidentID, letter.ResidentID)
}

func TestLetterService_Delete(t *testing.T) {
	st := newTestStore()
	svc := NewLetterService(st, nil, getTestLogger())
	ctx := context.Background()

	res := createTestResident(t, st, "Dodi", "male")
	letter, err := svc.CreateLetter(ctx, CreateLetterRequest{ResidentID: res.ResidentID, LetterType: "domisili", Purpose: "x"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLetter(ctx, letter.LetterID))
	_, err = svc.GetLetter(ctx, letter.LetterID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.DeleteLetter(ctx, letter.LetterID), ErrNotFound)
}
