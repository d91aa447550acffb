package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sipenduk/internal/domain"
)

func setupMockResidentsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresResidentsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresResidentsRepository(db)
}

var residentRowColumns = []string{
	"resident_id", "nik", "full_name", "birth_place", "birth_date", "sex",
	"address", "rt", "rw", "hamlet", "religion", "marital_status", "occupation",
	"status", "created_at", "updated_at",
}

// ============================================
// residents
// ============================================

func TestGetResident_Success(t *testing.T) {
	db, mock, repo := setupMockResidentsDB(t)
	defer db.Close()

	id := uuid.NewString()
	born := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	mock.ExpectQuery(`SELECT`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(residentRowColumns).AddRow(
			id, "3201010101010001", "Budi Santoso", "Bogor", born, "male",
			"Jl. Melati 1", "001", "002", "Sukamaju", "Islam", "Kawin", "Petani",
			"present", now, now,
		))

	res, err := repo.GetResident(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, res.ResidentID)
	assert.Equal(t, "3201010101010001", res.NIK)
	require.NotNil(t, res.BirthDate)
	assert.True(t, born.Equal(*res.BirthDate))
	assert.Equal(t, domain.ResidentStatusPresent, res.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetResident_NullColumns(t *testing.T) {
	db, mock, repo := setupMockResidentsDB(t)
	defer db.Close()

	id := uuid.NewString()
	now := time.Now()
	mock.ExpectQuery(`SELECT`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(residentRowColumns).AddRow(
			id, nil, "Bayi Baru", "", nil, "female",
			"", "", "", "", "", "", "",
			"present", now, now,
		))

	res, err := repo.GetResident(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, res.NIK)
	assert.Nil(t, res.BirthDate)
}

func TestGetResident_NotFound(t *testing.T) {
	db, mock, repo := setupMockResidentsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WillReturnError(sql.ErrNoRows)

	res, err := repo.GetResident(context.Background(), uuid.NewString())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateResident_GeneratesIDAndDefaultsStatus(t *testing.T) {
	db, mock, repo := setupMockResidentsDB(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO residents`).
		WithArgs(sqlmock.AnyArg(), nil, "Siti", "", nil, "female",
			"", "", "", "", "", "", "", "present").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	res := &domain.Resident{FullName: "Siti", Sex: "female"}
	require.NoError(t, repo.CreateResident(context.Background(), res))
	_, err := uuid.Parse(res.ResidentID)
	assert.NoError(t, err)
	assert.Equal(t, domain.ResidentStatusPresent, res.Status)
	assert.Equal(t, now, res.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateResident_DuplicateNIK(t *testing.T) {
	db, mock, repo := setupMockResidentsDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO residents`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintResidentNIK})

	err := repo.CreateResident(context.Background(), &domain.Resident{NIK: "3201010101010001", FullName: "A", Sex: "male"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.Equal(t, ConstraintResidentNIK, ConstraintOf(err))
}

func TestDeleteResident_ForeignKey(t *testing.T) {
	db, mock, repo := setupMockResidentsDB(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM residents`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: ConstraintLetterResidentF})

	err := repo.DeleteResident(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrForeignKeyViolation)
	assert.Equal(t, ConstraintLetterResidentF, ConstraintOf(err))
}

func TestDeleteResident_NotFound(t *testing.T) {
	db, mock, repo := setupMockResidentsDB(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM residents`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteResident(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListResidents_FiltersAndPaging(t *testing.T) {
	db, mock, repo := setupMockResidentsDB(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM residents WHERE \(full_name ILIKE \$1 OR nik ILIKE \$1\) AND status = \$2`).
		WithArgs("%budi%", "present").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`ORDER BY full_name ASC, created_at ASC LIMIT 2 OFFSET 2`).
		WithArgs("%budi%", "present").
		WillReturnRows(sqlmock.NewRows(residentRowColumns).AddRow(
			uuid.NewString(), "3201010101010003", "Budi C", "", nil, "male",
			"", "", "", "", "", "", "", "present", now, now,
		))

	items, total, err := repo.ListResidents(context.Background(), ResidentFilters{Search: "budi", Status: "present"}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Budi C", items[0].FullName)
	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// memberships
// ============================================

func TestUpsertMembership_MovesExistingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresMembershipsRepository(db)

	existingID := uuid.NewString()
	created := time.Now().Add(-time.Hour)
	updated := time.Now()
	mock.ExpectQuery(`ON CONFLICT \(resident_id\) DO UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"membership_id", "created_at", "updated_at", "existed"}).
			AddRow(existingID, created, updated, true))

	m := &domain.Membership{ResidentID: uuid.NewString(), FamilyCardID: uuid.NewString(), Relationship: "Child"}
	existed, err := repo.UpsertMembership(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, existingID, m.MembershipID)
	assert.Equal(t, created, m.CreatedAt)
}

// ============================================
// store / transactions
// ============================================

// ============================================
// users
// ============================================

var userRowColumns = []string{
	"user_id", "display_name", "username", "password_hash", "role", "resident_id", "created_at", "updated_at",
}

func TestGetUserByResident(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUsersRepository(db)

	now := time.Now()
	mock.ExpectQuery(`resident_id::text = \$1`).
		WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
			"u-1", "Budi", "KK-001", []byte("hash"), "guest", "res-1", now, now,
		))

	u, err := repo.GetUserByResident(context.Background(), "res-1")
	require.NoError(t, err)
	assert.Equal(t, "KK-001", u.Username)
	assert.Equal(t, "res-1", u.ResidentID)

	_, err = repo.GetUserByResident(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByUsername_NullResident(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUsersRepository(db)

	now := time.Now()
	mock.ExpectQuery(`username = \$1`).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
			"u-2", "Admin", "admin", []byte("hash"), "admin", nil, now, now,
		))

	u, err := repo.GetUserByUsername(context.Background(), "admin")
	require.NoError(t, err)
	assert.Empty(t, u.ResidentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_StoresResidentID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUsersRepository(db)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "Budi", "KK-001", []byte("hash"), "guest", "res-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintUserResident})

	u := &domain.User{DisplayName: "Budi", Username: "KK-001", PasswordHash: []byte("hash"), Role: "guest", ResidentID: "res-1"}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	assert.NotEmpty(t, u.UserID)

	err = repo.CreateUser(context.Background(), &domain.User{DisplayName: "X", Username: "x", PasswordHash: []byte("h"), Role: "guest", ResidentID: "res-1"})
	assert.Equal(t, ConstraintUserResident, ConstraintOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithinTx_Commit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE residents SET status`).
		WithArgs("r1", "deceased").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = store.WithinTx(context.Background(), func(r Repos) error {
		return r.Residents.UpdateResidentStatus(context.Background(), "r1", "deceased")
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithinTx_RollbackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgresStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO family_cards`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(time.Now(), time.Now()))
	mock.ExpectRollback()

	boom := errors.New("head insert failed")
	err = store.WithinTx(context.Background(), func(r Repos) error {
		if err := r.FamilyCards.CreateFamilyCard(context.Background(), &domain.FamilyCard{CardNumber: "KK-1", HeadName: "A"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_ExecutesEachStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	content := "-- header\nCREATE TABLE a (id int);\n\nCREATE INDEX i ON a (id);\n"
	mock.ExpectExec(`CREATE TABLE a`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX i`).WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := Migrate(context.Background(), db, content)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchema_DeclaresConstraintNames(t *testing.T) {
	schema := Schema()
	for _, name := range []string{
		ConstraintResidentNIK,
		ConstraintFamilyCardNumber,
		ConstraintMembershipResident,
		ConstraintDeathResident,
		ConstraintDepartureResident,
		ConstraintUsername,
		ConstraintUserResident,
		ConstraintMembershipResidentF,
		ConstraintMembershipCardF,
		ConstraintLetterResidentF,
	} {
		assert.Contains(t, schema, name)
	}
	assert.Len(t, splitStatements(schema), 11)
}
