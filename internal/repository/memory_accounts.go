package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sipenduk/internal/domain"
)

// ---- users ----

type memUsers struct{ memBase }

func usersTable(st *memState) map[string]memRow[domain.User] { return st.users }

func copyUser(u domain.User) domain.User {
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return u
}

func (r *memUsers) GetUser(_ context.Context, userID string) (*domain.User, error) {
	u, err := memGet(r.memBase, usersTable, userID)
	if err != nil {
		return nil, err
	}
	v := copyUser(*u)
	return &v, nil
}

func (r *memUsers) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	var out *domain.User
	err := r.read(func(st *memState) error {
		for _, row := range st.users {
			if row.v.Username == username {
				v := copyUser(row.v)
				out = &v
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r *memUsers) GetUserByResident(_ context.Context, residentID string) (*domain.User, error) {
	var out *domain.User
	err := r.read(func(st *memState) error {
		if residentID == "" {
			return ErrNotFound
		}
		for _, row := range st.users {
			if row.v.ResidentID == residentID {
				v := copyUser(row.v)
				out = &v
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r *memUsers) ListUsers(_ context.Context, role string, page, size int) ([]*domain.User, int, error) {
	return memList(r.memBase, usersTable, func(v domain.User) bool {
		return role == "" || v.Role == role
	}, func(a, b memRow[domain.User]) bool {
		return a.v.Username < b.v.Username
	}, page, size)
}

func (r *memUsers) CountUsersByRole(_ context.Context, role string) (int, error) {
	n := 0
	_ = r.read(func(st *memState) error {
		for _, row := range st.users {
			if row.v.Role == role {
				n++
			}
		}
		return nil
	})
	return n, nil
}

func usernameTaken(st *memState, username, exceptID string) bool {
	for id, row := range st.users {
		if id != exceptID && row.v.Username == username {
			return true
		}
	}
	return false
}

func (r *memUsers) CreateUser(_ context.Context, u *domain.User) error {
	return r.write(func(st *memState, now time.Time) error {
		if usernameTaken(st, u.Username, "") {
			return &UniqueViolationError{Constraint: ConstraintUsername}
		}
		if u.ResidentID != "" {
			for _, row := range st.users {
				if row.v.ResidentID == u.ResidentID {
					return &UniqueViolationError{Constraint: ConstraintUserResident}
				}
			}
		}
		if u.UserID == "" {
			u.UserID = uuid.NewString()
		}
		u.CreatedAt, u.UpdatedAt = now, now
		st.users[u.UserID] = memRow[domain.User]{seq: st.nextSeq(), v: copyUser(*u)}
		return nil
	})
}

func (r *memUsers) UpdateUser(_ context.Context, u *domain.User) error {
	return r.write(func(st *memState, now time.Time) error {
		row, ok := st.users[u.UserID]
		if !ok {
			return ErrNotFound
		}
		if usernameTaken(st, u.Username, u.UserID) {
			return &UniqueViolationError{Constraint: ConstraintUsername}
		}
		row.v.DisplayName = u.DisplayName
		row.v.Username = u.Username
		row.v.Role = u.Role
		row.v.UpdatedAt = now
		u.CreatedAt, u.UpdatedAt = row.v.CreatedAt, now
		st.users[u.UserID] = row
		return nil
	})
}

func (r *memUsers) UpdatePassword(_ context.Context, userID string, passwordHash []byte) error {
	return r.write(func(st *memState, now time.Time) error {
		row, ok := st.users[userID]
		if !ok {
			return ErrNotFound
		}
		row.v.PasswordHash = append([]byte(nil), passwordHash...)
		row.v.UpdatedAt = now
		st.users[userID] = row
		return nil
	})
}

func (r *memUsers) DeleteUser(_ context.Context, userID string) error {
	return memDelete(r.memBase, usersTable, userID)
}

// ---- letters ----

type memLetters struct{ memBase }

func lettersTable(st *memState) map[string]memRow[domain.Letter] { return st.letters }

func (r *memLetters) GetLetter(_ context.Context, id string) (*domain.Letter, error) {
	return memGet(r.memBase, lettersTable, id)
}

func (r *memLetters) ListLetters(_ context.Context, f LetterFilters, page, size int) ([]*domain.Letter, int, error) {
	return memList(r.memBase, lettersTable, func(v domain.Letter) bool {
		if f.ResidentID != "" && v.ResidentID != f.ResidentID {
			return false
		}
		if f.Status != "" && v.Status != f.Status {
			return false
		}
		return f.LetterType == "" || v.LetterType == f.LetterType
	}, bySeqDesc[domain.Letter], page, size)
}

func (r *memLetters) CreateLetter(_ context.Context, l *domain.Letter) error {
	return r.write(func(st *memState, now time.Time) error {
		if !residentExists(st, l.ResidentID) {
			return &ForeignKeyViolationError{Constraint: ConstraintLetterResidentF}
		}
		if l.LetterID == "" {
			l.LetterID = uuid.NewString()
		}
		l.CreatedAt, l.UpdatedAt = now, now
		st.letters[l.LetterID] = memRow[domain.Letter]{seq: st.nextSeq(), v: *l}
		return nil
	})
}

func (r *memLetters) UpdateLetter(_ context.Context, l *domain.Letter) error {
	return r.write(func(st *memState, now time.Time) error {
		row, ok := st.letters[l.LetterID]
		if !ok {
			return ErrNotFound
		}
		l.ResidentID = row.v.ResidentID
		l.CreatedAt, l.UpdatedAt = row.v.CreatedAt, now
		row.v = *l
		st.letters[l.LetterID] = row
		return nil
	})
}

func (r *memLetters) DeleteLetter(_ context.Context, id string) error {
	return memDelete(r.memBase, lettersTable, id)
}

// ---- announcements ----

type memAnnouncements struct{ memBase }

func announcementsTable(st *memState) map[string]memRow[domain.Announcement] { return st.announcements }

func (r *memAnnouncements) GetAnnouncement(_ context.Context, id string) (*domain.Announcement, error) {
	return memGet(r.memBase, announcementsTable, id)
}

func (r *memAnnouncements) ListAnnouncements(_ context.Context, page, size int) ([]*domain.Announcement, int, error) {
	return memList(r.memBase, announcementsTable, nil, bySeqDesc[domain.Announcement], page, size)
}

func (r *memAnnouncements) CreateAnnouncement(_ context.Context, a *domain.Announcement) error {
	return r.write(func(st *memState, now time.Time) error {
		if a.AnnouncementID == "" {
			a.AnnouncementID = uuid.NewString()
		}
		a.CreatedAt, a.UpdatedAt = now, now
		st.announcements[a.AnnouncementID] = memRow[domain.Announcement]{seq: st.nextSeq(), v: *a}
		return nil
	})
}

func (r *memAnnouncements) UpdateAnnouncement(_ context.Context, a *domain.Announcement) error {
	return r.write(func(st *memState, now time.Time) error {
		row, ok := st.announcements[a.AnnouncementID]
		if !ok {
			return ErrNotFound
		}
		a.CreatedAt, a.UpdatedAt = row.v.CreatedAt, now
		row.v = *a
		st.announcements[a.AnnouncementID] = row
		return nil
	})
}

func (r *memAnnouncements) DeleteAnnouncement(_ context.Context, id string) error {
	return memDelete(r.memBase, announcementsTable, id)
}
