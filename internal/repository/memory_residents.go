package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"sipenduk/internal/domain"
)

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func copyResident(r domain.Resident) domain.Resident {
	if r.BirthDate != nil {
		t := *r.BirthDate
		r.BirthDate = &t
	}
	return r
}

// ---- residents ----

type memResidents struct{ memBase }

func (r *memResidents) GetResident(_ context.Context, residentID string) (*domain.Resident, error) {
	var out *domain.Resident
	err := r.read(func(st *memState) error {
		row, ok := st.residents[residentID]
		if !ok {
			return ErrNotFound
		}
		v := copyResident(row.v)
		out = &v
		return nil
	})
	return out, err
}

func (r *memResidents) GetResidentByNIK(_ context.Context, nik string) (*domain.Resident, error) {
	var out *domain.Resident
	err := r.read(func(st *memState) error {
		if nik == "" {
			return ErrNotFound
		}
		for _, row := range st.residents {
			if row.v.NIK == nik {
				v := copyResident(row.v)
				out = &v
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r *memResidents) ListResidents(_ context.Context, f ResidentFilters, page, size int) ([]*domain.Resident, int, error) {
	var all []domain.Resident
	_ = r.read(func(st *memState) error {
		all = sortedValues(st.residents, func(v domain.Resident) bool {
			if f.Search != "" && !containsFold(v.FullName, f.Search) && !containsFold(v.NIK, f.Search) {
				return false
			}
			if f.Status != "" && v.Status != f.Status {
				return false
			}
			if f.Sex != "" && v.Sex != f.Sex {
				return false
			}
			return f.Hamlet == "" || v.Hamlet == f.Hamlet
		}, func(a, b memRow[domain.Resident]) bool {
			if a.v.FullName != b.v.FullName {
				return a.v.FullName < b.v.FullName
			}
			return a.seq < b.seq
		})
		return nil
	})
	out := []*domain.Resident{}
	for _, v := range paginate(all, page, size) {
		v := copyResident(v)
		out = append(out, &v)
	}
	return out, len(all), nil
}

func nikTaken(st *memState, nik, exceptID string) bool {
	if nik == "" {
		return false
	}
	for id, row := range st.residents {
		if id != exceptID && row.v.NIK == nik {
			return true
		}
	}
	return false
}

func (r *memResidents) CreateResident(_ context.Context, res *domain.Resident) error {
	return r.write(func(st *memState, now time.Time) error {
		if res.ResidentID == "" {
			res.ResidentID = uuid.NewString()
		}
		if _, ok := st.residents[res.ResidentID]; ok {
			return &UniqueViolationError{Constraint: "residents_pkey"}
		}
		if nikTaken(st, res.NIK, "") {
			return &UniqueViolationError{Constraint: ConstraintResidentNIK}
		}
		if res.Status == "" {
			res.Status = domain.ResidentStatusPresent
		}
		res.CreatedAt, res.UpdatedAt = now, now
		st.residents[res.ResidentID] = memRow[domain.Resident]{seq: st.nextSeq(), v: copyResident(*res)}
		return nil
	})
}

func (r *memResidents) UpdateResident(_ context.Context, res *domain.Resident) error {
	return r.write(func(st *memState, now time.Time) error {
		row, ok := st.residents[res.ResidentID]
		if !ok {
			return ErrNotFound
		}
		if nikTaken(st, res.NIK, res.ResidentID) {
			return &UniqueViolationError{Constraint: ConstraintResidentNIK}
		}
		next := copyResident(*res)
		next.Status = row.v.Status
		next.CreatedAt = row.v.CreatedAt
		next.UpdatedAt = now
		res.Status, res.CreatedAt, res.UpdatedAt = next.Status, next.CreatedAt, now
		row.v = next
		st.residents[res.ResidentID] = row
		return nil
	})
}

func (r *memResidents) UpdateResidentStatus(_ context.Context, residentID, status string) error {
	return r.write(func(st *memState, now time.Time) error {
		row, ok := st.residents[residentID]
		if !ok {
			return ErrNotFound
		}
		row.v.Status = status
		row.v.UpdatedAt = now
		st.residents[residentID] = row
		return nil
	})
}

// DeleteResident 与 schema.sql 一致：被成员/事件/证明信引用时拒绝；迁入登记的引用置空
func (r *memResidents) DeleteResident(_ context.Context, residentID string) error {
	return r.write(func(st *memState, now time.Time) error {
		if _, ok := st.residents[residentID]; !ok {
			return ErrNotFound
		}
		for _, row := range st.memberships {
			if row.v.ResidentID == residentID {
				return &ForeignKeyViolationError{Constraint: ConstraintMembershipResidentF}
			}
		}
		for _, row := range st.births {
			if row.v.ResidentID == residentID {
				return &ForeignKeyViolationError{Constraint: ConstraintBirthResidentF}
			}
		}
		for _, row := range st.deaths {
			if row.v.ResidentID == residentID {
				return &ForeignKeyViolationError{Constraint: ConstraintDeathResidentF}
			}
		}
		for _, row := range st.departures {
			if row.v.ResidentID == residentID {
				return &ForeignKeyViolationError{Constraint: ConstraintDepartureResidentF}
			}
		}
		for _, row := range st.letters {
			if row.v.ResidentID == residentID {
				return &ForeignKeyViolationError{Constraint: ConstraintLetterResidentF}
			}
		}
		for id, row := range st.arrivals {
			changed := false
			if row.v.ReporterResidentID == residentID {
				row.v.ReporterResidentID = ""
				changed = true
			}
			if row.v.ResidentID == residentID {
				row.v.ResidentID = ""
				changed = true
			}
			if changed {
				st.arrivals[id] = row
			}
		}
		delete(st.residents, residentID)
		return nil
	})
}

// ---- family cards ----

type memFamilyCards struct{ memBase }

func (r *memFamilyCards) GetFamilyCard(_ context.Context, familyCardID string) (*domain.FamilyCard, error) {
	var out *domain.FamilyCard
	err := r.read(func(st *memState) error {
		row, ok := st.familyCards[familyCardID]
		if !ok {
			return ErrNotFound
		}
		v := row.v
		out = &v
		return nil
	})
	return out, err
}

func (r *memFamilyCards) GetFamilyCardByNumber(_ context.Context, cardNumber string) (*domain.FamilyCard, error) {
	var out *domain.FamilyCard
	err := r.read(func(st *memState) error {
		for _, row := range st.familyCards {
			if row.v.CardNumber == cardNumber {
				v := row.v
				out = &v
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r *memFamilyCards) ListFamilyCards(_ context.Context, search string, page, size int) ([]*domain.FamilyCard, int, error) {
	var all []domain.FamilyCard
	_ = r.read(func(st *memState) error {
		all = sortedValues(st.familyCards, func(v domain.FamilyCard) bool {
			return search == "" || containsFold(v.CardNumber, search) || containsFold(v.HeadName, search)
		}, func(a, b memRow[domain.FamilyCard]) bool {
			return a.v.CardNumber < b.v.CardNumber
		})
		return nil
	})
	out := []*domain.FamilyCard{}
	for _, v := range paginate(all, page, size) {
		v := v
		out = append(out, &v)
	}
	return out, len(all), nil
}

func cardNumberTaken(st *memState, number, exceptID string) bool {
	for id, row := range st.familyCards {
		if id != exceptID && row.v.CardNumber == number {
			return true
		}
	}
	return false
}

func (r *memFamilyCards) CreateFamilyCard(_ context.Context, c *domain.FamilyCard) error {
	return r.write(func(st *memState, now time.Time) error {
		if c.FamilyCardID == "" {
			c.FamilyCardID = uuid.NewString()
		}
		if cardNumberTaken(st, c.CardNumber, "") {
			return &UniqueViolationError{Constraint: ConstraintFamilyCardNumber}
		}
		c.CreatedAt, c.UpdatedAt = now, now
		st.familyCards[c.FamilyCardID] = memRow[domain.FamilyCard]{seq: st.nextSeq(), v: *c}
		return nil
	})
}

func (r *memFamilyCards) UpdateFamilyCard(_ context.Context, c *domain.FamilyCard) error {
	return r.write(func(st *memState, now time.Time) error {
		row, ok := st.familyCards[c.FamilyCardID]
		if !ok {
			return ErrNotFound
		}
		if cardNumberTaken(st, c.CardNumber, c.FamilyCardID) {
			return &UniqueViolationError{Constraint: ConstraintFamilyCardNumber}
		}
		c.CreatedAt, c.UpdatedAt = row.v.CreatedAt, now
		row.v = *c
		st.familyCards[c.FamilyCardID] = row
		return nil
	})
}

func (r *memFamilyCards) DeleteFamilyCard(_ context.Context, familyCardID string) error {
	return r.write(func(st *memState, now time.Time) error {
		if _, ok := st.familyCards[familyCardID]; !ok {
			return ErrNotFound
		}
		for _, row := range st.memberships {
			if row.v.FamilyCardID == familyCardID {
				return &ForeignKeyViolationError{Constraint: ConstraintMembershipCardF}
			}
		}
		for _, row := range st.births {
			if row.v.FamilyCardID == familyCardID {
				return &ForeignKeyViolationError{Constraint: ConstraintBirthCardF}
			}
		}
		delete(st.familyCards, familyCardID)
		return nil
	})
}

// ---- memberships ----

type memMemberships struct{ memBase }

func (r *memMemberships) GetMembership(_ context.Context, membershipID string) (*domain.Membership, error) {
	var out *domain.Membership
	err := r.read(func(st *memState) error {
		row, ok := st.memberships[membershipID]
		if !ok {
			return ErrNotFound
		}
		v := row.v
		out = &v
		return nil
	})
	return out, err
}

func findMembershipByResident(st *memState, residentID string) (memRow[domain.Membership], bool) {
	for _, row := range st.memberships {
		if row.v.ResidentID == residentID {
			return row, true
		}
	}
	return memRow[domain.Membership]{}, false
}

func (r *memMemberships) GetMembershipByResident(_ context.Context, residentID string) (*domain.Membership, error) {
	var out *domain.Membership
	err := r.read(func(st *memState) error {
		row, ok := findMembershipByResident(st, residentID)
		if !ok {
			return ErrNotFound
		}
		v := row.v
		out = &v
		return nil
	})
	return out, err
}

func membershipsOf(st *memState, familyCardID string) []domain.Membership {
	return sortedValues(st.memberships, func(v domain.Membership) bool {
		return v.FamilyCardID == familyCardID
	}, bySeq[domain.Membership])
}

func (r *memMemberships) ListMemberships(_ context.Context, familyCardID string) ([]*domain.Membership, error) {
	out := []*domain.Membership{}
	_ = r.read(func(st *memState) error {
		for _, v := range membershipsOf(st, familyCardID) {
			v := v
			out = append(out, &v)
		}
		return nil
	})
	return out, nil
}

func (r *memMemberships) ListMemberDetails(_ context.Context, familyCardID string) ([]*domain.MemberDetail, error) {
	out := []*domain.MemberDetail{}
	_ = r.read(func(st *memState) error {
		for _, m := range membershipsOf(st, familyCardID) {
			res, ok := st.residents[m.ResidentID]
			if !ok {
				continue
			}
			out = append(out, &domain.MemberDetail{Membership: m, Resident: copyResident(res.v)})
		}
		return nil
	})
	return out, nil
}

func (r *memMemberships) CountMemberships(_ context.Context, familyCardID string) (int, error) {
	n := 0
	_ = r.read(func(st *memState) error {
		for _, row := range st.memberships {
			if row.v.FamilyCardID == familyCardID {
				n++
			}
		}
		return nil
	})
	return n, nil
}

func (r *memMemberships) UpsertMembership(_ context.Context, m *domain.Membership) (bool, error) {
	existed := false
	err := r.write(func(st *memState, now time.Time) error {
		if _, ok := st.residents[m.ResidentID]; !ok {
			return &ForeignKeyViolationError{Constraint: ConstraintMembershipResidentF}
		}
		if _, ok := st.familyCards[m.FamilyCardID]; !ok {
			return &ForeignKeyViolationError{Constraint: ConstraintMembershipCardF}
		}
		if row, ok := findMembershipByResident(st, m.ResidentID); ok {
			existed = true
			row.v.FamilyCardID = m.FamilyCardID
			row.v.Relationship = m.Relationship
			row.v.UpdatedAt = now
			st.memberships[row.v.MembershipID] = row
			*m = row.v
			return nil
		}
		if m.MembershipID == "" {
			m.MembershipID = uuid.NewString()
		}
		m.CreatedAt, m.UpdatedAt = now, now
		st.memberships[m.MembershipID] = memRow[domain.Membership]{seq: st.nextSeq(), v: *m}
		return nil
	})
	return existed, err
}

func (r *memMemberships) DeleteMembership(_ context.Context, membershipID string) error {
	return r.write(func(st *memState, now time.Time) error {
		if _, ok := st.memberships[membershipID]; !ok {
			return ErrNotFound
		}
		delete(st.memberships, membershipID)
		return nil
	})
}
