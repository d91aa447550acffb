package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sipenduk/internal/domain"
)

// memGet 按主键读取一行副本
func memGet[T any](b memBase, table func(st *memState) map[string]memRow[T], id string) (*T, error) {
	var out *T
	err := b.read(func(st *memState) error {
		row, ok := table(st)[id]
		if !ok {
			return ErrNotFound
		}
		v := row.v
		out = &v
		return nil
	})
	return out, err
}

// memList 过滤、排序并分页
func memList[T any](b memBase, table func(st *memState) map[string]memRow[T], keep func(T) bool, less func(a, c memRow[T]) bool, page, size int) ([]*T, int, error) {
	var all []T
	_ = b.read(func(st *memState) error {
		all = sortedValues(table(st), keep, less)
		return nil
	})
	out := []*T{}
	for _, v := range paginate(all, page, size) {
		v := v
		out = append(out, &v)
	}
	return out, len(all), nil
}

func memDelete[T any](b memBase, table func(st *memState) map[string]memRow[T], id string) error {
	return b.write(func(st *memState, _ time.Time) error {
		m := table(st)
		if _, ok := m[id]; !ok {
			return ErrNotFound
		}
		delete(m, id)
		return nil
	})
}

func residentExists(st *memState, residentID string) bool {
	_, ok := st.residents[residentID]
	return ok
}

// ---- births ----

type memBirths struct{ memBase }

func birthsTable(st *memState) map[string]memRow[domain.BirthEvent] { return st.births }

func (r *memBirths) GetBirth(_ context.Context, id string) (*domain.BirthEvent, error) {
	return memGet(r.memBase, birthsTable, id)
}

func (r *memBirths) ListBirths(_ context.Context, familyCardID string, page, size int) ([]*domain.BirthEvent, int, error) {
	return memList(r.memBase, birthsTable, func(v domain.BirthEvent) bool {
		return familyCardID == "" || v.FamilyCardID == familyCardID
	}, func(a, b memRow[domain.BirthEvent]) bool {
		if !a.v.BirthDate.Equal(b.v.BirthDate) {
			return a.v.BirthDate.After(b.v.BirthDate)
		}
		return a.seq > b.seq
	}, page, size)
}

func (r *memBirths) CreateBirth(_ context.Context, e *domain.BirthEvent) error {
	return r.write(func(st *memState, now time.Time) error {
		if !residentExists(st, e.ResidentID) {
			return &ForeignKeyViolationError{Constraint: ConstraintBirthResidentF}
		}
		if _, ok := st.familyCards[e.FamilyCardID]; !ok {
			return &ForeignKeyViolationError{Constraint: ConstraintBirthCardF}
		}
		if e.BirthEventID == "" {
			e.BirthEventID = uuid.NewString()
		}
		e.CreatedAt, e.UpdatedAt = now, now
		st.births[e.BirthEventID] = memRow[domain.BirthEvent]{seq: st.nextSeq(), v: *e}
		return nil
	})
}

func (r *memBirths) UpdateBirth(_ context.Context, e *domain.BirthEvent) error {
	return r.write(func(st *memState, now time.Time) error {
		row, ok := st.births[e.BirthEventID]
		if !ok {
			return ErrNotFound
		}
		if _, ok := st.familyCards[e.FamilyCardID]; !ok {
			return &ForeignKeyViolationError{Constraint: ConstraintBirthCardF}
		}
		e.ResidentID = row.v.ResidentID
		e.CreatedAt, e.UpdatedAt = row.v.CreatedAt, now
		row.v = *e
		st.births[e.BirthEventID] = row
		return nil
	})
}

func (r *memBirths) DeleteBirth(_ context.Context, id string) error {
	return memDelete(r.memBase, birthsTable, id)
}

// ---- deaths ----

type memDeaths struct{ memBase }

func deathsTable(st *memState) map[string]memRow[domain.DeathEvent] { return st.deaths }

func (r *memDeaths) GetDeath(_ context.Context, id string) (*domain.DeathEvent, error) {
	return memGet(r.memBase, deathsTable, id)
}

func (r *memDeaths) GetDeathByResident(_ context.Context, residentID string) (*domain.DeathEvent, error) {
	var out *domain.DeathEvent
	err := r.read(func(st *memState) error {
		for _, row := range st.deaths {
			if row.v.ResidentID == residentID {
				v := row.v
				out = &v
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r *memDeaths) ListDeaths(_ context.Context, page, size int) ([]*domain.DeathEvent, int, error) {
	return memList(r.memBase, deathsTable, nil, func(a, b memRow[domain.DeathEvent]) bool {
		if !a.v.DateOfDeath.Equal(b.v.DateOfDeath) {
			return a.v.DateOfDeath.After(b.v.DateOfDeath)
		}
		return a.seq > b.seq
	}, page, size)
}

func deathResidentTaken(st *memState, residentID, exceptID string) bool {
	for id, row := range st.deaths {
		if id != exceptID && row.v.ResidentID == residentID {
			return true
		}
	}
	return false
}

func (r *memDeaths) CreateDeath(_ context.Context, e *domain.DeathEvent) error {
	return r.write(func(st *memState, now time.Time) error {
		if deathResidentTaken(st, e.ResidentID, "") {
			return &UniqueViolationError{Constraint: ConstraintDeathResident}
		}
		if !residentExists(st, e.ResidentID) {
			return &ForeignKeyViolationError{Constraint: ConstraintDeathResidentF}
		}
		if e.DeathEventID == "" {
			e.DeathEventID = uuid.NewString()
		}
		e.CreatedAt, e.UpdatedAt = now, now
		st.deaths[e.DeathEventID] = memRow[domain.DeathEvent]{seq: st.nextSeq(), v: *e}
		return nil
	})
}

func (r *memDeaths) UpdateDeath(_ context.Context, e *domain.DeathEvent) error {
	return r.write(func(st *memState, now time.Time) error {
		row, ok := st.deaths[e.DeathEventID]
		if !ok {
			return ErrNotFound
		}
		if deathResidentTaken(st, e.ResidentID, e.DeathEventID) {
			return &UniqueViolationError{Constraint: ConstraintDeathResident}
		}
		if !residentExists(st, e.ResidentID) {
			return &ForeignKeyViolationError{Constraint: ConstraintDeathResidentF}
		}
		e.CreatedAt, e.UpdatedAt = row.v.CreatedAt, now
		row.v = *e
		st.deaths[e.DeathEventID] = row
		return nil
	})
}

func (r *memDeaths) DeleteDeath(_ context.Context, id string) error {
	return memDelete(r.memBase, deathsTable, id)
}

// ---- arrivals ----

type memArrivals struct{ memBase }

func arrivalsTable(st *memState) map[string]memRow[domain.ArrivalEvent] { return st.arrivals }

func (r *memArrivals) GetArrival(_ context.Context, id string) (*domain.ArrivalEvent, error) {
	return memGet(r.memBase, arrivalsTable, id)
}

func (r *memArrivals) ListArrivals(_ context.Context, page, size int) ([]*domain.ArrivalEvent, int, error) {
	return memList(r.memBase, arrivalsTable, nil, func(a, b memRow[domain.ArrivalEvent]) bool {
		if !a.v.ArrivalDate.Equal(b.v.ArrivalDate) {
			return a.v.ArrivalDate.After(b.v.ArrivalDate)
		}
		return a.seq > b.seq
	}, page, size)
}

func checkArrivalRefs(st *memState, e *domain.ArrivalEvent) error {
	if e.ReporterResidentID != "" && !residentExists(st, e.ReporterResidentID) {
		return &ForeignKeyViolationError{Constraint: ConstraintArrivalReporterF}
	}
	if e.ResidentID != "" && !residentExists(st, e.ResidentID) {
		return &ForeignKeyViolationError{Constraint: ConstraintArrivalResidentF}
	}
	return nil
}

func (r *memArrivals) CreateArrival(_ context.Context, e *domain.ArrivalEvent) error {
	return r.write(func(st *memState, now time.Time) error {
		if err := checkArrivalRefs(st, e); err != nil {
			return err
		}
		if e.ArrivalEventID == "" {
			e.ArrivalEventID = uuid.NewString()
		}
		e.CreatedAt, e.UpdatedAt = now, now
		st.arrivals[e.ArrivalEventID] = memRow[domain.ArrivalEvent]{seq: st.nextSeq(), v: *e}
		return nil
	})
}

func (r *memArrivals) UpdateArrival(_ context.Context, e *domain.ArrivalEvent) error {
	return r.write(func(st *memState, now time.Time) error {
		row, ok := st.arrivals[e.ArrivalEventID]
		if !ok {
			return ErrNotFound
		}
		if err := checkArrivalRefs(st, e); err != nil {
			return err
		}
		e.CreatedAt, e.UpdatedAt = row.v.CreatedAt, now
		row.v = *e
		st.arrivals[e.ArrivalEventID] = row
		return nil
	})
}

func (r *memArrivals) DeleteArrival(_ context.Context, id string) error {
	return memDelete(r.memBase, arrivalsTable, id)
}

// ---- departures ----

type memDepartures struct{ memBase }

func departuresTable(st *memState) map[string]memRow[domain.DepartureEvent] { return st.departures }

func (r *memDepartures) GetDeparture(_ context.Context, id string) (*domain.DepartureEvent, error) {
	return memGet(r.memBase, departuresTable, id)
}

func (r *memDepartures) GetDepartureByResident(_ context.Context, residentID string) (*domain.DepartureEvent, error) {
	var out *domain.DepartureEvent
	err := r.read(func(st *memState) error {
		for _, row := range st.departures {
			if row.v.ResidentID == residentID {
				v := row.v
				out = &v
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r *memDepartures) ListDepartures(_ context.Context, page, size int) ([]*domain.DepartureEvent, int, error) {
	return memList(r.memBase, departuresTable, nil, func(a, b memRow[domain.DepartureEvent]) bool {
		if !a.v.DepartureDate.Equal(b.v.DepartureDate) {
			return a.v.DepartureDate.After(b.v.DepartureDate)
		}
		return a.seq > b.seq
	}, page, size)
}

func departureResidentTaken(st *memState, residentID, exceptID string) bool {
	for id, row := range st.departures {
		if id != exceptID && row.v.ResidentID == residentID {
			return true
		}
	}
	return false
}

func (r *memDepartures) CreateDeparture(_ context.Context, e *domain.DepartureEvent) error {
	return r.write(func(st *memState, now time.Time) error {
		if departureResidentTaken(st, e.ResidentID, "") {
			return &UniqueViolationError{Constraint: ConstraintDepartureResident}
		}
		if !residentExists(st, e.ResidentID) {
			return &ForeignKeyViolationError{Constraint: ConstraintDepartureResidentF}
		}
		if e.DepartureEventID == "" {
			e.DepartureEventID = uuid.NewString()
		}
		e.CreatedAt, e.UpdatedAt = now, now
		st.departures[e.DepartureEventID] = memRow[domain.DepartureEvent]{seq: st.nextSeq(), v: *e}
		return nil
	})
}

func (r *memDepartures) UpdateDeparture(_ context.Context, e *domain.DepartureEvent) error {
	return r.write(func(st *memState, now time.Time) error {
		row, ok := st.departures[e.DepartureEventID]
		if !ok {
			return ErrNotFound
		}
		if departureResidentTaken(st, e.ResidentID, e.DepartureEventID) {
			return &UniqueViolationError{Constraint: ConstraintDepartureResident}
		}
		if !residentExists(st, e.ResidentID) {
			return &ForeignKeyViolationError{Constraint: ConstraintDepartureResidentF}
		}
		e.CreatedAt, e.UpdatedAt = row.v.CreatedAt, now
		row.v = *e
		st.departures[e.DepartureEventID] = row
		return nil
	})
}

func (r *memDepartures) DeleteDeparture(_ context.Context, id string) error {
	return memDelete(r.memBase, departuresTable, id)
}
