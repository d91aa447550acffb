package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sipenduk/internal/domain"
	"sipenduk/internal/repository"
	"sipenduk/internal/store"
)

// 旧版 KV 记录的实体前缀
const (
	LegacyResidents     = "penduduk"
	LegacyFamilyCards   = "kk"
	LegacyMemberships   = "anggota_kk"
	LegacyDeaths        = "kematian"
	LegacyDepartures    = "pindah"
	LegacyUsers         = "user"
	LegacyAnnouncements = "pengumuman"
)

// ReconcileService 旧版 KV 数据导入与居民状态修复
type ReconcileService interface {
	ImportLegacy(ctx context.Context, opts ImportOptions) (*ImportReport, error)
	RepairStatuses(ctx context.Context, dryRun bool) ([]StatusCorrection, error)
}

type reconcileService struct {
	store  repository.Store
	kv     store.KV
	logger *zap.Logger
}

func NewReconcileService(st repository.Store, kv store.KV, logger *zap.Logger) ReconcileService {
	return &reconcileService{store: st, kv: kv, logger: logger}
}

type ImportOptions struct {
	DryRun bool
}

// EntityReport 单个实体前缀的导入统计
type EntityReport struct {
	Scanned  int      `json:"scanned"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

type ImportReport struct {
	DryRun      bool                     `json:"dry_run"`
	Entities    map[string]*EntityReport `json:"entities"`
	Corrections []StatusCorrection       `json:"corrections"`
}

func (r *ImportReport) entity(name string) *EntityReport {
	e, ok := r.Entities[name]
	if !ok {
		e = &EntityReport{}
		r.Entities[name] = e
	}
	return e
}

// StatusCorrection 一条状态修正
type StatusCorrection struct {
	ResidentID string `json:"resident_id"`
	NIK        string `json:"nik"`
	FullName   string `json:"full_name"`
	From       string `json:"from"`
	To         string `json:"to"`
}

// errDryRun 让 WithinTx 回滚整个导入
var errDryRun = errors.New("dry run")

// legacyID 旧版 id 可能是数字也可能是字符串
type legacyID string

func (id *legacyID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = legacyID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = legacyID(n.String())
	return nil
}

type legacyResident struct {
	ID               legacyID `json:"id"`
	NIK              string   `json:"nik"`
	Nama             string   `json:"nama"`
	TempatLahir      string   `json:"tempat_lahir"`
	TanggalLahir     string   `json:"tanggal_lahir"`
	JenisKelamin     string   `json:"jenis_kelamin"`
	Alamat           string   `json:"alamat"`
	RT               string   `json:"rt"`
	RW               string   `json:"rw"`
	Dusun            string   `json:"dusun"`
	Agama            string   `json:"agama"`
	StatusPerkawinan string   `json:"status_perkawinan"`
	Pekerjaan        string   `json:"pekerjaan"`
}

type legacyFamilyCard struct {
	ID       legacyID `json:"id"`
	NoKK     string   `json:"no_kk"`
	KepalaKK string   `json:"kepala_keluarga"`
	Alamat   string   `json:"alamat"`
	RT       string   `json:"rt"`
	RW       string   `json:"rw"`
	Dusun    string   `json:"dusun"`
}

type legacyMembership struct {
	ID         legacyID `json:"id"`
	KKID       legacyID `json:"kk_id"`
	PendudukID legacyID `json:"penduduk_id"`
	Hubungan   string   `json:"hubungan"`
}

type legacyDeath struct {
	ID         legacyID `json:"id"`
	PendudukID legacyID `json:"penduduk_id"`
	Tanggal    string   `json:"tanggal"`
	Sebab      string   `json:"sebab"`
	Tempat     string   `json:"tempat"`
}

type legacyDeparture struct {
	ID         legacyID `json:"id"`
	PendudukID legacyID `json:"penduduk_id"`
	Tanggal    string   `json:"tanggal"`
	Alasan     string   `json:"alasan"`
	Tujuan     string   `json:"tujuan"`
}

type legacyUser struct {
	ID       legacyID `json:"id"`
	Nama     string   `json:"nama"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Role     string   `json:"role"`
}

type legacyAnnouncement struct {
	ID      legacyID `json:"id"`
	Judul   string   `json:"judul"`
	Isi     string   `json:"isi"`
	Penulis string   `json:"penulis"`
}

// legacySex L/P、Laki-laki/Perempuan、male/female
func legacySex(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "p", "perempuan", "wanita", "female", "f":
		return domain.SexFemale
	default:
		return domain.SexMale
	}
}

// legacyRelationship Suami/Istri/Anak 转为内置角色，其它原样保留
func legacyRelationship(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "suami", "kepala keluarga", "husband":
		return domain.RelationshipHusband
	case "istri", "isteri", "wife":
		return domain.RelationshipWife
	case "anak", "child":
		return domain.RelationshipChild
	}
	return strings.TrimSpace(v)
}

func legacyDate(v string) time.Time {
	for _, layout := range []string{dateLayout, "02-01-2006", "02/01/2006", time.RFC3339} {
		if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
			return t
		}
	}
	return time.Time{}
}

// importer 一次导入的状态：旧 id -> 新 UUID
type importer struct {
	ctx       context.Context
	kv        store.KV
	r         repository.Repos
	report    *ImportReport
	residents map[legacyID]string
	cards     map[legacyID]string
	logger    *zap.Logger
}

// ImportLegacy 按依赖顺序导入；自然键（NIK、no_kk、username）已存在的记录计为 skipped。
// 整个导入在一个事务内，DryRun 时最后回滚。
func (s *reconcileService) ImportLegacy(ctx context.Context, opts ImportOptions) (*ImportReport, error) {
	report := &ImportReport{DryRun: opts.DryRun, Entities: map[string]*EntityReport{}}

	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		im := &importer{
			ctx:       ctx,
			kv:        s.kv,
			r:         r,
			report:    report,
			residents: map[legacyID]string{},
			cards:     map[legacyID]string{},
			logger:    s.logger,
		}
		steps := []struct {
			entity string
			fn     func(store.Record) (bool, error)
		}{
			{LegacyResidents, im.resident},
			{LegacyFamilyCards, im.familyCard},
			{LegacyMemberships, im.membership},
			{LegacyDeaths, im.death},
			{LegacyDepartures, im.departure},
			{LegacyUsers, im.user},
			{LegacyAnnouncements, im.announcement},
		}
		for _, step := range steps {
			if err := im.run(step.entity, step.fn); err != nil {
				return err
			}
		}

		corrections, err := repairStatuses(ctx, r, false)
		if err != nil {
			return err
		}
		report.Corrections = corrections

		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, err
	}

	for name, e := range report.Entities {
		s.logger.Info("Legacy import",
			zap.String("entity", name),
			zap.Int("scanned", e.Scanned),
			zap.Int("imported", e.Imported),
			zap.Int("skipped", e.Skipped),
			zap.Int("failed", e.Failed),
			zap.Bool("dry_run", opts.DryRun),
		)
	}
	return report, nil
}

// run 单条记录解码失败计为 failed，不中断导入；存储错误中断并回滚
func (im *importer) run(entity string, fn func(store.Record) (bool, error)) error {
	records, err := store.ScanPrefix(im.ctx, im.kv, entity)
	if err != nil {
		return err
	}
	rep := im.report.entity(entity)
	for _, rec := range records {
		rep.Scanned++
		imported, err := fn(rec)
		var skip *skipError
		switch {
		case errors.As(err, &skip):
			rep.Failed++
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %s", rec.Key, skip.reason))
		case err != nil:
			return fmt.Errorf("import %s: %w", rec.Key, err)
		case imported:
			rep.Imported++
		default:
			rep.Skipped++
		}
	}
	return nil
}

// skipError 记录本身有问题（格式错误、引用缺失），跳过该条
type skipError struct{ reason string }

func (e *skipError) Error() string { return e.reason }

func skipf(format string, args ...any) error {
	return &skipError{reason: fmt.Sprintf(format, args...)}
}

func decodeRecord(rec store.Record, out any) error {
	if err := json.Unmarshal(rec.Value, out); err != nil {
		return skipf("invalid json: %v", err)
	}
	return nil
}

func (im *importer) resident(rec store.Record) (bool, error) {
	var in legacyResident
	if err := decodeRecord(rec, &in); err != nil {
		return false, err
	}
	id := in.ID
	if id == "" {
		id = legacyID(rec.ID)
	}
	nik := strings.TrimSpace(in.NIK)
	if strings.TrimSpace(in.Nama) == "" {
		return false, skipf("nama kosong")
	}
	if nik != "" {
		existing, err := im.r.Residents.GetResidentByNIK(im.ctx, nik)
		if err == nil {
			im.residents[id] = existing.ResidentID
			return false, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return false, err
		}
	}

	res := &domain.Resident{
		NIK:           nik,
		FullName:      strings.TrimSpace(in.Nama),
		BirthPlace:    strings.TrimSpace(in.TempatLahir),
		Sex:           legacySex(in.JenisKelamin),
		Address:       strings.TrimSpace(in.Alamat),
		RT:            strings.TrimSpace(in.RT),
		RW:            strings.TrimSpace(in.RW),
		Hamlet:        strings.TrimSpace(in.Dusun),
		Religion:      strings.TrimSpace(in.Agama),
		MaritalStatus: strings.TrimSpace(in.StatusPerkawinan),
		Occupation:    strings.TrimSpace(in.Pekerjaan),
		Status:        domain.ResidentStatusPresent,
	}
	if t := legacyDate(in.TanggalLahir); !t.IsZero() {
		res.BirthDate = &t
	}
	if err := im.r.Residents.CreateResident(im.ctx, res); err != nil {
		return false, err
	}
	im.residents[id] = res.ResidentID
	return true, nil
}

func (im *importer) familyCard(rec store.Record) (bool, error) {
	var in legacyFamilyCard
	if err := decodeRecord(rec, &in); err != nil {
		return false, err
	}
	id := in.ID
	if id == "" {
		id = legacyID(rec.ID)
	}
	number := strings.TrimSpace(in.NoKK)
	if number == "" {
		return false, skipf("no_kk kosong")
	}
	existing, err := im.r.FamilyCards.GetFamilyCardByNumber(im.ctx, number)
	if err == nil {
		im.cards[id] = existing.FamilyCardID
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	card := &domain.FamilyCard{
		CardNumber: number,
		HeadName:   strings.TrimSpace(in.KepalaKK),
		Address:    strings.TrimSpace(in.Alamat),
		RT:         strings.TrimSpace(in.RT),
		RW:         strings.TrimSpace(in.RW),
		Hamlet:     strings.TrimSpace(in.Dusun),
	}
	if err := im.r.FamilyCards.CreateFamilyCard(im.ctx, card); err != nil {
		return false, err
	}
	im.cards[id] = card.FamilyCardID
	return true, nil
}

func (im *importer) membership(rec store.Record) (bool, error) {
	var in legacyMembership
	if err := decodeRecord(rec, &in); err != nil {
		return false, err
	}
	cardID, ok := im.cards[in.KKID]
	if !ok {
		return false, skipf("kk %q tidak ditemukan", in.KKID)
	}
	residentID, ok := im.residents[in.PendudukID]
	if !ok {
		return false, skipf("penduduk %q tidak ditemukan", in.PendudukID)
	}
	m := &domain.Membership{
		ResidentID:   residentID,
		FamilyCardID: cardID,
		Relationship: legacyRelationship(in.Hubungan),
	}
	existed, err := im.r.Memberships.UpsertMembership(im.ctx, m)
	if err != nil {
		return false, err
	}
	return !existed, nil
}

func (im *importer) death(rec store.Record) (bool, error) {
	var in legacyDeath
	if err := decodeRecord(rec, &in); err != nil {
		return false, err
	}
	residentID, ok := im.residents[in.PendudukID]
	if !ok {
		return false, skipf("penduduk %q tidak ditemukan", in.PendudukID)
	}
	if _, err := im.r.Deaths.GetDeathByResident(im.ctx, residentID); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	e := &domain.DeathEvent{
		ResidentID:  residentID,
		DateOfDeath: legacyDate(in.Tanggal),
		Cause:       strings.TrimSpace(in.Sebab),
		Place:       strings.TrimSpace(in.Tempat),
	}
	if err := im.r.Deaths.CreateDeath(im.ctx, e); err != nil {
		return false, err
	}
	return true, nil
}

func (im *importer) departure(rec store.Record) (bool, error) {
	var in legacyDeparture
	if err := decodeRecord(rec, &in); err != nil {
		return false, err
	}
	residentID, ok := im.residents[in.PendudukID]
	if !ok {
		return false, skipf("penduduk %q tidak ditemukan", in.PendudukID)
	}
	if _, err := im.r.Departures.GetDepartureByResident(im.ctx, residentID); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	e := &domain.DepartureEvent{
		ResidentID:    residentID,
		DepartureDate: legacyDate(in.Tanggal),
		Reason:        strings.TrimSpace(in.Alasan),
		Destination:   strings.TrimSpace(in.Tujuan),
	}
	if err := im.r.Departures.CreateDeparture(im.ctx, e); err != nil {
		return false, err
	}
	return true, nil
}

// user 旧版密码为明文，导入时做 bcrypt；缺失密码时生成随机密码（不回显，需管理员重置）
func (im *importer) user(rec store.Record) (bool, error) {
	var in legacyUser
	if err := decodeRecord(rec, &in); err != nil {
		return false, err
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return false, skipf("username kosong")
	}
	if _, err := im.r.Users.GetUserByUsername(im.ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	password := in.Password
	if password == "" {
		p, err := GeneratePassword()
		if err != nil {
			return false, err
		}
		password = p
	}
	hash, err := hashPassword(password)
	if err != nil {
		return false, err
	}
	role := domain.RoleGuest
	if strings.EqualFold(strings.TrimSpace(in.Role), domain.RoleAdmin) {
		role = domain.RoleAdmin
	}
	name := strings.TrimSpace(in.Nama)
	if name == "" {
		name = username
	}
	u := &domain.User{DisplayName: name, Username: username, PasswordHash: hash, Role: role}
	// 已导入的居民按 NIK 关联；居民在账号之后导入时保持未关联，按 username=NIK 查找
	if role == domain.RoleGuest {
		if res, err := im.r.Residents.GetResidentByNIK(im.ctx, username); err == nil {
			if _, err := im.r.Users.GetUserByResident(im.ctx, res.ResidentID); errors.Is(err, repository.ErrNotFound) {
				u.ResidentID = res.ResidentID
			}
		}
	}
	if err := im.r.Users.CreateUser(im.ctx, u); err != nil {
		return false, err
	}
	return true, nil
}

func (im *importer) announcement(rec store.Record) (bool, error) {
	var in legacyAnnouncement
	if err := decodeRecord(rec, &in); err != nil {
		return false, err
	}
	if strings.TrimSpace(in.Judul) == "" {
		return false, skipf("judul kosong")
	}
	a := &domain.Announcement{
		Title:  strings.TrimSpace(in.Judul),
		Body:   strings.TrimSpace(in.Isi),
		Author: strings.TrimSpace(in.Penulis),
	}
	if err := im.r.Announcements.CreateAnnouncement(im.ctx, a); err != nil {
		return false, err
	}
	return true, nil
}

// RepairStatuses 以死亡/迁出登记为准重算居民状态
func (s *reconcileService) RepairStatuses(ctx context.Context, dryRun bool) ([]StatusCorrection, error) {
	var corrections []StatusCorrection
	err := s.store.WithinTx(ctx, func(r repository.Repos) error {
		var err error
		corrections, err = repairStatuses(ctx, r, dryRun)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, c := range corrections {
		s.logger.Info("Resident status corrected",
			zap.String("resident_id", c.ResidentID),
			zap.String("from", c.From),
			zap.String("to", c.To),
			zap.Bool("dry_run", dryRun),
		)
	}
	return corrections, nil
}

func repairStatuses(ctx context.Context, r repository.Repos, dryRun bool) ([]StatusCorrection, error) {
	deaths, _, err := r.Deaths.ListDeaths(ctx, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list death events: %w", err)
	}
	departures, _, err := r.Departures.ListDepartures(ctx, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list departure events: %w", err)
	}
	expected := make(map[string]string, len(deaths)+len(departures))
	for _, e := range departures {
		expected[e.ResidentID] = domain.ResidentStatusRelocated
	}
	// 同时存在时以死亡为准
	for _, e := range deaths {
		expected[e.ResidentID] = domain.ResidentStatusDeceased
	}

	residents, _, err := r.Residents.ListResidents(ctx, repository.ResidentFilters{}, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list residents: %w", err)
	}
	corrections := []StatusCorrection{}
	for _, res := range residents {
		want, ok := expected[res.ResidentID]
		if !ok {
			want = domain.ResidentStatusPresent
		}
		if res.Status == want {
			continue
		}
		corrections = append(corrections, StatusCorrection{
			ResidentID: res.ResidentID,
			NIK:        res.NIK,
			FullName:   res.FullName,
			From:       res.Status,
			To:         want,
		})
		if dryRun {
			continue
		}
		if err := r.Residents.UpdateResidentStatus(ctx, res.ResidentID, want); err != nil {
			return nil, fmt.Errorf("failed to update resident status: %w", err)
		}
	}
	return corrections, nil
}
