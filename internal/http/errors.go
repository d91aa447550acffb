package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"sipenduk/internal/service"
)

const (
	msgValidation   = "Validasi gagal"
	msgInvalidBody  = "Format data tidak valid"
	msgNotFound     = "Data tidak ditemukan"
	msgUnauthorized = "Sesi tidak valid, silakan login kembali"
	msgForbidden    = "Akses ditolak"
	msgInternal     = "Terjadi kesalahan pada server"
)

// 领域错误 -> 用户提示（印尼语）
var errorMessages = []struct {
	err error
	msg string
}{
	{service.ErrDuplicateNationalID, "NIK sudah terdaftar"},
	{service.ErrDuplicateCardNumber, "Nomor KK sudah terdaftar"},
	{service.ErrDuplicateUsername, "Username sudah digunakan"},
	{service.ErrResidentHasAccount, "Penduduk sudah memiliki akun"},
	{service.ErrResidentHasMembership, "Penduduk masih terdaftar sebagai anggota keluarga"},
	{service.ErrResidentReferenced, "Data penduduk masih digunakan oleh data lain"},
	{service.ErrFamilyCardHasMembers, "Kartu keluarga masih memiliki anggota"},
	{service.ErrFamilyCardReferenced, "Kartu keluarga masih digunakan oleh data kelahiran"},
	{service.ErrAlreadyDeceased, "Penduduk sudah tercatat meninggal"},
	{service.ErrAlreadyRelocated, "Penduduk sudah tercatat pindah"},
	{service.ErrResidentDeceased, "Penduduk sudah meninggal"},
	{service.ErrResidentRelocated, "Penduduk sudah pindah"},
	{service.ErrInvalidStatusTransition, "Status surat tidak dapat diubah"},
	{service.ErrLastAdmin, "Tidak dapat menghapus atau menurunkan admin terakhir"},
	{service.ErrInvalidCredentials, "Username atau password salah"},
}

func errorMessage(err error, fallback string) string {
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return fallback
}

// statusFor 按错误类别选择 HTTP 状态码
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict, service.KindReferential, service.KindState:
		return http.StatusConflict
	case service.KindAuth:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// writeError 内部错误只记日志，响应中只给通用提示
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	if errors.Is(err, errInvalidBody) {
		writeJSON(w, http.StatusBadRequest, Fail(msgInvalidBody))
		return
	}
	kind := service.KindOf(err)
	status := statusFor(kind)
	switch kind {
	case service.KindValidation:
		var ve *service.ValidationError
		errors.As(err, &ve)
		writeJSON(w, status, FailFields(msgValidation, ve.Fields))
	case service.KindNotFound:
		writeJSON(w, status, Fail(msgNotFound))
	case service.KindAuth:
		writeJSON(w, status, Fail(errorMessage(err, msgUnauthorized)))
	case service.KindForbidden:
		writeJSON(w, status, Fail(msgForbidden))
	case service.KindConflict, service.KindReferential, service.KindState:
		writeJSON(w, status, Fail(errorMessage(err, msgInternal)))
	default:
		logger.Error("Request failed", zap.Error(err))
		writeJSON(w, status, Fail(msgInternal))
	}
}
