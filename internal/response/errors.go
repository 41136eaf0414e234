package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden       ErrCode = "FORBIDDEN"
	ErrAdminAccessOnly ErrCode = "ADMIN_ACCESS_ONLY"
	ErrNotSessionOwner ErrCode = "NOT_SESSION_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Test catalog ──────────────────────────────────────────────────
	ErrTestUnavailable  ErrCode = "TEST_UNAVAILABLE"
	ErrTestNotPublished ErrCode = "TEST_NOT_PUBLISHED"
	ErrTestNotDraft     ErrCode = "TEST_NOT_DRAFT"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"
	ErrInvalidAnswerKey ErrCode = "INVALID_ANSWER_KEY"

	// ─── Test sessions ─────────────────────────────────────────────────
	ErrSessionNotFound     ErrCode = "SESSION_NOT_FOUND"
	ErrSessionCompleted    ErrCode = "SESSION_COMPLETED"
	ErrSessionNotCompleted ErrCode = "SESSION_NOT_COMPLETED"
	ErrNotAllAnswered      ErrCode = "NOT_ALL_ANSWERED"
	ErrInvalidAnswer       ErrCode = "INVALID_ANSWER"
	ErrInvalidNavigation   ErrCode = "INVALID_NAVIGATION"
	ErrSubmissionFailed    ErrCode = "SUBMISSION_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email atau kata sandi salah."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."
	case ErrNotSessionOwner:
		return "Sesi tes ini bukan milik Anda."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."

	// ─── Test catalog ──────────────────────────────────────────────────
	case ErrTestUnavailable:
		return "Tes tidak dapat dimuat saat ini. Silakan coba lagi."
	case ErrTestNotPublished:
		return "Tes ini belum dipublikasikan."
	case ErrTestNotDraft:
		return "Tes ini tidak dalam status DRAFT."
	case ErrNoQuestions:
		return "Tes ini tidak memiliki pertanyaan."
	case ErrInvalidAnswerKey:
		return "Setiap pertanyaan harus memiliki tepat satu jawaban benar."

	// ─── Test sessions ─────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "Sesi tes tidak ditemukan atau sudah ditutup."
	case ErrSessionCompleted:
		return "Sesi tes sudah selesai."
	case ErrSessionNotCompleted:
		return "Sesi tes belum selesai."
	case ErrNotAllAnswered:
		return "Semua pertanyaan harus dijawab sebelum menyelesaikan tes."
	case ErrInvalidAnswer:
		return "Pertanyaan atau jawaban tidak termasuk dalam tes ini."
	case ErrInvalidNavigation:
		return "Nomor soal berada di luar jangkauan."
	case ErrSubmissionFailed:
		return "Gagal mengirim jawaban. Jawaban Anda tetap tersimpan, silakan coba lagi."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
