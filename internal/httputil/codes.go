package httputil

// Machine-readable error codes returned alongside human-readable messages.
// Clients branch on these, never on message text.
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeInternalError      = "INTERNAL_ERROR"

	CodeMissingAuth          = "MISSING_AUTH"
	CodeInvalidAuthHeader    = "INVALID_AUTH_HEADER"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeRefreshTokenRequired = "REFRESH_TOKEN_REQUIRED"
	CodeInvalidRefreshToken  = "INVALID_REFRESH_TOKEN"
	CodeForbidden            = "FORBIDDEN"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeEmailNotVerified     = "EMAIL_NOT_VERIFIED"

	CodeMissingFields       = "MISSING_FIELDS"
	CodePasswordMismatch    = "PASSWORD_MISMATCH"
	CodePasswordTooShort    = "PASSWORD_TOO_SHORT"
	CodeInvalidEmailFormat  = "INVALID_EMAIL_FORMAT"
	CodeEmailAlreadyExists  = "EMAIL_ALREADY_EXISTS"
	CodeVerificationFailed  = "VERIFICATION_FAILED"
	CodeAlreadyVerified     = "ALREADY_VERIFIED"
	CodeInvalidResetToken   = "INVALID_RESET_TOKEN"
	CodeWrongPassword       = "WRONG_PASSWORD"
	CodeRateLimited         = "RATE_LIMITED"
	CodeTooManyRequests     = "TOO_MANY_REQUESTS"
	CodeOrderNotFound       = "ORDER_NOT_FOUND"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeInvalidOrderStatus  = "INVALID_ORDER_STATUS"
	CodeEmptyOrder          = "EMPTY_ORDER"
)
