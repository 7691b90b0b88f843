package httputil

// Machine-readable error codes returned alongside error messages so clients
// can branch on failures without parsing human-readable text.
const (
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"

	// Authentication
	CodeMissingAuth        = "MISSING_AUTH"
	CodeInvalidAuthHeader  = "INVALID_AUTH_HEADER"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidTokenUserID = "INVALID_TOKEN_USER_ID"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeEmailRequired      = "EMAIL_REQUIRED"
	CodeInvalidEmailFormat = "INVALID_EMAIL_FORMAT"
	CodeEmailAlreadyExists = "EMAIL_ALREADY_EXISTS"
	CodePasswordRequired   = "PASSWORD_REQUIRED"
	CodePasswordTooShort   = "PASSWORD_TOO_SHORT"
	CodeEmailCooldown      = "EMAIL_COOLDOWN"

	// Tokens and one-time codes
	CodeRefreshTokenRequired = "REFRESH_TOKEN_REQUIRED"
	CodeInvalidRefreshToken  = "INVALID_REFRESH_TOKEN"
	CodeLoginCodeRequired    = "LOGIN_CODE_REQUIRED"
	CodeInvalidLoginCode     = "INVALID_LOGIN_CODE"

	// Onboarding
	CodeUnknownPlan       = "UNKNOWN_PLAN"
	CodeSelectionInFlight = "SELECTION_IN_FLIGHT"
)
