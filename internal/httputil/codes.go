package httputil

// Machine-readable error codes returned in ErrorResponse.Code
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeCooldownActive     = "COOLDOWN_ACTIVE"
	CodeNotFound           = "NOT_FOUND"

	// Validation
	CodeEmailRequired      = "EMAIL_REQUIRED"
	CodeInvalidEmailFormat = "INVALID_EMAIL_FORMAT"
	CodePasswordRequired   = "PASSWORD_REQUIRED"
	CodePasswordTooShort   = "PASSWORD_TOO_SHORT"
	CodeInvalidPhoneFormat = "INVALID_PHONE_FORMAT"

	// Registration and login
	CodeEmailAlreadyExists = "EMAIL_ALREADY_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"

	// Verification artifacts
	CodeVerificationTokenRequired = "VERIFICATION_TOKEN_REQUIRED"
	CodeInvalidOrExpiredToken     = "INVALID_OR_EXPIRED_TOKEN"
	CodeOTPRequired               = "OTP_REQUIRED"
	CodeInvalidOTP                = "INVALID_OTP"

	// Federated sign-in
	CodeAssertionRequired = "ASSERTION_REQUIRED"
	CodeInvalidAssertion  = "INVALID_ASSERTION"
	CodeFederatedConflict = "FEDERATED_CONFLICT"
	CodeFederatedDisabled = "FEDERATED_DISABLED"

	// Session
	CodeMissingAuth       = "MISSING_AUTH"
	CodeInvalidAuthHeader = "INVALID_AUTH_HEADER"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeTokenExpired      = "TOKEN_EXPIRED"
)
