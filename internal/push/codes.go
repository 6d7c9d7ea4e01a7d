package push

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Per-token error codes reported in SendResponse.ErrorCode.
const (
	CodeInvalidRegistrationToken = "messaging/invalid-registration-token"
	CodeRegistrationNotFound     = "messaging/registration-token-not-registered"
	CodeInvalidArgument          = "messaging/invalid-argument"
	CodeMessageRateExceeded      = "messaging/message-rate-exceeded"
	CodeServerUnavailable        = "messaging/server-unavailable"
	CodeInternalError            = "messaging/internal-error"
	CodeMismatchedCredential     = "messaging/mismatched-credential"
	CodeThirdPartyAuthError      = "messaging/third-party-auth-error"
	CodeUnknown                  = "messaging/unknown-error"
)

const fcmErrorType = "type.googleapis.com/google.firebase.fcm.v1.FcmError"

// ErrorCode maps an error returned by the FCM HTTP v1 API to a per-token code.
// The token-level codes come only from the FcmError detail. A bare 404 or 400
// is also what a wrong project or endpoint returns, so it maps to CodeUnknown.
func ErrorCode(err error) string {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return CodeUnknown
	}

	switch fcmErrorCode(gerr) {
	case "UNREGISTERED":
		return CodeRegistrationNotFound
	case "INVALID_ARGUMENT":
		if mentionsToken(gerr.Message) {
			return CodeInvalidRegistrationToken
		}
		return CodeInvalidArgument
	case "QUOTA_EXCEEDED":
		return CodeMessageRateExceeded
	case "UNAVAILABLE":
		return CodeServerUnavailable
	case "INTERNAL":
		return CodeInternalError
	case "SENDER_ID_MISMATCH":
		return CodeMismatchedCredential
	case "THIRD_PARTY_AUTH_ERROR":
		return CodeThirdPartyAuthError
	}

	switch gerr.Code {
	case http.StatusTooManyRequests:
		return CodeMessageRateExceeded
	case http.StatusServiceUnavailable:
		return CodeServerUnavailable
	case http.StatusInternalServerError:
		return CodeInternalError
	case http.StatusUnauthorized:
		return CodeThirdPartyAuthError
	case http.StatusForbidden:
		return CodeMismatchedCredential
	}
	return CodeUnknown
}

// fcmErrorCode extracts errorCode from the FcmError detail, if present.
func fcmErrorCode(gerr *googleapi.Error) string {
	for _, d := range gerr.Details {
		m, ok := d.(map[string]interface{})
		if !ok {
			continue
		}
		if t, _ := m["@type"].(string); t != fcmErrorType {
			continue
		}
		if code, ok := m["errorCode"].(string); ok {
			return code
		}
	}
	return ""
}

func mentionsToken(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "registration token")
}
