package push_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/shaharia-lab/muster/internal/push"
)

func fcmErr(status int, msg, code string) *googleapi.Error {
	e := &googleapi.Error{Code: status, Message: msg}
	if code != "" {
		e.Details = []interface{}{
			map[string]interface{}{
				"@type":     "type.googleapis.com/google.firebase.fcm.v1.FcmError",
				"errorCode": code,
			},
		}
	}
	return e
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unregistered", fcmErr(http.StatusNotFound, "Requested entity was not found.", "UNREGISTERED"), push.CodeRegistrationNotFound},
		{"invalid token", fcmErr(http.StatusBadRequest, "The registration token is not a valid FCM registration token", "INVALID_ARGUMENT"), push.CodeInvalidRegistrationToken},
		{"invalid payload", fcmErr(http.StatusBadRequest, "Invalid value at 'message.data'", "INVALID_ARGUMENT"), push.CodeInvalidArgument},
		{"quota", fcmErr(http.StatusTooManyRequests, "Quota exceeded", "QUOTA_EXCEEDED"), push.CodeMessageRateExceeded},
		{"unavailable", fcmErr(http.StatusServiceUnavailable, "try later", "UNAVAILABLE"), push.CodeServerUnavailable},
		{"internal", fcmErr(http.StatusInternalServerError, "oops", "INTERNAL"), push.CodeInternalError},
		{"sender mismatch", fcmErr(http.StatusForbidden, "mismatch", "SENDER_ID_MISMATCH"), push.CodeMismatchedCredential},
		{"apns auth", fcmErr(http.StatusUnauthorized, "auth", "THIRD_PARTY_AUTH_ERROR"), push.CodeThirdPartyAuthError},
		{"404 without detail", fcmErr(http.StatusNotFound, "not found", ""), push.CodeUnknown},
		{"429 without detail", fcmErr(http.StatusTooManyRequests, "slow down", ""), push.CodeMessageRateExceeded},
		{"400 token without detail", fcmErr(http.StatusBadRequest, "bad registration token", ""), push.CodeUnknown},
		{"400 without detail", fcmErr(http.StatusBadRequest, "bad request", ""), push.CodeUnknown},
		{"unmapped status", fcmErr(http.StatusTeapot, "teapot", ""), push.CodeUnknown},
		{"non google error", errors.New("connection reset"), push.CodeUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, push.ErrorCode(tc.err))
		})
	}
}
