package llm

import (
	"errors"
	"testing"
)

func TestErrorFromStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		wantType  string
		retryable bool
	}{
		{400, "*llm.InvalidRequestError", false},
		{401, "*llm.AuthenticationError", false},
		{403, "*llm.AccessDeniedError", false},
		{404, "*llm.NotFoundError", false},
		{413, "*llm.ContextLengthError", false},
		{422, "*llm.InvalidRequestError", false},
		{429, "*llm.RateLimitError", true},
		{500, "*llm.ServerError", true},
		{502, "*llm.ServerError", true},
		{503, "*llm.ServerError", true},
		{504, "*llm.ServerError", true},
	}

	for _, tt := range tests {
		err := ErrorFromStatusCode(tt.status, "msg", "testprov", nil)
		if got := typeName(err); got != tt.wantType {
			t.Errorf("status %d: expected %s, got %s", tt.status, tt.wantType, got)
		}
		if IsRetryable(err) != tt.retryable {
			t.Errorf("status %d: expected retryable=%v", tt.status, tt.retryable)
		}
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case *InvalidRequestError:
		return "*llm.InvalidRequestError"
	case *AuthenticationError:
		return "*llm.AuthenticationError"
	case *AccessDeniedError:
		return "*llm.AccessDeniedError"
	case *NotFoundError:
		return "*llm.NotFoundError"
	case *ContextLengthError:
		return "*llm.ContextLengthError"
	case *RateLimitError:
		return "*llm.RateLimitError"
	case *ServerError:
		return "*llm.ServerError"
	default:
		return "other"
	}
}

func TestErrorFromStatusCodeUnknownIsRetryable(t *testing.T) {
	err := ErrorFromStatusCode(418, "teapot", "testprov", nil)
	if !IsRetryable(err) {
		t.Error("unknown status codes should default to retryable")
	}
}

func TestIsRetryableNil(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil error must not be retryable")
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &ClientError{Message: "wrapper", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Error() != "wrapper: root cause" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{
		ClientError: ClientError{Message: "overloaded"},
		Provider:    "anthropic",
		StatusCode:  529,
		Retryable:   true,
	}
	want := "[anthropic] overloaded (status=529, retryable=true)"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
