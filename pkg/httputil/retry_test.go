package httputil

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/matzehuels/extrepo/pkg/errors"
)

func TestRetry(t *testing.T) {
	transient := &RetryableError{Err: stderrors.New("connection reset")}
	permanent := stderrors.New("bad request")

	tests := []struct {
		name      string
		failures  []error
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{"success", nil, 3, 1, nil},
		{"transient then success", []error{transient}, 3, 2, nil},
		{"permanent stops", []error{permanent}, 3, 1, permanent},
		{"exhausted", []error{transient, transient, transient}, 3, 3, transient},
		{"zero attempts runs once", []error{transient}, 0, 1, transient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), tt.attempts, time.Millisecond, func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if !stderrors.Is(err, tt.wantErr) && err != tt.wantErr {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return &RetryableError{Err: stderrors.New("timeout")}
	})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCheckStatus(t *testing.T) {
	u, _ := url.Parse("https://repo.example.org/maven2/a.pom")
	req := &http.Request{Method: http.MethodGet, URL: u}

	tests := []struct {
		code      int
		wantNil   bool
		notFound  bool
		retryable bool
	}{
		{200, true, false, false},
		{204, true, false, false},
		{404, false, true, false},
		{410, false, true, false},
		{429, false, false, true},
		{502, false, false, true},
		{403, false, false, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := CheckStatus(&http.Response{StatusCode: tt.code, Request: req})
			if (err == nil) != tt.wantNil {
				t.Fatalf("CheckStatus(%d) = %v", tt.code, err)
			}
			if err == nil {
				return
			}
			if got := stderrors.Is(err, ErrNotFound); got != tt.notFound {
				t.Errorf("not found = %v, want %v", got, tt.notFound)
			}
			if got := IsRetryable(err); got != tt.retryable {
				t.Errorf("retryable = %v, want %v", got, tt.retryable)
			}
			if !tt.notFound && !errors.Is(err, errors.ErrCodeNetwork) {
				t.Errorf("code = %q, want NETWORK_ERROR", errors.GetCode(err))
			}
		})
	}
}

func TestCheckStatusWithoutRequest(t *testing.T) {
	err := CheckStatus(&http.Response{StatusCode: 500})
	if err == nil || !IsRetryable(err) {
		t.Errorf("CheckStatus() = %v, want retryable error", err)
	}
}
