package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

func TestIsNetworkError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline", err: fmt.Errorf("save: %w", context.DeadlineExceeded), want: true},
		{name: "dial", err: &url.Error{Op: "Post", URL: "http://x", Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}, want: true},
		{name: "dns", err: &net.DNSError{Err: "no such host", Name: "portal"}, want: true},
		{name: "http_status", err: statusErr(500), want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsNetworkError(tc.err); got != tc.want {
				t.Fatalf("IsNetworkError(%v)=%v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	if !IsRetryableError(statusErr(503)) {
		t.Fatalf("503 should be retryable")
	}
	if IsRetryableError(statusErr(404)) {
		t.Fatalf("404 should not be retryable")
	}
	if IsRetryableError(context.Canceled) {
		t.Fatalf("canceled should not be retryable")
	}
}
