package httpx

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("boom"), false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{&StatusError{Service: "x", StatusCode: 429}, true},
		{&StatusError{Service: "x", StatusCode: 503}, true},
		{&StatusError{Service: "x", StatusCode: 400}, false},
		{fmt.Errorf("wrapped: %w", &StatusError{StatusCode: 500}), true},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Fatalf("IsTransient(%v)=%v want %v", tc.err, got, tc.want)
		}
	}
}
