package kit

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestChain_WrapsOutsideIn(t *testing.T) {
	// WHAT: Chain(a, b, c) means a sees the request first and the
	// response last.
	var trace string
	tag := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				trace += "<" + name
				resp, err := next(ctx, req)
				trace += name + ">"
				return resp, err
			}
		}
	}
	ep := func(context.Context, any) (any, error) {
		trace += "|"
		return 42, nil
	}

	resp, err := Chain(tag("a"), tag("b"), tag("c"))(ep)(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != 42 {
		t.Fatalf("response = %v", resp)
	}
	if want := "<a<b<c|c>b>a>"; trace != want {
		t.Fatalf("trace = %q, want %q", trace, want)
	}
}

func TestChain_PassesErrorsThrough(t *testing.T) {
	boom := errors.New("boom")
	ep := func(context.Context, any) (any, error) { return nil, boom }

	wrap := func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			resp, err := next(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("wrapped: %w", err)
			}
			return resp, nil
		}
	}

	if _, err := Chain(wrap)(ep)(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped boom", err)
	}
}

func TestContextKeys_RoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithUserID(ctx, "usr_9")
	ctx = WithRequestID(ctx, "req_1")
	ctx = WithSessionID(ctx, "ses_2")

	if got := GetUserID(ctx); got != "usr_9" {
		t.Errorf("user = %q", got)
	}
	if got := GetRequestID(ctx); got != "req_1" {
		t.Errorf("request = %q", got)
	}
	if got := GetSessionID(ctx); got != "ses_2" {
		t.Errorf("session = %q", got)
	}
}

func TestContextKeys_ZeroValues(t *testing.T) {
	ctx := context.Background()
	if got := GetUserID(ctx); got != "" {
		t.Errorf("user default = %q", got)
	}
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("request default = %q", got)
	}
}

func TestTransport_DefaultsToHTTP(t *testing.T) {
	// WHAT: Only the MCP layer tags the transport; an untagged context
	// reads as "http" so audit rows are never blank.
	if got := GetTransport(context.Background()); got != "http" {
		t.Fatalf("default transport = %q", got)
	}
	if got := GetTransport(WithTransport(context.Background(), "mcp")); got != "mcp" {
		t.Fatalf("tagged transport = %q", got)
	}
}
