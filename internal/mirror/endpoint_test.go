package mirror

import (
	"context"
	"errors"
	"testing"
)

func TestSelectEndpointSkipsTokenless(t *testing.T) {
	t.Parallel()

	ep, ok := SelectEndpoint([]Endpoint{
		{ID: "1"},
		{ID: "2", Token: "  "},
		{ID: "3", Token: "abc"},
		{ID: "4", Token: "def"},
	})
	if !ok {
		t.Fatalf("expected an endpoint")
	}
	if ep.ID != "3" {
		t.Fatalf("expected first tokened endpoint, got %s", ep.ID)
	}

	if _, ok := SelectEndpoint([]Endpoint{{ID: "1"}}); ok {
		t.Fatalf("expected no usable endpoint")
	}
}

func TestResolveReusesExisting(t *testing.T) {
	t.Parallel()

	svc := newFakeEndpoints()
	svc.existing["10"] = []Endpoint{{ID: "follower"}, {ID: "wh-1", Token: "secret"}}

	ep, err := NewEndpointResolver(nil, svc, "").Resolve(context.Background(), "10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.EndpointID != "wh-1" || ep.Token != "secret" || ep.ChannelID != "10" {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
	if svc.created["10"] != 0 {
		t.Fatalf("expected no webhook creation")
	}
}

func TestResolveCreatesWithDefaultName(t *testing.T) {
	t.Parallel()

	svc := newFakeEndpoints()
	svc.existing["10"] = []Endpoint{{ID: "follower"}}

	ep, err := NewEndpointResolver(nil, svc, "  ").Resolve(context.Background(), "10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.created["10"] != 1 {
		t.Fatalf("expected exactly one creation, got %d", svc.created["10"])
	}
	if len(svc.names) != 1 || svc.names[0] != DefaultEndpointName {
		t.Fatalf("unexpected webhook names: %v", svc.names)
	}
	if ep.Token != "tok-10" {
		t.Fatalf("unexpected token: %q", ep.Token)
	}
}

func TestResolveCreateFailure(t *testing.T) {
	t.Parallel()

	svc := newFakeEndpoints()
	svc.createErr = ErrPermissionDenied

	_, err := NewEndpointResolver(nil, svc, "Mirror").Resolve(context.Background(), "10")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission error, got %v", err)
	}
	var perr *PlatformError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PlatformError, got %T", err)
	}
}

type tokenlessEndpoints struct{ *fakeEndpoints }

func (f *tokenlessEndpoints) CreateEndpoint(ctx context.Context, channel ChannelID, displayName string) (Endpoint, error) {
	return Endpoint{ID: "wh"}, nil
}

func TestResolveRejectsCreatedWithoutToken(t *testing.T) {
	t.Parallel()

	svc := &tokenlessEndpoints{fakeEndpoints: newFakeEndpoints()}
	if _, err := NewEndpointResolver(nil, svc, "").Resolve(context.Background(), "10"); err == nil {
		t.Fatalf("expected error for tokenless webhook")
	}
}
