package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/ShayCichocki/quartermaster/internal/catalog"
	"github.com/ShayCichocki/quartermaster/pkg/models"
)

type stubTarget struct {
	result map[string]any
	err    error
	calls  int
}

func (s *stubTarget) Invoke(_ context.Context, _ map[string]any) (map[string]any, error) {
	s.calls++
	return s.result, s.err
}

type stubResolvingTarget struct {
	stubTarget
	matches []models.EntityHandle
}

func (s *stubResolvingTarget) CountMatches(_ context.Context, _ string) (int, error) {
	return len(s.matches), nil
}

func (s *stubResolvingTarget) ListMatches(_ context.Context, _ string) ([]models.EntityHandle, error) {
	return s.matches, nil
}

func testRouter(t *testing.T) *Router {
	t.Helper()
	cat, err := catalog.New(
		catalog.Callable{Name: "pantry.get-state", Summary: "read"},
		catalog.Callable{Name: "pantry.consume-item", Summary: "consume", ReferenceResolving: true, Mutating: true},
	)
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return NewRouter(cat)
}

func TestRegisterAndInvoke(t *testing.T) {
	r := testRouter(t)
	target := &stubTarget{result: map[string]any{"items": []string{"milk"}}}
	if err := r.Register("pantry.get-state", target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := r.Invoke(context.Background(), "pantry.get-state", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.calls != 1 {
		t.Errorf("expected 1 call, got %d", target.calls)
	}
	if _, ok := result["items"]; !ok {
		t.Error("result lost in routing")
	}
}

func TestRegisterUnknownName(t *testing.T) {
	r := testRouter(t)
	if err := r.Register("pantry.unknown", &stubTarget{}); err == nil {
		t.Fatal("expected error for unknown callable name")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := testRouter(t)
	if err := r.Register("pantry.get-state", &stubTarget{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register("pantry.get-state", &stubTarget{}); err == nil {
		t.Fatal("expected error for duplicate registration")
	}
}

func TestInvokeWrapsFailure(t *testing.T) {
	r := testRouter(t)
	boom := errors.New("boom")
	if err := r.Register("pantry.get-state", &stubTarget{err: boom}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := r.Invoke(context.Background(), "pantry.get-state", nil)
	var de *Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *dispatch.Error, got %v", err)
	}
	if de.Target != "pantry.get-state" || !errors.Is(err, boom) {
		t.Errorf("unexpected wrapped error: %+v", de)
	}
}

func TestInvokeUnregistered(t *testing.T) {
	r := testRouter(t)
	_, err := r.Invoke(context.Background(), "pantry.get-state", nil)
	var de *Error
	if !errors.As(err, &de) {
		t.Fatalf("expected *dispatch.Error, got %v", err)
	}
}

func TestResolverCapability(t *testing.T) {
	r := testRouter(t)
	resolving := &stubResolvingTarget{matches: []models.EntityHandle{{ID: "e1"}}}
	if err := r.Register("pantry.consume-item", resolving); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register("pantry.get-state", &stubTarget{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := r.Resolver("pantry.get-state"); ok {
		t.Error("plain target should not expose resolver capability")
	}
	resolver, ok := r.Resolver("pantry.consume-item")
	if !ok {
		t.Fatal("expected resolver capability")
	}
	n, err := resolver.CountMatches(context.Background(), "apple")
	if err != nil || n != 1 {
		t.Errorf("unexpected count: %d, %v", n, err)
	}
}

func TestVerify(t *testing.T) {
	r := testRouter(t)
	if err := r.Verify(); err == nil {
		t.Fatal("expected error for missing targets")
	}

	if err := r.Register("pantry.get-state", &stubTarget{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// consume-item registered without resolver capability must fail Verify.
	if err := r.Register("pantry.consume-item", &stubTarget{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Verify(); err == nil {
		t.Fatal("expected error for non-resolving target on reference-resolving callable")
	}
}
