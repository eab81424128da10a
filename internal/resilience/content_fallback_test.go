package resilience

import (
	"context"
	"errors"
	"testing"

	contentmock "github.com/stephenhungg/flow/pkg/provider/content/mock"
)

func TestContentFallback_PrimarySuccess(t *testing.T) {
	primary := &contentmock.Provider{Lesson: contentmock.Lesson("rome")}
	secondary := &contentmock.Provider{Lesson: contentmock.Lesson("rome-secondary")}

	fb := NewContentFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	lesson, err := fb.GenerateLesson(context.Background(), "rome")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lesson.Concept != "rome" {
		t.Fatalf("concept = %q, want primary's lesson", lesson.Concept)
	}
	if len(primary.Calls()) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.Calls()))
	}
	if len(secondary.Calls()) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.Calls()))
	}
}

func TestContentFallback_Failover(t *testing.T) {
	primary := &contentmock.Provider{Err: errors.New("primary down")}
	secondary := &contentmock.Provider{Lesson: contentmock.Lesson("from-secondary")}

	fb := NewContentFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	lesson, err := fb.GenerateLesson(context.Background(), "rome")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lesson.Concept != "from-secondary" {
		t.Fatalf("concept = %q, want secondary's lesson", lesson.Concept)
	}
}

func TestContentFallback_AllFail(t *testing.T) {
	primary := &contentmock.Provider{Err: errors.New("primary down")}
	secondary := &contentmock.Provider{Err: errors.New("secondary down")}

	fb := NewContentFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.GenerateLesson(context.Background(), "rome")
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestContentFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &contentmock.Provider{Err: errors.New("primary down")}
	secondary := &contentmock.Provider{Lesson: contentmock.Lesson("from-secondary")}

	fb := NewContentFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})
	fb.AddFallback("secondary", secondary)

	ctx := context.Background()
	// First call trips the primary's breaker.
	if _, err := fb.GenerateLesson(ctx, "rome"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := fb.GenerateLesson(ctx, "rome"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(primary.Calls()); got != 1 {
		t.Fatalf("primary called %d times, want 1 (breaker open on second call)", got)
	}
}
