package breaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := New(Config{Name: "products", MaxFailures: 3, Cooldown: time.Minute}, testLogger())

	failing := func() error { return errors.New("upstream down") }

	for i := 0; i < 3; i++ {
		if err := b.Execute(failing); err == nil {
			t.Fatalf("attempt %d: expected failure", i)
		}
	}

	if b.State() != StateOpen {
		t.Fatalf("expected open after %d failures, got %s", 3, b.State())
	}

	err := b.Execute(func() error {
		t.Error("function must not run while breaker is open")
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}

	metrics := b.Metrics()
	if metrics["total_rejected"].(int64) != 1 {
		t.Errorf("expected 1 rejected call, got %v", metrics["total_rejected"])
	}
	if metrics["total_attempts"].(int64) != 3 {
		t.Errorf("rejected calls must not count as attempts: got %v", metrics["total_attempts"])
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := New(Config{Name: "orders", MaxFailures: 2, Cooldown: time.Minute}, testLogger())

	if err := b.Execute(func() error { return errors.New("blip") }); err == nil {
		t.Fatal("expected error")
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Execute(func() error { return errors.New("blip") }); err == nil {
		t.Fatal("expected error")
	}

	// One failure, one success, one failure: never two consecutive.
	if b.State() != StateClosed {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestHalfOpenProbeAndRecovery(t *testing.T) {
	b := New(Config{Name: "stores", MaxFailures: 1, Cooldown: 40 * time.Millisecond, MaxProbes: 1}, testLogger())

	if err := b.Execute(func() error { return errors.New("down") }); err == nil {
		t.Fatal("expected failure to open breaker")
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	time.Sleep(50 * time.Millisecond)

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe should have been allowed: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", b.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New(Config{Name: "stores", MaxFailures: 1, Cooldown: 40 * time.Millisecond}, testLogger())

	b.Execute(func() error { return errors.New("down") })
	time.Sleep(50 * time.Millisecond)

	if err := b.Execute(func() error { return errors.New("still down") }); err == nil {
		t.Fatal("expected probe failure")
	}
	if b.State() != StateOpen {
		t.Fatalf("expected reopen after failed probe, got %s", b.State())
	}
}

func TestHalfOpenProbeQuota(t *testing.T) {
	b := New(Config{Name: "categories", MaxFailures: 1, Cooldown: 40 * time.Millisecond, MaxProbes: 2}, testLogger())

	b.Execute(func() error { return errors.New("down") })
	time.Sleep(50 * time.Millisecond)

	var wg sync.WaitGroup
	results := make(chan error, 5)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- b.Execute(func() error {
				time.Sleep(10 * time.Millisecond)
				return nil
			})
		}()
	}

	wg.Wait()
	close(results)

	var successes, rejections int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrOpen):
			rejections++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes > 2 {
		t.Errorf("expected at most 2 probes with MaxProbes=2, got %d", successes)
	}
	if successes+rejections != 5 {
		t.Errorf("expected 5 results, got %d", successes+rejections)
	}
	t.Logf("half-open quota: %d probes, %d rejections", successes, rejections)
}

func TestConcurrentMetricsConsistency(t *testing.T) {
	b := New(Config{Name: "load", MaxFailures: 1000, Cooldown: time.Minute}, testLogger())

	const goroutines = 50
	const iterations = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				b.Execute(func() error {
					if (n+j)%3 == 0 {
						return errors.New("simulated failure")
					}
					return nil
				})
			}
		}(i)
	}
	wg.Wait()

	metrics := b.Metrics()
	attempts := metrics["total_attempts"].(int64)
	failures := metrics["total_failures"].(int64)
	successes := metrics["total_successes"].(int64)

	if attempts != failures+successes {
		t.Errorf("inconsistent metrics: attempts=%d failures=%d successes=%d",
			attempts, failures, successes)
	}
	if attempts != goroutines*iterations {
		t.Errorf("expected %d attempts, got %d", goroutines*iterations, attempts)
	}
}

func TestReset(t *testing.T) {
	b := New(Config{Name: "reset", MaxFailures: 1, Cooldown: time.Hour}, testLogger())

	b.Execute(func() error { return errors.New("down") })
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	b.Reset()
	if b.State() != StateClosed {
		t.Fatalf("expected closed after reset, got %s", b.State())
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
}
