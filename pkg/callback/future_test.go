package callback

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFuture_WaitTimesOutNotBefore(t *testing.T) {
	f := newFuture()
	timeout := 80 * time.Millisecond

	start := time.Now()
	_, err := f.Wait(context.Background(), timeout)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrRegistrationTimeout) {
		t.Fatalf("err = %v, want ErrRegistrationTimeout", err)
	}
	if elapsed < timeout {
		t.Errorf("timed out after %v, before %v", elapsed, timeout)
	}
}

func TestFuture_ResolvesOnce(t *testing.T) {
	f := newFuture()
	if !f.succeed("abc") {
		t.Fatal("first resolve should win")
	}
	if f.fail(ErrChannelStopped) {
		t.Error("second resolve should be ignored")
	}

	id, err := f.Wait(context.Background(), time.Second)
	if err != nil || id != "abc" {
		t.Errorf("Wait() = %q, %v", id, err)
	}
	id, err = f.Result()
	if err != nil || id != "abc" {
		t.Errorf("Result() = %q, %v", id, err)
	}
}

func TestFuture_ResultBeforeDone(t *testing.T) {
	f := newFuture()
	if _, err := f.Result(); !errors.Is(err, ErrRegistrationTimeout) {
		t.Errorf("Result() err = %v", err)
	}
	select {
	case <-f.Done():
		t.Error("Done should not be closed")
	default:
	}
}

func TestFuture_WaitContextCancelled(t *testing.T) {
	f := newFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Wait(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestFuture_FailureIsReported(t *testing.T) {
	f := newFuture()
	rejection := &RejectionError{Message: "no thanks"}
	go f.fail(rejection)

	_, err := f.Wait(context.Background(), time.Second)
	var re *RejectionError
	if !errors.As(err, &re) || re.Message != "no thanks" {
		t.Errorf("err = %v, want rejection", err)
	}
}
