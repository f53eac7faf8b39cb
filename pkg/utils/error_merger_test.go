package utils

import (
	"errors"
	"sort"
	"testing"
	"time"
)

func TestMergeErrorChans(t *testing.T) {
	ch1 := make(chan error, 1)
	ch2 := make(chan error, 1)

	merged := MergeErrorChans(ch1, nil, ch2)

	ch1 <- errors.New("error 1")
	ch2 <- errors.New("error 2")
	close(ch1)
	close(ch2)

	var received []string
	timeout := time.After(time.Second)
	for {
		select {
		case err, ok := <-merged:
			if !ok {
				sort.Strings(received)
				if len(received) != 2 || received[0] != "error 1" || received[1] != "error 2" {
					t.Fatalf("unexpected errors: %v", received)
				}
				return
			}
			received = append(received, err.Error())
		case <-timeout:
			t.Fatal("merged channel was not closed")
		}
	}
}

func TestMergeErrorChansEmpty(t *testing.T) {
	select {
	case _, ok := <-MergeErrorChans():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("merged channel was not closed")
	}
}
