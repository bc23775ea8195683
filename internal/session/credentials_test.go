package session

import (
	"fmt"
	"sync"
	"testing"
)

func TestStoreSetAndGet(t *testing.T) {
	s := NewStore()
	if s.Authenticated() {
		t.Error("new store should not be authenticated")
	}

	s.Set("access1", "refresh1")
	c := s.Get()
	if c.Access != "access1" || c.Refresh != "refresh1" {
		t.Errorf("unexpected pair: %+v", c)
	}
	if !s.Authenticated() {
		t.Error("expected authenticated after Set")
	}
}

func TestStoreSetKeepsRefreshWhenOmitted(t *testing.T) {
	s := NewStore()
	s.Set("access1", "refresh1")

	// Renewal responses may rotate only the access token.
	s.Set("access2", "")
	c := s.Get()
	if c.Access != "access2" {
		t.Errorf("expected access2, got %s", c.Access)
	}
	if c.Refresh != "refresh1" {
		t.Errorf("expected refresh token to be kept, got %s", c.Refresh)
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore()
	s.Set("access1", "refresh1")
	s.Clear()

	c := s.Get()
	if c.Access != "" || c.Refresh != "" {
		t.Errorf("expected both fields cleared, got %+v", c)
	}
}

// Readers racing whole-pair replacements must never see a mixed pair.
func TestStoreAtomicPairUnderConcurrency(t *testing.T) {
	s := NewStore()
	s.Set("access-0", "refresh-0")

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i < 200; i++ {
			s.Set(fmt.Sprintf("access-%d", i), fmt.Sprintf("refresh-%d", i))
		}
		close(stop)
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				c := s.Get()
				accessGen := c.Access[len("access-"):]
				refreshGen := c.Refresh[len("refresh-"):]
				if accessGen != refreshGen {
					t.Errorf("observed mixed pair: %+v", c)
					return
				}
				select {
				case <-stop:
					return
				default:
				}
			}
		}()
	}

	wg.Wait()
}
