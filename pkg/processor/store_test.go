package processor

import (
	"strconv"
	"testing"
)

func TestStoreRemoveRecordsStamp(t *testing.T) {
	s := newStore()

	s.putNote(&pendingNote{stamp: "n1"})
	if s.empty() {
		t.Fatal("empty() = true with a pending note")
	}

	if s.removeNote("n1") == nil {
		t.Fatal("removeNote returned nil for present entry")
	}
	if s.removeNote("n1") != nil {
		t.Error("removeNote returned entry twice")
	}
	if !s.recentlyResolved("n1") {
		t.Error("resolved stamp not remembered")
	}
	if s.recentlyResolved("never-seen") {
		t.Error("unseen stamp reported as resolved")
	}
	if !s.empty() {
		t.Error("empty() = false after removal")
	}
}

func TestStoreKindsAreIndependent(t *testing.T) {
	s := newStore()
	s.putRequest(&pendingRequest{stamp: "x"})
	s.putResponse(&pendingResponse{stamp: "x"})

	if s.removeNote("x") != nil {
		t.Error("note lookup matched a request stamp")
	}
	if s.request("x") == nil {
		t.Error("request lookup failed")
	}
	if s.removeRequest("x") == nil {
		t.Error("removeRequest failed")
	}
	if s.removeResponse("x") == nil {
		t.Error("removeResponse failed")
	}
}

func TestStoreRecentStampsBounded(t *testing.T) {
	s := newStore()
	for i := 0; i < recentStamps+10; i++ {
		stamp := "s-" + strconv.Itoa(i)
		s.putNote(&pendingNote{stamp: stamp})
		s.removeNote(stamp)
	}
	if got := s.resolved.Len(); got != recentStamps {
		t.Errorf("resolved cache size = %d, want %d", got, recentStamps)
	}
}
