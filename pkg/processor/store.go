package processor

import lru "github.com/hashicorp/golang-lru/v2"

// recentStamps bounds the memory of recently resolved stamps used to
// classify unmatched acks as late/duplicate rather than unknown.
const recentStamps = 512

// store holds the three correlation maps from stamp to pending entry.
// It has no logic beyond insert, lookup and remove; removal also
// records the stamp so late arrivals can be told apart from protocol
// misuse. Callers hold the processor lock.
type store struct {
	notes     map[string]*pendingNote
	requests  map[string]*pendingRequest
	responses map[string]*pendingResponse
	resolved  *lru.Cache[string, struct{}]
}

func newStore() *store {
	resolved, _ := lru.New[string, struct{}](recentStamps)
	return &store{
		notes:     make(map[string]*pendingNote),
		requests:  make(map[string]*pendingRequest),
		responses: make(map[string]*pendingResponse),
		resolved:  resolved,
	}
}

func (s *store) putNote(n *pendingNote)         { s.notes[n.stamp] = n }
func (s *store) putRequest(r *pendingRequest)   { s.requests[r.stamp] = r }
func (s *store) putResponse(r *pendingResponse) { s.responses[r.stamp] = r }

func (s *store) request(stamp string) *pendingRequest { return s.requests[stamp] }

// removeNote removes and returns the entry, or nil if absent.
func (s *store) removeNote(stamp string) *pendingNote {
	n, ok := s.notes[stamp]
	if !ok {
		return nil
	}
	delete(s.notes, stamp)
	s.resolved.Add(stamp, struct{}{})
	return n
}

func (s *store) removeRequest(stamp string) *pendingRequest {
	r, ok := s.requests[stamp]
	if !ok {
		return nil
	}
	delete(s.requests, stamp)
	s.resolved.Add(stamp, struct{}{})
	return r
}

func (s *store) removeResponse(stamp string) *pendingResponse {
	r, ok := s.responses[stamp]
	if !ok {
		return nil
	}
	delete(s.responses, stamp)
	s.resolved.Add(stamp, struct{}{})
	return r
}

// recentlyResolved reports whether the stamp belonged to an entry that
// was resolved not long ago.
func (s *store) recentlyResolved(stamp string) bool {
	return s.resolved.Contains(stamp)
}

// empty reports whether no entry of any kind is pending.
func (s *store) empty() bool {
	return len(s.notes) == 0 && len(s.requests) == 0 && len(s.responses) == 0
}
