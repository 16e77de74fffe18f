package app

import "sync/atomic"

// Sequencer hands out increasing tickets for one stream of requests. Only the
// response holding the newest ticket may be applied.
type Sequencer struct {
	latest atomic.Uint64
}

func (s *Sequencer) Next() uint64 {
	return s.latest.Add(1)
}

func (s *Sequencer) IsLatest(ticket uint64) bool {
	return s.latest.Load() == ticket
}
