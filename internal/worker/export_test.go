package worker

import "time"

func (s *Supervisor) SetClock(now func() time.Time) {
	s.now = now
}
