package ui

import "math"

const slideTicks = 8

// slide animates the lyric window from one highlighted line to the next.
type slide struct {
	progress float64
	distance int
}

func (s *slide) start(from int, to int) {
	if from < 0 || to < 0 || from == to {
		s.progress = 1
		s.distance = 0
		return
	}
	s.progress = 0
	s.distance = to - from
}

func (s *slide) step() {
	if s.progress >= 1 {
		return
	}
	s.progress = math.Min(1, s.progress+1.0/slideTicks)
}

func (s *slide) done() bool { return s.progress >= 1 }

// rows is how many rows the window still sits away from its target, for a
// given per-line height.
func (s *slide) rows(lineHeight int) int {
	if s.done() || s.distance == 0 {
		return 0
	}
	remaining := 1 - easeOutCubic(s.progress)
	return int(math.Round(remaining * float64(s.distance*lineHeight)))
}

func easeOutCubic(t float64) float64 {
	if t >= 1 {
		return 1
	}
	if t <= 0 {
		return 0
	}
	return 1 - math.Pow(1-t, 3)
}
