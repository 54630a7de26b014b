package lyrics

import "sort"

// ActiveIndex returns the largest i with lines[i].Time <= position, or -1.
// lines must be sorted by time.
func ActiveIndex(lines []Line, position float64) int {
	return sort.Search(len(lines), func(i int) bool {
		return lines[i].Time > position
	}) - 1
}

// Directive tells a renderer which line to highlight. Center asks for the line
// to be scrolled to the vertical middle of the panel.
type Directive struct {
	Index  int
	Center bool
}

type Highlighter interface {
	Highlight(Directive)
}

type HighlighterFunc func(Directive)

func (f HighlighterFunc) Highlight(d Directive) { f(d) }

// Synchronizer tracks the active line for a monotonically advancing position.
// It is not safe for concurrent use; the owner serialises calls.
type Synchronizer struct {
	lines   []Line
	current int
	offset  float64
	visible bool
	out     Highlighter
}

func NewSynchronizer(out Highlighter) *Synchronizer {
	return &Synchronizer{
		current: -1,
		visible: true,
		out:     out,
	}
}

// Load arms the synchronizer with a sorted line sequence. A nil or empty
// sequence leaves it inert.
func (s *Synchronizer) Load(lines []Line) {
	s.lines = lines
	s.current = -1
}

func (s *Synchronizer) Reset() {
	s.Load(nil)
}

func (s *Synchronizer) Lines() []Line { return s.lines }
func (s *Synchronizer) Current() int  { return s.current }
func (s *Synchronizer) Offset() float64 {
	return s.offset
}

func (s *Synchronizer) SetOffset(offset float64) {
	s.offset = offset
}

func (s *Synchronizer) Visible() bool { return s.visible }

// SetVisible toggles directive emission. Becoming visible re-emits the current
// line so a freshly mounted panel can catch up.
func (s *Synchronizer) SetVisible(visible bool) {
	wasVisible := s.visible
	s.visible = visible
	if visible && !wasVisible && s.current >= 0 {
		s.emit()
	}
}

// Update moves to the line active at position and reports the index. A
// directive is emitted only when the index changes.
func (s *Synchronizer) Update(position float64) int {
	if len(s.lines) == 0 {
		return -1
	}

	idx := s.locate(position + s.offset)
	if idx != s.current {
		// -1 clears the highlight after a seek back before the first line
		s.current = idx
		s.emit()
	}
	return idx
}

// locate scans forward from the cached index during normal playback and falls
// back to binary search when the position moved backwards.
func (s *Synchronizer) locate(position float64) int {
	idx := s.current
	if idx >= 0 && idx < len(s.lines) && s.lines[idx].Time <= position {
		for idx+1 < len(s.lines) && s.lines[idx+1].Time <= position {
			idx++
		}
		return idx
	}
	return ActiveIndex(s.lines, position)
}

// SeekTarget is the transport position for a clicked line.
func (s *Synchronizer) SeekTarget(index int) (float64, bool) {
	if index < 0 || index >= len(s.lines) {
		return 0, false
	}
	return s.lines[index].Time, true
}

func (s *Synchronizer) emit() {
	if !s.visible || s.out == nil {
		return
	}
	s.out.Highlight(Directive{Index: s.current, Center: true})
}
