package model

// EventKind identifies the notifications produced by the sequencer.
type EventKind int

const (
	// FramesReady is emitted once per load with the full frame set.
	FramesReady EventKind = iota + 1
	// FrameChanged is emitted on every index change.
	FrameChanged
	// PlaybackStateChanged is emitted on play, pause and speed changes.
	PlaybackStateChanged
)

func (k EventKind) String() string {
	switch k {
	case FramesReady:
		return "frames_ready"
	case FrameChanged:
		return "frame_changed"
	case PlaybackStateChanged:
		return "playback_state_changed"
	default:
		return "unknown"
	}
}

// FrameSet is the read contract of a built frame table.
type FrameSet interface {
	Years() []int
	Len() int
	YearAt(index int) (int, bool)
	FrameOf(year int) (YearFrame, bool)
	ChampionOf(year int) (string, bool)
	FederationOf(player string) (string, bool)
}

// Event is a notification for rendering collaborators. Fields not relevant
// to Kind are zero.
type Event struct {
	Seq     uint64 // monotonically increasing per sequencer
	Kind    EventKind
	Index   int
	Year    int
	Frame   YearFrame
	Playing bool
	Speed   float64
	Frames  FrameSet // FramesReady only
}
