package audio

import (
	"fmt"
	"strings"
)

// LoopMode decides what happens to a track once it finishes.
type LoopMode int

const (
	LoopOff   LoopMode = iota // drop the finished track
	LoopTrack                 // play the finished track again
	LoopQueue                 // move the finished track to the back
)

func (m LoopMode) String() string {
	switch m {
	case LoopTrack:
		return "track"
	case LoopQueue:
		return "queue"
	default:
		return "off"
	}
}

// ParseLoopMode accepts "off" (or "none"), "track" and "queue", in any case.
func ParseLoopMode(s string) (LoopMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return LoopOff, nil
	case "track", "song":
		return LoopTrack, nil
	case "queue", "all":
		return LoopQueue, nil
	}
	return LoopOff, fmt.Errorf("unknown loop mode %q", s)
}
