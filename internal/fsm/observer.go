package fsm

import "github.com/jmylchreest/histreamer/internal/errors"

// InfoKind enumerates the on_info notification types delivered to an
// Observer (spec.md §6 "Observer callback").
type InfoKind int

const (
	InfoStateChange InfoKind = iota
	InfoSeekDone
	InfoEOS
	InfoBufferingProgress
	InfoRecordComplete
)

func (k InfoKind) String() string {
	switch k {
	case InfoStateChange:
		return "state_change"
	case InfoSeekDone:
		return "seek_done"
	case InfoEOS:
		return "eos"
	case InfoBufferingProgress:
		return "buffering_progress"
	case InfoRecordComplete:
		return "record_complete"
	default:
		return "unknown"
	}
}

// Observer is the callback surface SPEC_FULL.md §4.10 describes:
// delivered on a dedicated dispatch goroutine so a slow or blocking
// observer never stalls a filter's worker Task.
type Observer interface {
	OnInfo(kind InfoKind, extra any)
	OnError(code errors.Code)
}

// dispatch fans a notification out to obs on its own goroutine. Calling
// it with a nil obs is a no-op.
func dispatch(obs Observer, fn func(Observer)) {
	if obs == nil {
		return
	}
	go fn(obs)
}
