package command

import (
	"fmt"
	"time"

	"github.com/san-kum/cyclectl/internal/hw"
)

// Wait is a pure delay. It records the clock at Initialize and finishes once
// the elapsed time reaches the duration.
type Wait struct {
	Base
	clock    hw.Clock
	duration time.Duration
	start    time.Duration
}

func NewWait(clock hw.Clock, d time.Duration) *Wait {
	w := &Wait{clock: clock, duration: d}
	w.SetName(fmt.Sprintf("wait(%s)", d))
	return w
}

func (w *Wait) Initialize() {
	w.start = w.clock.Now()
}

func (w *Wait) IsFinished() bool {
	return w.clock.Now()-w.start >= w.duration
}

// Elapsed returns the time since Initialize.
func (w *Wait) Elapsed() time.Duration {
	return w.clock.Now() - w.start
}
