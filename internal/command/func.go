package command

// Func is a command assembled from closures. Nil hooks are skipped; a nil
// Done means the command never finishes on its own.
type Func struct {
	Base
	OnInit    func()
	OnExecute func()
	OnEnd     func(interrupted bool)
	Done      func() bool
}

func NewFunc(name string, res ...Resource) *Func {
	f := &Func{}
	f.SetName(name)
	f.Require(res...)
	return f
}

func (f *Func) Initialize() {
	if f.OnInit != nil {
		f.OnInit()
	}
}

func (f *Func) Execute() {
	if f.OnExecute != nil {
		f.OnExecute()
	}
}

func (f *Func) IsFinished() bool {
	return f.Done != nil && f.Done()
}

func (f *Func) End(interrupted bool) {
	if f.OnEnd != nil {
		f.OnEnd(interrupted)
	}
}

// NewRun returns a command that calls fn every tick and never finishes.
// Default commands are usually built this way.
func NewRun(name string, fn func(), res ...Resource) *Func {
	f := NewFunc(name, res...)
	f.OnExecute = fn
	return f
}

// Instant runs a single action inside Initialize and is finished
// immediately, so it takes no execution ticks.
type Instant struct {
	Base
	action func()
}

func NewInstant(name string, action func(), res ...Resource) *Instant {
	c := &Instant{action: action}
	c.SetName(name)
	c.Require(res...)
	return c
}

func (c *Instant) Initialize() {
	if c.action != nil {
		c.action()
	}
}

func (c *Instant) IsFinished() bool { return true }

// WaitUntil finishes once cond reports true.
type WaitUntil struct {
	Base
	cond func() bool
}

func NewWaitUntil(name string, cond func() bool) *WaitUntil {
	c := &WaitUntil{cond: cond}
	c.SetName(name)
	return c
}

func (c *WaitUntil) IsFinished() bool { return c.cond() }
