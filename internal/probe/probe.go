package probe

// Probe determines whether a PID currently refers to a live process.
// Implementations must be total: any lookup failure means "not alive".
type Probe interface {
	Alive(pid int) bool
}

// Func adapts a plain function to the Probe interface.
type Func func(pid int) bool

func (f Func) Alive(pid int) bool { return f(pid) }

// OS probes the operating system process table.
type OS struct{}

func (OS) Alive(pid int) bool { return alive(pid) }
