package sim

// HookPos names the place in the kernel loop where a hook fires.
type HookPos struct {
	Name string
}

// HookPosBeforeEvent fires after the clock advanced but before the process resumes.
var HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent fires once the resumed process reached its next suspension point.
var HookPosAfterEvent = &HookPos{Name: "AfterEvent"}

// HookCtx carries what a hook may inspect. Hooks must not schedule events.
type HookCtx struct {
	Pos  *HookPos
	Now  float64
	Seq  uint64
	Proc Process
}

// Hook observes the kernel loop.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) { f(ctx) }
