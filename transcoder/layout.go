package transcoder

import (
	"sync"

	"github.com/wippyai/wasm-workspace/transcoder/internal/layout"
	"go.bytecodealliance.org/wit"
)

type LayoutInfo = layout.Info

// LayoutCalculator memoizes layouts per declaration.
type LayoutCalculator struct {
	mu   sync.Mutex
	calc *layout.Calculator
}

func NewLayoutCalculator() *LayoutCalculator {
	return &LayoutCalculator{
		calc: layout.NewCalculator(),
	}
}

func (lc *LayoutCalculator) Calculate(t wit.Type) LayoutInfo {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.calc.Calculate(t)
}

// SizeOf is a shorthand for Calculate(t).Size.
func (lc *LayoutCalculator) SizeOf(t wit.Type) uint32 {
	return lc.Calculate(t).Size
}
