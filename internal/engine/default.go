package engine

import "sync"

// Default returns the process-wide engine used by realms opened without an
// explicit engine. It keeps every file in memory.
var Default = sync.OnceValue(func() *Memory {
	return NewMemory()
})
