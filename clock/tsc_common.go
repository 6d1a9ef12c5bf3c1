package clock

import "errors"

// ErrTSCUnsupported is returned by NewTSC when the current platform or
// CPU lacks a usable invariant cycle counter. Per spec §9's platform
// alternatives note, the Benchmark Clock treats this as an expected
// outcome: it simply omits the TSC component.
var ErrTSCUnsupported = errors.New("clock: tsc unsupported on this platform")
