// Package errors provides the coded diagnostics emitted by the reactive runtime.
//
// Every condition has a stable code and a snake_case name:
//   - E1xx: errors. Misuse errors panic at the call site, render-time errors
//     are routed to the nearest boundary.
//   - W2xx: warnings. They are reported to the diagnostic handler and logged,
//     but never change runtime behavior.
//
// # Usage
//
//	err := errors.New("E101").
//	    WithSites(sites).
//	    WithSuggestion("Move the write out of the effect, or guard it with a comparison")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E101: Maximum update depth exceeded (effect_update_depth_exceeded)
//	//
//	//   app/counter.go:42
//	//   ...
//
// FormatCompact returns a single line, FormatJSON a JSON object suitable for
// devtools streams.
package errors
