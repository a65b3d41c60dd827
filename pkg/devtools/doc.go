// Package devtools serves a read-only view of a running reactive runtime
// over HTTP.
//
// The server answers inspection requests by posting to the runtime
// goroutine with Runtime.Call, so the runtime must be driven by Run:
//
//	stream := devtools.NewStream(0, logger)
//	rt := reactive.New(reactive.WithObserver(stream))
//	go rt.Run(ctx)
//
//	srv := devtools.New(rt, devtools.Config{Addr: ":7070", Stream: stream})
//	err := srv.ListenAndServe(ctx)
//
// /debug/stream pushes one JSON Event per scheduler notification to every
// connected WebSocket client.
package devtools
