// Package app is the kiosk runtime.
//
// Kiosk owns the channel manager, the announcement scheduler, the diagnostics engine,
// the video monitor, the live-feed toggle and the feedback reporter, and routes decoded
// channel traffic between them. It is the only component that references several
// others. All component state is confined to the event loop; the operator use cases
// (toggle, report, acknowledge, reset, status) hop onto it with eventloop.Call.
package app
