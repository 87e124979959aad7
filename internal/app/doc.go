// Package app provides the application service layer.
//
// SessionHandler drives one EventSub connection: it reconciles server-side subscriptions on
// every session welcome and turns notification frames into feed entries. Supervisor runs
// one connection at a time and performs the hard reset after fatal failures.
package app
