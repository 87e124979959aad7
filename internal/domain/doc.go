// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (subscription.go, frame.go, event.go, notification.go, credentials.go)
// hold shared types and cross-cutting interfaces. No implementation code - just contracts.
package domain
