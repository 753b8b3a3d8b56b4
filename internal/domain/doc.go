// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (channel.go, order.go, diagnostic.go, etc.)
// with shared types and the sink interfaces the runtime renders through. No implementation
// code beyond wire decoding helpers - just contracts.
package domain
