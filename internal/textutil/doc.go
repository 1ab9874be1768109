// Package textutil normalizes user-supplied names into safe filesystem path
// segments.
//
// Names are NFC-normalized so the same Hebrew or accented title always maps to
// the same directory regardless of how the client composed it.
package textutil
