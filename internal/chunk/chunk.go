// Package chunk splits raw document text into overlapping, sentence-aware
// segments sized for embedding. The splitter prefers to end each chunk at a
// sentence terminator or newline past the window midpoint so that embeddings
// are computed over coherent text rather than arbitrary cut points.
package chunk

import "strings"

// Default window parameters, tuned for typical embedding model context sizes.
const (
	// DefaultSize is the target chunk size in characters.
	DefaultSize = 500
	// DefaultOverlap is the number of characters shared between consecutive chunks.
	DefaultOverlap = 50
)

// Split divides text into overlapping chunks of roughly size characters.
// A size or overlap of <= 0 selects the default. An overlap >= size is
// clamped to size/10 — consecutive windows must strictly advance or the
// splitter would never terminate.
//
// Text no longer than one window is returned whole as a single chunk.
// Otherwise each window tries to end at the last '.' or '\n' found after the
// window midpoint; when no such boundary exists the window is cut at the raw
// size. Chunks are trimmed of surrounding whitespace and empty chunks are
// dropped. The next window starts overlap characters before the previous
// window's end.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size / 10
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		window := runes[start:end]

		// Prefer a sentence boundary in the back half of the window.
		if end < len(runes) {
			if bp := lastBoundary(window); bp > size/2 {
				window = window[:bp+1]
				end = start + bp + 1
			}
		}

		if c := strings.TrimSpace(string(window)); c != "" {
			chunks = append(chunks, c)
		}

		next := end - overlap
		if next <= start {
			// The boundary cut landed inside the overlap region; skipping the
			// overlap for this step keeps the window moving forward.
			next = end
		}
		start = next
	}

	return chunks
}

// lastBoundary returns the index of the last sentence terminator ('.') or
// newline in window, or -1 if none exists.
func lastBoundary(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' || window[i] == '\n' {
			return i
		}
	}
	return -1
}
