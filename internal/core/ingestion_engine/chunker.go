package ingestion_engine

import "strings"

// SplitText splits plain text into overlapping fixed-size windows.
//
// chunkSize: window length in characters (runes).
// overlap:   characters retained from the end of one window at the start of
//            the next, for context bleed between consecutive chunks.
//
// The split is pure and order preserving: chunk i always precedes chunk i+1
// in source-text order, which is what makes chunk indices stable. If overlap
// is at or above chunkSize the window still advances by a full chunkSize, so
// the loop always terminates.
func SplitText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		c := strings.TrimSpace(string(runes[start:end]))
		if c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks
}
