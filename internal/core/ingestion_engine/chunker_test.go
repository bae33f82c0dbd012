package ingestion_engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextThreeChunks(t *testing.T) {
	// 3000 characters with chunkSize=1200, overlap=200 advance by 1000:
	// windows start at 0, 1000, 2000.
	text := strings.Repeat("a", 3000)

	chunks := SplitText(text, 1200, 200)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1200)
	assert.Len(t, chunks[1], 1200)
	assert.Len(t, chunks[2], 1000)
}

func TestSplitTextReconstructsSource(t *testing.T) {
	text := strings.Repeat("abcdefghij", 300) // 3000 chars, no whitespace so trim is a no-op
	chunkSize, overlap := 1200, 200

	chunks := SplitText(text, chunkSize, overlap)
	require.NotEmpty(t, chunks)

	// Each chunk's non-overlapping suffix, concatenated in order, is the source.
	rebuilt := chunks[0]
	for _, c := range chunks[1:] {
		rebuilt += c[overlap:]
	}
	assert.Equal(t, text, rebuilt)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), chunkSize)
	}
}

func TestSplitTextTerminatesWhenOverlapTooLarge(t *testing.T) {
	text := strings.Repeat("x", 500)

	for _, overlap := range []int{100, 99, 100, 150, 200} {
		chunks := SplitText(text, 100, overlap)
		assert.NotEmpty(t, chunks)
	}

	// overlap >= chunkSize must still advance by a full window.
	chunks := SplitText(text, 100, 100)
	assert.Len(t, chunks, 5)

	chunks = SplitText(text, 100, 250)
	assert.Len(t, chunks, 5)
}

func TestSplitTextDropsWhitespaceOnlyWindows(t *testing.T) {
	text := "hello" + strings.Repeat(" ", 50) + "world"

	chunks := SplitText(text, 10, 0)
	for _, c := range chunks {
		assert.NotEmpty(t, c)
	}
	assert.Equal(t, "hello", chunks[0])
}

func TestSplitTextEmptyInput(t *testing.T) {
	assert.Empty(t, SplitText("", 1200, 200))
	assert.Empty(t, SplitText("   \n\t  ", 1200, 200))
	assert.Empty(t, SplitText("anything", 0, 0))
}

func TestSplitTextOrderPreserving(t *testing.T) {
	text := "0123456789"
	chunks := SplitText(text, 4, 1)

	// Advance is 3: windows 0123, 3456, 6789, 9.
	require.Equal(t, []string{"0123", "3456", "6789", "9"}, chunks)
}
