package ingest

import "strings"

// ChunkSize is the default chunk length in characters.
const ChunkSize = 2000

// ChunkText splits text into chunks of roughly size characters, breaking at
// sentence boundaries. A single sentence longer than size becomes its own
// chunk.
func ChunkText(text string, size int) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = ChunkSize
	}

	var (
		chunks  []string
		current []string
		length  int
	)
	for _, sentence := range strings.Split(text, ". ") {
		if length+len(sentence) > size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ". ")+".")
			current, length = nil, 0
		}
		current = append(current, sentence)
		length += len(sentence)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ". "))
	}
	return chunks
}
