package telegram

import "strings"

// MaxMessageRunes is the transport budget per message, kept under the
// Bot API's 4096 limit to leave room for the continuation header.
const MaxMessageRunes = 3900

// ChunkBody splits a digest body into transport-sized chunks, greedily
// packing whole paragraphs (double-newline sections). A paragraph longer
// than the limit is hard-split at the rune boundary.
func ChunkBody(body string, limit int) []string {
	if len([]rune(body)) <= limit {
		return []string{body}
	}

	sections := strings.Split(body, "\n\n")
	var chunks []string
	current := ""

	for _, section := range sections {
		candidate := section
		if current != "" {
			candidate = current + "\n\n" + section
		}
		if len([]rune(candidate)) <= limit {
			current = candidate
			continue
		}

		if current != "" {
			chunks = append(chunks, current)
		}
		if len([]rune(section)) <= limit {
			current = section
			continue
		}

		runes := []rune(section)
		for start := 0; start < len(runes); start += limit {
			end := start + limit
			if end > len(runes) {
				end = len(runes)
			}
			chunks = append(chunks, string(runes[start:end]))
		}
		current = ""
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	if len(chunks) == 0 {
		runes := []rune(body)
		return []string{string(runes[:limit])}
	}
	return chunks
}
