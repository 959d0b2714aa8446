package analysis

// StopWords is a set of terms excluded from document length counts.
// A nil StopWords contains nothing.
type StopWords map[string]struct{}

func NewStopWords(words ...string) StopWords {
	sw := make(StopWords, len(words))
	for _, w := range words {
		if w != "" {
			sw[w] = struct{}{}
		}
	}
	return sw
}

func (sw StopWords) Contains(term string) bool {
	_, ok := sw[term]
	return ok
}

// Count returns how many of the given tokens are not stop words.
func (sw StopWords) Count(tokens []TokenPosition) int {
	if len(sw) == 0 {
		return len(tokens)
	}
	n := 0
	for _, tp := range tokens {
		if !sw.Contains(tp.Token) {
			n++
		}
	}
	return n
}
