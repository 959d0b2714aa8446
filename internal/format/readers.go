package format

import (
	"strconv"
	"strings"

	"harshagw/bm25eval/internal/feedback"
	"harshagw/bm25eval/internal/search"
)

const indexSep = " : "

// ReadIndex parses a posting index file with lines of the form
// "term : [doc1:tf1], [doc2:tf2]".
func ReadIndex(path string, opts Options) (map[string]map[string]int, Report, error) {
	postings := make(map[string]map[string]int)

	report, err := scan(path, opts, func(line string) error {
		term, rest, ok := strings.Cut(line, indexSep)
		term = strings.TrimSpace(term)
		if !ok || term == "" {
			return malformed("missing %q separator", indexSep)
		}
		if _, dup := postings[term]; dup {
			return malformed("duplicate term %q", term)
		}

		docs := make(map[string]int)
		for _, pair := range strings.Split(rest, ",") {
			pair = strings.TrimSpace(pair)
			if !strings.HasPrefix(pair, "[") || !strings.HasSuffix(pair, "]") {
				return malformed("posting %q is not bracketed", pair)
			}
			pair = pair[1 : len(pair)-1]
			i := strings.LastIndexByte(pair, ':')
			if i <= 0 {
				return malformed("posting %q has no doc:tf", pair)
			}
			docID := strings.TrimSpace(pair[:i])
			tf, err := strconv.Atoi(strings.TrimSpace(pair[i+1:]))
			if err != nil || tf < 1 || docID == "" {
				return malformed("bad posting %q", pair)
			}
			if _, dup := docs[docID]; dup {
				return malformed("doc %s listed twice for %q", docID, term)
			}
			docs[docID] = tf
		}
		postings[term] = docs
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	return postings, report, nil
}

// ReadLengths parses "docID : length" lines.
func ReadLengths(path string, opts Options) (map[string]int, Report, error) {
	lengths := make(map[string]int)

	report, err := scan(path, opts, func(line string) error {
		i := strings.LastIndexByte(line, ':')
		if i < 0 {
			return malformed("missing ':'")
		}
		docID := strings.TrimSpace(line[:i])
		l, err := strconv.Atoi(strings.TrimSpace(line[i+1:]))
		if err != nil || l < 0 || docID == "" {
			return malformed("bad length record")
		}
		if _, dup := lengths[docID]; dup {
			return malformed("duplicate doc %s", docID)
		}
		lengths[docID] = l
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	return lengths, report, nil
}

// ReadJudgments parses TREC-style judgment lines. Column 0 is the query ID
// and column 2 the relevant document; the rest is ignored. A nil normalize
// keeps document IDs as written.
func ReadJudgments(path string, normalize feedback.Normalizer, opts Options) (*feedback.Judgments, Report, error) {
	if normalize == nil {
		normalize = feedback.Identity
	}
	j := feedback.NewJudgments()

	report, err := scan(path, opts, func(line string) error {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return malformed("expected at least 3 columns, got %d", len(fields))
		}
		j.Add(fields[0], normalize(fields[2]))
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	return j, report, nil
}

// ReadQueries parses "queryID query text" lines, keeping file order.
func ReadQueries(path string, opts Options) ([]search.Query, Report, error) {
	var queries []search.Query
	seen := make(map[string]struct{})

	report, err := scan(path, opts, func(line string) error {
		line = strings.TrimSpace(line)
		id, text := line, ""
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			id, text = line[:i], line[i+1:]
		}
		if !safeFileID(id) {
			return malformed("query id %q cannot name an output file", id)
		}
		if _, dup := seen[id]; dup {
			return malformed("duplicate query %s", id)
		}
		seen[id] = struct{}{}
		queries = append(queries, search.Query{ID: id, Text: strings.TrimSpace(text)})
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	return queries, report, nil
}

// safeFileID reports whether id can be used as a single path element.
// Query IDs end up in ranking and analysis file names.
func safeFileID(id string) bool {
	if id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, "/\\\x00")
}

// CorpusDoc is one pre-tokenized document.
type CorpusDoc struct {
	ID     string
	Tokens string
}

// ReadCorpus parses "docID<TAB>tokens" lines. A line holding only an ID is
// an empty document.
func ReadCorpus(path string, opts Options) ([]CorpusDoc, Report, error) {
	var docs []CorpusDoc
	seen := make(map[string]struct{})

	report, err := scan(path, opts, func(line string) error {
		id, tokens, ok := strings.Cut(line, "\t")
		if !ok {
			id = line
		}
		id = strings.TrimSpace(id)
		if id == "" || strings.ContainsAny(id, " ") {
			return malformed("bad document id %q", id)
		}
		if _, dup := seen[id]; dup {
			return malformed("duplicate doc %s", id)
		}
		seen[id] = struct{}{}
		docs = append(docs, CorpusDoc{ID: id, Tokens: tokens})
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	return docs, report, nil
}
