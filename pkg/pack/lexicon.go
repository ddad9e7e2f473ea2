package pack

// Lexicon maps normalized terms to dense, 1-based term ids assigned in
// first-seen order. Id 0 is never assigned; it is reserved so that posting
// streams can use 0 as a terminator without ambiguity.
type Lexicon struct {
	byTerm []string // id i (1-based) -> term, byTerm[0] is a placeholder
	ids    map[string]uint32
}

func newLexicon() *Lexicon {
	return &Lexicon{
		byTerm: []string{""},
		ids:    make(map[string]uint32),
	}
}

// getOrAssign returns the id for term, assigning the next id if unseen.
// The second return value reports whether the term already existed.
func (l *Lexicon) getOrAssign(term string) (uint32, bool) {
	if id, ok := l.ids[term]; ok {
		return id, true
	}
	id := uint32(len(l.byTerm))
	l.byTerm = append(l.byTerm, term)
	l.ids[term] = id
	return id, false
}

// ID returns the term id for term, or (0, false) if it is not present.
func (l *Lexicon) ID(term string) (uint32, bool) {
	id, ok := l.ids[term]
	return id, ok
}

// Term returns the term for id, or "" if id is out of range.
func (l *Lexicon) Term(id uint32) string {
	if id == 0 || int(id) >= len(l.byTerm) {
		return ""
	}
	return l.byTerm[id]
}

// Len returns the number of distinct terms (not counting the reserved id 0).
func (l *Lexicon) Len() int {
	return len(l.byTerm) - 1
}

// lexiconJSON is the persisted lexicon shape: a JSON object mapping each
// term to its term id, keyed by the term string itself.
type lexiconJSON map[string]uint32

func (l *Lexicon) toJSON() lexiconJSON {
	out := make(lexiconJSON, l.Len())
	for term, id := range l.ids {
		out[term] = id
	}
	return out
}

func lexiconFromJSON(m lexiconJSON) *Lexicon {
	maxID := uint32(0)
	for _, id := range m {
		if id > maxID {
			maxID = id
		}
	}
	l := &Lexicon{
		byTerm: make([]string, maxID+1),
		ids:    make(map[string]uint32, len(m)),
	}
	for term, id := range m {
		l.byTerm[id] = term
		l.ids[term] = id
	}
	return l
}
