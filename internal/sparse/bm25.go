// Package sparse implements a BM25-style term-weight encoder. The encoder is
// fit per session over the session's chunk corpus; its state is small enough
// to persist as a JSON blob and update incrementally at index time.
package sparse

import (
	"math"
	"regexp"
	"strings"

	"paperchat/internal/ragerr"
)

const (
	defaultK1 = 1.2
	defaultB  = 0.75
)

// State is the corpus statistics an encoder needs: document count, total
// token length, and per-term document frequencies.
type State struct {
	DocCount int            `json:"doc_count"`
	TotalLen int64          `json:"total_len"`
	DF       map[string]int `json:"df"`
}

type Encoder struct {
	k1    float64
	b     float64
	state State
}

func NewEncoder() *Encoder {
	return &Encoder{k1: defaultK1, b: defaultB, state: State{DF: map[string]int{}}}
}

func NewEncoderFromState(st State) *Encoder {
	if st.DF == nil {
		st.DF = map[string]int{}
	}
	return &Encoder{k1: defaultK1, b: defaultB, state: st}
}

func (e *Encoder) State() State { return e.state }

func (e *Encoder) Ready() bool { return e.state.DocCount > 0 }

// Fit resets the state and absorbs the given corpus.
func (e *Encoder) Fit(texts []string) {
	e.state = State{DF: map[string]int{}}
	e.Update(texts)
}

// Update incrementally absorbs additional documents into the fit state.
func (e *Encoder) Update(texts []string) {
	for _, text := range texts {
		tokens := Tokenize(text)
		if len(tokens) == 0 {
			continue
		}
		e.state.DocCount++
		e.state.TotalLen += int64(len(tokens))
		seen := map[string]struct{}{}
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			e.state.DF[tok]++
		}
	}
}

// EncodeDocument computes BM25 term weights for one chunk text.
func (e *Encoder) EncodeDocument(text string) (map[string]float64, error) {
	if !e.Ready() {
		return nil, ragerr.Newf(ragerr.EncoderNotReady, "sparse.EncodeDocument", "encoder has not been fit")
	}
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return map[string]float64{}, nil
	}
	tf := map[string]int{}
	for _, tok := range tokens {
		tf[tok]++
	}
	avgdl := float64(e.state.TotalLen) / float64(e.state.DocCount)
	norm := e.k1 * (1 - e.b + e.b*float64(len(tokens))/avgdl)

	out := make(map[string]float64, len(tf))
	for term, count := range tf {
		idf := e.idf(term)
		if idf <= 0 {
			continue
		}
		c := float64(count)
		out[term] = idf * c * (e.k1 + 1) / (c + norm)
	}
	return out, nil
}

// EncodeQuery computes IDF weights for the query terms (standard BM25 query
// side: term frequency in the query is ignored).
func (e *Encoder) EncodeQuery(query string) (map[string]float64, error) {
	if !e.Ready() {
		return nil, ragerr.Newf(ragerr.EncoderNotReady, "sparse.EncodeQuery", "encoder has not been fit")
	}
	out := map[string]float64{}
	for _, term := range Tokenize(query) {
		if _, ok := out[term]; ok {
			continue
		}
		if idf := e.idf(term); idf > 0 {
			out[term] = idf
		}
	}
	return out, nil
}

func (e *Encoder) idf(term string) float64 {
	df := e.state.DF[term]
	n := float64(e.state.DocCount)
	return math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
}

var tokenRe = regexp.MustCompile(`\pL[\pL\pN]*`)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"on": {}, "for": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "by": {},
	"with": {}, "as": {}, "at": {}, "that": {}, "this": {}, "it": {}, "we": {}, "our": {},
	"from": {}, "can": {}, "not": {},
}

// Tokenize lowercases, extracts letter-initial word tokens and drops
// stopwords and single-character tokens.
func Tokenize(text string) []string {
	raw := tokenRe.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len(tok) < 2 {
			continue
		}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}
