package ingestion_engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
)

// Lemmatizer maps a lowercase token to its dictionary base form. Unknown
// words come back unchanged.
type Lemmatizer interface {
	Lemma(word string) string
}

// NewEnglishLemmatizer loads golem's embedded English dictionary.
func NewEnglishLemmatizer() (Lemmatizer, error) {
	l, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("load english lemmatizer: %w", err)
	}
	return l, nil
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// Normalizer is a pure text cleaner: lowercase, strip punctuation, tokenize,
// drop stopwords, lemmatize, rejoin with single spaces.
type Normalizer struct {
	lemmatizer Lemmatizer
	stopwords  map[string]struct{}
}

func NewNormalizer(lemmatizer Lemmatizer) *Normalizer {
	return &Normalizer{lemmatizer: lemmatizer, stopwords: englishStopwords}
}

func (n *Normalizer) Normalize(text string) string {
	text = strings.ToLower(text)
	text = nonWord.ReplaceAllString(text, "")

	tokens := strings.Fields(text)
	out := tokens[:0]
	for _, tok := range tokens {
		if n.isStopword(tok) {
			continue
		}
		lemma := n.lemma(tok)
		// a lemma may itself be a stopword ("being" -> "be"); dropping it here
		// keeps a second pass from changing the output.
		if n.isStopword(lemma) {
			continue
		}
		out = append(out, lemma)
	}
	return strings.Join(out, " ")
}

func (n *Normalizer) isStopword(tok string) bool {
	_, ok := n.stopwords[tok]
	return ok
}

func (n *Normalizer) lemma(tok string) string {
	if n.lemmatizer == nil {
		return tok
	}
	lemma := strings.ToLower(n.lemmatizer.Lemma(tok))
	// multiword or punctuated dictionary forms would not survive re-normalization
	if lemma == "" || nonWord.MatchString(lemma) || strings.ContainsAny(lemma, " \t\n") {
		return tok
	}
	// only accept lemmas that are fixed points, so normalize(normalize(x)) == normalize(x)
	if again := strings.ToLower(n.lemmatizer.Lemma(lemma)); again != lemma {
		return tok
	}
	return lemma
}

// englishStopwords is the NLTK English stopword list.
var englishStopwords = toSet(
	"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you", "you're", "you've",
	"you'll", "you'd", "your", "yours", "yourself", "yourselves", "he", "him", "his", "himself",
	"she", "she's", "her", "hers", "herself", "it", "it's", "its", "itself", "they", "them",
	"their", "theirs", "themselves", "what", "which", "who", "whom", "this", "that", "that'll",
	"these", "those", "am", "is", "are", "was", "were", "be", "been", "being", "have", "has",
	"had", "having", "do", "does", "did", "doing", "a", "an", "the", "and", "but", "if", "or",
	"because", "as", "until", "while", "of", "at", "by", "for", "with", "about", "against",
	"between", "into", "through", "during", "before", "after", "above", "below", "to", "from",
	"up", "down", "in", "out", "on", "off", "over", "under", "again", "further", "then", "once",
	"here", "there", "when", "where", "why", "how", "all", "any", "both", "each", "few", "more",
	"most", "other", "some", "such", "no", "nor", "not", "only", "own", "same", "so", "than",
	"too", "very", "s", "t", "can", "will", "just", "don", "don't", "should", "should've", "now",
	"d", "ll", "m", "o", "re", "ve", "y", "ain", "aren", "aren't", "couldn", "couldn't", "didn",
	"didn't", "doesn", "doesn't", "hadn", "hadn't", "hasn", "hasn't", "haven", "haven't", "isn",
	"isn't", "ma", "mightn", "mightn't", "mustn", "mustn't", "needn", "needn't", "shan", "shan't",
	"shouldn", "shouldn't", "wasn", "wasn't", "weren", "weren't", "won", "won't", "wouldn",
	"wouldn't",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
