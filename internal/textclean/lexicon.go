package textclean

// englishStopWords is the NLTK English stop-word list the vocabulary was built against.
var englishStopWords = []string{
	"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you", "you're",
	"you've", "you'll", "you'd", "your", "yours", "yourself", "yourselves", "he", "him",
	"his", "himself", "she", "she's", "her", "hers", "herself", "it", "it's", "its",
	"itself", "they", "them", "their", "theirs", "themselves", "what", "which", "who",
	"whom", "this", "that", "that'll", "these", "those", "am", "is", "are", "was", "were",
	"be", "been", "being", "have", "has", "had", "having", "do", "does", "did", "doing",
	"a", "an", "the", "and", "but", "if", "or", "because", "as", "until", "while", "of",
	"at", "by", "for", "with", "about", "against", "between", "into", "through", "during",
	"before", "after", "above", "below", "to", "from", "up", "down", "in", "out", "on",
	"off", "over", "under", "again", "further", "then", "once", "here", "there", "when",
	"where", "why", "how", "all", "any", "both", "each", "few", "more", "most", "other",
	"some", "such", "no", "nor", "not", "only", "own", "same", "so", "than", "too", "very",
	"s", "t", "can", "will", "just", "don", "don't", "should", "should've", "now", "d",
	"ll", "m", "o", "re", "ve", "y", "ain", "aren", "aren't", "couldn", "couldn't", "didn",
	"didn't", "doesn", "doesn't", "hadn", "hadn't", "hasn", "hasn't", "haven", "haven't",
	"isn", "isn't", "ma", "mightn", "mightn't", "mustn", "mustn't", "needn", "needn't",
	"shan", "shan't", "shouldn", "shouldn't", "wasn", "wasn't", "weren", "weren't", "won",
	"won't", "wouldn", "wouldn't",
}

// defaultStopSet is shared read-only by every Pipeline built without WithStopWords.
var defaultStopSet = newStopSet(englishStopWords)

func newStopSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// StopWords returns a copy of the default English stop-word list.
func StopWords() []string {
	out := make([]string, len(englishStopWords))
	copy(out, englishStopWords)
	return out
}

// contractions maps lowercase English contractions to their expansions.
var contractions = map[string]string{
	"ain't":       "are not",
	"aren't":      "are not",
	"can't":       "cannot",
	"can't've":    "cannot have",
	"could've":    "could have",
	"couldn't":    "could not",
	"couldn't've": "could not have",
	"didn't":      "did not",
	"doesn't":     "does not",
	"don't":       "do not",
	"hadn't":      "had not",
	"hadn't've":   "had not have",
	"hasn't":      "has not",
	"haven't":     "have not",
	"he'd":        "he would",
	"he'd've":     "he would have",
	"he'll":       "he will",
	"he's":        "he is",
	"how'd":       "how did",
	"how'll":      "how will",
	"how's":       "how is",
	"i'd":         "I would",
	"i'd've":      "I would have",
	"i'll":        "I will",
	"i'm":         "I am",
	"i've":        "I have",
	"isn't":       "is not",
	"it'd":        "it would",
	"it'll":       "it will",
	"it's":        "it is",
	"let's":       "let us",
	"ma'am":       "madam",
	"mayn't":      "may not",
	"might've":    "might have",
	"mightn't":    "might not",
	"must've":     "must have",
	"mustn't":     "must not",
	"needn't":     "need not",
	"o'clock":     "of the clock",
	"oughtn't":    "ought not",
	"shan't":      "shall not",
	"she'd":       "she would",
	"she'll":      "she will",
	"she's":       "she is",
	"should've":   "should have",
	"shouldn't":   "should not",
	"that'd":      "that would",
	"that's":      "that is",
	"there'd":     "there would",
	"there's":     "there is",
	"they'd":      "they would",
	"they'll":     "they will",
	"they're":     "they are",
	"they've":     "they have",
	"wasn't":      "was not",
	"we'd":        "we would",
	"we'll":       "we will",
	"we're":       "we are",
	"we've":       "we have",
	"weren't":     "were not",
	"what'll":     "what will",
	"what're":     "what are",
	"what's":      "what is",
	"what've":     "what have",
	"when's":      "when is",
	"where'd":     "where did",
	"where's":     "where is",
	"where've":    "where have",
	"who'll":      "who will",
	"who's":       "who is",
	"who've":      "who have",
	"why's":       "why is",
	"won't":       "will not",
	"would've":    "would have",
	"wouldn't":    "would not",
	"y'all":       "you all",
	"you'd":       "you would",
	"you'll":      "you will",
	"you're":      "you are",
	"you've":      "you have",
}
