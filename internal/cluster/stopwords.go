package cluster

// stopWords is the fixed deny-list used by keyword labeling: common English
// function words plus news-domain filler that would otherwise dominate
// every cluster's label.
var stopWords = buildStopWordSet([]string{
	"the", "a", "an", "and", "or", "but", "if", "then", "else", "when",
	"at", "by", "for", "with", "about", "against", "between", "into",
	"through", "during", "before", "after", "above", "below", "to", "from",
	"up", "down", "in", "out", "on", "off", "over", "under", "again",
	"further", "once", "here", "there", "all", "any", "both", "each",
	"few", "more", "most", "other", "some", "such", "no", "nor", "not",
	"only", "own", "same", "so", "than", "too", "very", "s", "t", "can",
	"will", "just", "don", "should", "now", "is", "are", "was", "were",
	"be", "been", "being", "have", "has", "had", "having", "do", "does",
	"did", "doing", "would", "could", "might", "must", "shall", "i", "me",
	"my", "myself", "we", "our", "ours", "ourselves", "you", "your",
	"yours", "yourself", "yourselves", "he", "him", "his", "himself",
	"she", "her", "hers", "herself", "it", "its", "itself", "they",
	"them", "their", "theirs", "themselves", "what", "which", "who",
	"whom", "this", "that", "these", "those", "am", "as", "until",
	"while", "of", "because", "until", "against", "per", "via",
	"said", "says", "say", "saying", "report", "reports", "reported",
	"reporting", "news", "year", "years", "week", "weeks", "month",
	"months", "day", "days", "time", "times", "today", "yesterday",
	"tomorrow", "according", "told", "tells", "telling", "also",
	"new", "like", "one", "two", "three", "first", "last", "many",
	"much", "make", "made", "making", "get", "gets", "getting", "got",
	"go", "goes", "going", "went", "gone", "see", "sees", "seeing",
	"saw", "seen", "come", "comes", "coming", "came", "take", "takes",
	"taking", "took", "taken", "use", "uses", "using", "used",
	"including", "include", "includes", "included", "amid", "amidst",
	"following", "after", "ahead", "latest", "breaking", "update",
	"updated", "updates", "percent", "percentage", "million", "billion",
	"thousand", "people", "man", "woman", "men", "women", "world",
	"official", "officials", "government", "company", "companies",
	"statement", "press", "release", "article", "story", "feature",
	"still", "even", "back", "well", "way", "ways", "may", "might",
})

func buildStopWordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func isStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}
