package tavily

import "testing"

func TestSourceFromURL(t *testing.T) {
	cases := map[string]string{
		"https://www.hurriyet.com.tr/gundem/x": "Hurriyet",
		"https://apa.az/en/news/1":             "Apa",
		"http://kommersant.ru/doc/2":           "Kommersant",
		"https://ülke.tr/haber":                "Ülke",
		"https://www./x":                       "Unknown Source",
		"not a url at all ::":                  "Unknown Source",
		"":                                     "Unknown Source",
	}
	for in, want := range cases {
		if got := SourceFromURL(in); got != want {
			t.Errorf("SourceFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}
