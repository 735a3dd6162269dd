package providers

import "testing"

func TestNormalizeForSpeech(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips code fence entirely",
			in:   "Here is code:\n```go\nfmt.Println(1)\n```\nDone.",
			want: "Here is code: Done.",
		},
		{
			name: "strips emphasis and inline code",
			in:   "Use **bold**, *italic*, and `inline` text.",
			want: "Use bold, italic, and inline text.",
		},
		{
			name: "strips headings and links",
			in:   "## Heading\nSee [the docs](https://example.com) for more.",
			want: "Heading See the docs for more.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeForSpeech(tc.in)
			if got != tc.want {
				t.Fatalf("NormalizeForSpeech(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
