package sentence

import "testing"

func TestSegmenterEmitsOnTerminalPunctuation(t *testing.T) {
	cases := []struct {
		name   string
		tokens []string
		want   []string
	}{
		{
			name:   "ascii period",
			tokens: []string{"Hello", " there", "."},
			want:   []string{"Hello there."},
		},
		{
			name:   "cjk full stop",
			tokens: []string{"你好", "世界", "。"},
			want:   []string{"你好世界。"},
		},
		{
			name:   "two sentences one token boundary",
			tokens: []string{"One.", " Two three four."},
			want:   []string{"One.", "Two three four."},
		},
		{
			name:   "semicolon boundary",
			tokens: []string{"wait", "; ", "go"},
			want:   []string{"wait;"},
		},
		{
			name:   "multiple sentences in a single Add call",
			tokens: []string{"Aaaa. Bbbb. Cccc."},
			want:   []string{"Aaaa.", "Bbbb.", "Cccc."},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seg Segmenter
			var got []string
			for _, tok := range tc.tokens {
				got = append(got, seg.Add(tok)...)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v sentences, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("sentence %d: got %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestSegmenterDoesNotFireUnderMinVisibleChars(t *testing.T) {
	var seg Segmenter
	if got := seg.Add("Hi."); len(got) != 0 {
		t.Fatal("expected no sentence: fewer than 4 visible characters, terminator included")
	}
	got := seg.Add("..")
	if len(got) != 1 {
		t.Fatalf("expected a sentence once enough visible characters accumulate, got %v", got)
	} else if got[0] == "" {
		t.Fatal("expected non-empty sentence")
	}
}

func TestSegmenterFlushReturnsResidual(t *testing.T) {
	var seg Segmenter
	seg.Add("no terminator here")
	s, ok := seg.Flush()
	if !ok {
		t.Fatal("expected Flush to return the residual buffer")
	}
	if s != "no terminator here" {
		t.Fatalf("got %q", s)
	}

	if _, ok := seg.Flush(); ok {
		t.Fatal("expected second Flush on empty buffer to return false")
	}
}

func TestSegmenterPrefixMonotonicity(t *testing.T) {
	var seg Segmenter
	var emitted []string
	stream := []string{"First sentence here.", " Second one now.", " Thi", "rd trailing"}

	for _, tok := range stream {
		emitted = append(emitted, seg.Add(tok)...)
	}
	if tail, ok := seg.Flush(); ok {
		emitted = append(emitted, tail)
	}

	want := []string{"First sentence here.", "Second one now.", "Third trailing"}
	if len(emitted) != len(want) {
		t.Fatalf("got %v, want %v", emitted, want)
	}
	for i := range emitted {
		if emitted[i] != want[i] {
			t.Fatalf("sentence %d: got %q, want %q", i, emitted[i], want[i])
		}
	}
}
