package fts

import (
	"reflect"
	"testing"
)

func TestWordTokenizer(t *testing.T) {
	tok := NewTokenizer(nil)

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple", "my data", []string{"my", "data"}},
		{"punctuation", "Hello, world! It's fine.", []string{"hello", "world", "it", "s", "fine"}},
		{"numbers kept", "version 2 of 10", []string{"version", "2", "of", "10"}},
		{"unicode", "Esto es un ejemplo de texto", []string{"esto", "es", "un", "ejemplo", "de", "texto"}},
		{"empty", "", nil},
		{"only punctuation", "!?!", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCaseSensitiveTokenizer(t *testing.T) {
	tok := NewTokenizer(&Config{CaseSensitive: true})
	got := tok.Tokenize("Esto es Texto")
	want := []string{"Esto", "es", "Texto"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestStemmingTokenizer(t *testing.T) {
	tok := NewTokenizer(&Config{StemLanguage: "english"})

	got := tok.Tokenize("running runners")
	want := []string{"run", "runner"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	// Inflections of the same verb collapse to a single term.
	got = tok.Tokenize("running runs")
	want = []string{"run", "run"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestRemoveStopwords(t *testing.T) {
	got := RemoveStopwords([]string{"my", "data", "their", "example"})
	want := []string{"data", "example"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
