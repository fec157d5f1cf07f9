package classify

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func readCloserFor(data []byte) func(string) (io.ReadCloser, error) {
	return func(string) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

func TestClassify_ExtensionTable(t *testing.T) {
	cases := map[string]Result{
		"main.go":        {Code, "go"},
		"app.py":         {Code, "python"},
		"README.md":      {Text, ""},
		"logo.png":       {Binary, ""},
		"data.json":      {Text, ""},
	}

	for path, want := range cases {
		got, err := Classify(path, nil)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", path, err)
		}
		if got != want {
			t.Errorf("%s: got %+v, want %+v", path, got, want)
		}
	}
}

func TestClassify_UnknownExtensionSniffsText(t *testing.T) {
	got, err := Classify("Makefile.unknownext", readCloserFor([]byte("all:\n\tgo build ./...\n")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Classification != Text {
		t.Fatalf("expected text classification, got %+v", got)
	}
}

func TestClassify_UnknownExtensionSniffsBinary(t *testing.T) {
	got, err := Classify("blob.unknownext", readCloserFor([]byte{0x00, 0x01, 0x02, 0xFF}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Classification != Binary {
		t.Fatalf("expected binary classification, got %+v", got)
	}
}

func TestClassify_SniffIOFailureDeclaresBinary(t *testing.T) {
	opener := func(string) (io.ReadCloser, error) {
		return nil, errors.New("permission denied")
	}
	got, err := Classify("secret.unknownext", opener)
	if err == nil {
		t.Fatalf("expected a non-fatal error to be surfaced")
	}
	if got.Classification != Binary {
		t.Fatalf("expected binary classification on I/O failure, got %+v", got)
	}
}

func TestClassify_CaseInsensitiveExtension(t *testing.T) {
	got, err := Classify("IMAGE.PNG", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Classification != Binary {
		t.Fatalf("expected binary classification for uppercase extension, got %+v", got)
	}
}
