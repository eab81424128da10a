package convert

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeInput_AllFormsProduceIdenticalPayloads(t *testing.T) {
	img := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 1, 2, 3}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	}))
	defer srv.Close()

	ctx := context.Background()
	inputs := map[string]ImageInput{
		"raw":      {Data: img, MIME: "image/png"},
		"data_uri": {DataURI: "data:image/png;base64," + base64.StdEncoding.EncodeToString(img)},
		"url":      {URL: srv.URL + "/img.png"},
	}

	for name, in := range inputs {
		p, err := NormalizeInput(ctx, srv.Client(), in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !bytes.Equal(p.Data, img) {
			t.Errorf("%s: payload bytes differ", name)
		}
		if p.MIME != "image/png" {
			t.Errorf("%s: mime = %q, want image/png", name, p.MIME)
		}
	}
}

func TestNormalizeInput_RawSniffsMIME(t *testing.T) {
	img := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0}
	p, err := NormalizeInput(context.Background(), nil, ImageInput{Data: img})
	if err != nil {
		t.Fatal(err)
	}
	if p.MIME != "image/png" {
		t.Errorf("mime = %q, want sniffed image/png", p.MIME)
	}
}

func TestNormalizeInput_Errors(t *testing.T) {
	srv404 := httptest.NewServer(http.NotFoundHandler())
	defer srv404.Close()

	tests := []struct {
		name string
		in   ImageInput
		kind Kind
	}{
		{"empty", ImageInput{}, KindProvider},
		{"bad data uri", ImageInput{DataURI: "data:image/png;base64,!!!"}, KindProvider},
		{"non-base64 data uri", ImageInput{DataURI: "data:image/png,plain"}, KindProvider},
		{"not a data uri", ImageInput{DataURI: "image/png;base64,AAAA"}, KindProvider},
		{"bad scheme", ImageInput{URL: "ftp://example.com/a.png"}, KindProvider},
		{"remote 404", ImageInput{URL: srv404.URL + "/a.png"}, KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeInput(context.Background(), srv404.Client(), tt.in)
			var jerr *JobError
			if !errors.As(err, &jerr) {
				t.Fatalf("error = %v, want JobError", err)
			}
			if jerr.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", jerr.Kind, tt.kind)
			}
			if jerr.Stage != StageUploading {
				t.Errorf("stage = %q, want uploading", jerr.Stage)
			}
		})
	}
}
