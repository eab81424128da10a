package convert

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxImageBytes caps how much image data an input form may carry. Meshy
// rejects larger uploads anyway, so failing early saves a round trip.
const maxImageBytes = 20 << 20

// ImageInput is one conversion input in any of its accepted forms: raw bytes,
// a base64 data URI, or a remote URL. Exactly one form should be set.
type ImageInput struct {
	// Data holds raw image bytes (e.g. a multipart file upload).
	Data []byte

	// MIME is the content type of Data. Ignored for the other forms, which
	// carry their own type information.
	MIME string

	// DataURI is an RFC 2397 "data:" URI with base64 payload.
	DataURI string

	// URL is a remote http(s) location to fetch the image from.
	URL string
}

// Payload is a normalized image ready for upload. All three input forms
// reduce to the same Payload for identical image content.
type Payload struct {
	Data []byte
	MIME string
}

// NormalizeInput reduces an [ImageInput] to a [Payload]. Remote URLs are
// fetched with the supplied client (http.DefaultClient when nil). Failures
// are returned as [JobError] with stage "uploading" since input handling is
// part of the upload boundary.
func NormalizeInput(ctx context.Context, client *http.Client, in ImageInput) (*Payload, error) {
	switch {
	case len(in.Data) > 0:
		mime := in.MIME
		if mime == "" {
			mime = http.DetectContentType(in.Data)
		}
		return &Payload{Data: in.Data, MIME: mime}, nil
	case in.DataURI != "":
		return decodeDataURI(in.DataURI)
	case in.URL != "":
		return fetchRemote(ctx, client, in.URL)
	default:
		return nil, &JobError{Kind: KindProvider, Stage: "uploading", Err: fmt.Errorf("no image supplied")}
	}
}

// decodeDataURI parses "data:<mime>;base64,<payload>".
func decodeDataURI(uri string) (*Payload, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, &JobError{Kind: KindProvider, Stage: "uploading", Err: fmt.Errorf("not a data URI")}
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, &JobError{Kind: KindProvider, Stage: "uploading", Err: fmt.Errorf("data URI has no payload")}
	}
	mime, b64 := strings.CutSuffix(meta, ";base64")
	if !b64 {
		return nil, &JobError{Kind: KindProvider, Stage: "uploading", Err: fmt.Errorf("data URI is not base64-encoded")}
	}
	if mime == "" {
		mime = "text/plain"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &JobError{Kind: KindProvider, Stage: "uploading", Err: fmt.Errorf("decode data URI: %w", err)}
	}
	if len(data) > maxImageBytes {
		return nil, &JobError{Kind: KindProvider, Stage: "uploading", Err: fmt.Errorf("image exceeds %d bytes", maxImageBytes)}
	}
	return &Payload{Data: data, MIME: mime}, nil
}

// fetchRemote downloads the image from an http(s) URL.
func fetchRemote(ctx context.Context, client *http.Client, url string) (*Payload, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, &JobError{Kind: KindProvider, Stage: "uploading", Err: fmt.Errorf("unsupported image URL scheme")}
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &JobError{Kind: KindTransport, Stage: "uploading", Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &JobError{Kind: KindTransport, Stage: "uploading", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &JobError{Kind: KindTransport, Stage: "uploading", Err: fmt.Errorf("fetch image: status %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, &JobError{Kind: KindTransport, Stage: "uploading", Err: fmt.Errorf("read image body: %w", err)}
	}
	if len(data) > maxImageBytes {
		return nil, &JobError{Kind: KindProvider, Stage: "uploading", Err: fmt.Errorf("image exceeds %d bytes", maxImageBytes)}
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return &Payload{Data: data, MIME: mime}, nil
}
