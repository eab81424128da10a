// Package image defines the generative image service interface: a concept
// string goes in, raw image bytes plus a MIME type come out. The generated
// image feeds the 2D-to-3D conversion gateway.
package image

import "context"

// Image is a generated image ready for upload.
type Image struct {
	// Data is the raw encoded image.
	Data []byte

	// MIME is the content type, e.g. "image/png".
	MIME string
}

// Provider generates an image for a concept.
type Provider interface {
	// Generate returns an image depicting the concept. The concept string is
	// used directly as the generation prompt subject.
	Generate(ctx context.Context, concept string) (*Image, error)
}
