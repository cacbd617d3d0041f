package pdf

import (
	"errors"

	"github.com/gen2brain/go-fitz"
)

// Document is the subset of a MuPDF document the extractors read.
// *fitz.Document satisfies it.
type Document interface {
	NumPage() int
	Text(pageNumber int) (string, error)
	HTML(pageNumber int, header bool) (string, error)
	Metadata() map[string]string
	Close() error
}

// Opener opens documents from disk or memory.
type Opener interface {
	Open(path string) (Document, error)
	OpenBytes(data []byte) (Document, error)
}

// FitzOpener opens documents with MuPDF.
type FitzOpener struct{}

func (FitzOpener) Open(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (FitzOpener) OpenBytes(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func isPasswordError(err error) bool {
	return errors.Is(err, fitz.ErrNeedsPassword)
}
