package pdfinspect

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Counter reads the page count from a PDF's page tree.
type Counter struct{}

func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) CountPages(content []byte) (pages int, err error) {
	if len(content) == 0 {
		return 0, fmt.Errorf("empty pdf payload")
	}
	// The parser panics on some malformed trailers.
	defer func() {
		if r := recover(); r != nil {
			pages = 0
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}
