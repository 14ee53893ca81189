package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"
)

// Signature is the magic prefix every PDF file starts with.
var Signature = []byte("%PDF")

// IsPDFFile reports whether the file at path exists and starts with the PDF
// signature.
func IsPDFFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, len(Signature))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, Signature)
}

// PageCount returns the number of pages of the PDF at path. The parser
// panics on broken cross-reference tables; that is reported as an error.
func PageCount(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("reading pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("reading pdf %s: %w", path, err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

func statSize(path string) (int64, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}
