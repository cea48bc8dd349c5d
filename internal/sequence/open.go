package sequence

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
)

// Decompress returns a reader that transparently unwraps gzip input,
// detected by its magic number. Plain text passes through untouched.
func Decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	sig, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("peek input: %w", err)
	}
	if len(sig) == 2 && sig[0] == 0x1f && sig[1] == 0x8b {
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		return gr, nil
	}
	return br, nil
}
