package format

import (
	"errors"
	"fmt"
	"io"
)

// ChunkSize is how much Stream copies between progress updates.
const ChunkSize = 4096

// Stream copies src to dst, rewriting a progress line on progress after
// every chunk: label receives the human readable amount copied so far.
// It returns the number of bytes written.
func Stream(dst io.Writer, src io.Reader, progress io.Writer, label func(amount string) string) (int64, error) {
	buf := make([]byte, ChunkSize)
	var written int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			m, err := dst.Write(buf[:n])
			written += int64(m)
			if err == nil && m < n {
				err = io.ErrShortWrite
			}
			if err != nil {
				fmt.Fprintln(progress)
				return written, err
			}
			fmt.Fprintf(progress, "\r\033[K%s", label(HumanSize(written)))
		}
		if readErr != nil {
			fmt.Fprintln(progress)
			if errors.Is(readErr, io.EOF) {
				return written, nil
			}
			return written, readErr
		}
	}
}
