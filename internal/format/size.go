package format

import "fmt"

var sizeUnits = []string{" bytes", "KB", "MB", "GB", "TB"}

// HumanSize renders a byte count with one decimal in the largest unit
// that keeps it under 1024, e.g. "12.0 bytes" or "1.5MB".
func HumanSize(n int64) string {
	size := float64(n)
	for _, unit := range sizeUnits[:len(sizeUnits)-1] {
		if size < 1024 {
			return fmt.Sprintf("%3.1f%s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%3.1f%s", size, sizeUnits[len(sizeUnits)-1])
}
