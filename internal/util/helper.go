package util

// TotalLen returns the sum of the lengths of all slices in bufs.
func TotalLen[T any](bufs [][]T) int {
	total := 0
	for _, b := range bufs {
		total += len(b)
	}

	return total
}

// Consume advances bufs by n elements, dropping slices that become empty.
//
// The returned slice shares the backing arrays of bufs. If n exceeds the total
// length of bufs, an empty slice is returned.
func Consume[T any](bufs [][]T, n int) [][]T {
	for len(bufs) > 0 && n > 0 {
		if n < len(bufs[0]) {
			bufs[0] = bufs[0][n:]
			return bufs
		}
		n -= len(bufs[0])
		bufs = bufs[1:]
	}

	// drop leading empty slices so callers see an accurate remaining view
	for len(bufs) > 0 && len(bufs[0]) == 0 {
		bufs = bufs[1:]
	}

	return bufs
}

// Scatter copies src into dsts in order, filling each destination before moving
// to the next one. It returns the number of elements copied.
func Scatter[T any](dsts [][]T, src []T) int {
	copied := 0
	for _, dst := range dsts {
		if len(src) == 0 {
			break
		}
		n := copy(dst, src)
		src = src[n:]
		copied += n
	}

	return copied
}

// Gather copies elements from srcs, in order, into dst until dst is full or srcs
// are exhausted. It returns the number of elements copied.
func Gather[T any](dst []T, srcs [][]T) int {
	copied := 0
	for _, src := range srcs {
		if copied == len(dst) {
			break
		}
		copied += copy(dst[copied:], src)
	}

	return copied
}

// CloneSlices returns a shallow copy of the outer slice so that advancing it
// with Consume doesn't modify the caller's slice headers.
func CloneSlices[T any](bufs [][]T) [][]T {
	clone := make([][]T, len(bufs))
	copy(clone, bufs)

	return clone
}
