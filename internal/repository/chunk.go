package repository

// MaxStatementRows bounds how many rows one array-bound statement carries.
const MaxStatementRows = 500

// Chunk splits s into consecutive slices of at most n elements.
func Chunk[T any](s []T, n int) [][]T {
	if n <= 0 || n > MaxStatementRows {
		n = MaxStatementRows
	}
	if len(s) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(s)+n-1)/n)
	for start := 0; start < len(s); start += n {
		end := min(start+n, len(s))
		out = append(out, s[start:end])
	}
	return out
}
