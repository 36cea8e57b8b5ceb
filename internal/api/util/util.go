package util

// ApplyConversion applies a converter function to each of the models
// provided, returning the slice of converted values. Always returns a
// non-nil slice so JSON marshalling yields [] rather than null.
func ApplyConversion[T any, K any](models []T, converter func(T) K) []K {
	dtos := make([]K, 0, len(models))
	for _, v := range models {
		dtos = append(dtos, converter(v))
	}

	return dtos
}
