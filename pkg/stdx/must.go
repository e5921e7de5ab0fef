package stdx

// Must0 is a helper function that panics if the provided error is not nil.
// It is intended to be used for error handling in situations where an error
// is not expected and should cause the program to terminate if it occurs.
//
// Parameters:
//   - err: The error to check. If it is not nil, the function will panic.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 is a generic function that takes a value of any type and an error.
// If the error is not nil, it panics with the error. Otherwise, it returns the value.
//
// This function is useful for simplifying error handling in cases where you
// are confident that an error will not occur, or where you want to handle
// errors by panicking.
//
// T: The type of the value to be returned.
// v: The value to be returned if err is nil.
// err: The error to check.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Must2 is a helper function that takes two values of any type and an error.
// If the error is not nil, it panics with the error. Otherwise, it returns the two values.
//
// Example usage:
//
//	result1, result2 := Must2(someFunctionThatReturnsTwoValuesAndError())
//
// T: The type of the first value.
// V: The type of the second value.
func Must2[T any, V any](t T, v V, err error) (T, V) {
	if err != nil {
		panic(err)
	}
	return t, v
}
