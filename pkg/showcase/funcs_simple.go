package showcase

import (
	"fmt"
	"math/rand/v2"
	"reflect"
)

// add returns a + b.
func add(a, b int) int {
	return a + b
}

// sub returns a - b.
func sub(a, b int) int {
	return a - b
}

// mult returns a * b.
func mult(a, b int) int {
	return a * b
}

// div returns a / b (integer division), or 0 when b is 0.
func div(a, b int) int {
	if b == 0 {
		return 0
	}
	return a / b
}

// mod returns a % b, or 0 when b is 0.
func mod(a, b int) int {
	if b == 0 {
		return 0
	}
	return a % b
}

// inc returns i + 1.
func inc(i int) int {
	return i + 1
}

// dec returns i - 1.
func dec(i int) int {
	return i - 1
}

// percent formats part of total as a percentage with one decimal place.
func percent(part, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)/float64(total)*100)
}

// repeat returns a slice of integers from 0 to count-1, for range loops in
// templates.
func repeat(count int) []int {
	if count < 0 {
		return []int{}
	}
	s := make([]int, count)
	for i := 0; i < count; i++ {
		s[i] = i
	}
	return s
}

// list returns a slice containing all of its arguments.
func list(args ...any) []any {
	return args
}

// randomChoice returns a single random element of a slice, or nil for
// anything that is not a non-empty slice.
func randomChoice(slice any) any {
	if slice == nil {
		return nil
	}

	val := reflect.ValueOf(slice)
	if val.Kind() != reflect.Slice || val.Len() == 0 {
		return nil
	}

	return val.Index(rand.IntN(val.Len())).Interface()
}

// randomInt returns a random integer in [low, high), or low when the range
// is empty.
func randomInt(low, high int) int {
	if low >= high {
		return low
	}
	return rand.IntN(high-low) + low
}
