package utils

import (
	"strings"

	"github.com/shirou/gopsutil/cpu"
)

// SliceToSet converts a slice of any comparable type to a set represented by a map[T]struct{}.
func SliceToSet[T comparable](slice []T) map[T]struct{} {
	set := make(map[T]struct{}, len(slice))
	for _, item := range slice {
		set[item] = struct{}{}
	}
	return set
}

// LowerAll returns a lower-cased copy of the given strings.
func LowerAll(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = strings.ToLower(item)
	}
	return out
}

// ResolveThreads turns the configured worker count into a concrete one.
// Zero means one worker per logical CPU.
func ResolveThreads(threads int) int {
	if threads > 0 {
		return threads
	}
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
