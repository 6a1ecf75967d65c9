package commands

import "fmt"

// ValidateEntryName enforces the naming rule shared by /profile, /macro,
// /branch-alias, and /session-bookmark: the first rune must be an ASCII
// letter, and every rune after it must be an ASCII letter, digit, '-', or
// '_'.
func ValidateEntryName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if !isASCIILetter(name[0]) {
		return fmt.Errorf("name %q must start with an ASCII letter", name)
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !isASCIILetter(c) && !isASCIIDigit(c) && c != '-' && c != '_' {
			return fmt.Errorf("name %q contains invalid character %q", name, string(c))
		}
	}
	return nil
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isASCIIDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// SuggestCommand returns the single registered command name within edit
// distance 1 of name, if exactly one such candidate exists.
func SuggestCommand(name string, candidates []string) (string, bool) {
	var match string
	count := 0
	for _, c := range candidates {
		if editDistanceAtMost1(name, c) {
			match = c
			count++
			if count > 1 {
				return "", false
			}
		}
	}
	if count == 1 {
		return match, true
	}
	return "", false
}

// editDistanceAtMost1 reports whether a and b differ by at most one
// single-character insertion, deletion, or substitution.
func editDistanceAtMost1(a, b string) bool {
	if a == b {
		return true
	}
	la, lb := len(a), len(b)
	if abs(la-lb) > 1 {
		return false
	}

	if la == lb {
		diff := 0
		for i := 0; i < la; i++ {
			if a[i] != b[i] {
				diff++
				if diff > 1 {
					return false
				}
			}
		}
		return diff == 1
	}

	// la != lb by exactly 1: check for a single insertion/deletion.
	longer, shorter := a, b
	if len(shorter) > len(longer) {
		longer, shorter = shorter, longer
	}
	i, j, skipped := 0, 0, false
	for i < len(longer) && j < len(shorter) {
		if longer[i] == shorter[j] {
			i++
			j++
			continue
		}
		if skipped {
			return false
		}
		skipped = true
		i++
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
