package matching

// Compare orders two patterns by specificity and returns a negative number
// when a should be tried before b. Patterns without a glob come first, then
// patterns with more literal segments; remaining ties go to the first
// position where one has a literal and the other a capture. Zero means the
// caller's registration order decides.
func Compare(a, b *Pattern) int {
	if a.HasGlob() != b.HasGlob() {
		if a.HasGlob() {
			return 1
		}
		return -1
	}
	if la, lb := a.Literals(), b.Literals(); la != lb {
		return lb - la
	}
	n := min(len(a.segments), len(b.segments))
	for i := range n {
		ka, kb := a.segments[i].Kind, b.segments[i].Kind
		if ka != kb {
			return int(ka) - int(kb)
		}
	}
	return 0
}
