package pubsub

// Match reports whether name matches the glob pattern using the store's own
// PSUBSCRIBE rules:
//
//	*      any run of bytes, including none
//	?      exactly one byte
//	[abc]  one byte from the set; [^abc] negates; [a-z] is a range
//	\x     the literal byte x
//
// An unterminated [ class runs to the end of the pattern.
func Match(pattern, name string) bool {
	var exhausted bool
	return match(pattern, name, &exhausted)
}

// match sets *exhausted when a star has tried every suffix of name without
// success. No enclosing star can then succeed with a shorter prefix, so the
// search stops there and stays polynomial.
func match(pattern, name string, exhausted *bool) bool {
	p, s := 0, 0
	for p < len(pattern) && s < len(name) {
		switch pattern[p] {
		case '*':
			for p+1 < len(pattern) && pattern[p+1] == '*' {
				p++
			}
			if p+1 == len(pattern) {
				return true
			}
			for i := s; i < len(name); i++ {
				if match(pattern[p+1:], name[i:], exhausted) {
					return true
				}
				if *exhausted {
					return false
				}
			}
			*exhausted = true
			return false
		case '?':
			s++
		case '[':
			p++
			negate := p < len(pattern) && pattern[p] == '^'
			if negate {
				p++
			}
			matched := false
			for {
				if p >= len(pattern) {
					p--
					break
				}
				if pattern[p] == '\\' && p+1 < len(pattern) {
					p++
					if pattern[p] == name[s] {
						matched = true
					}
				} else if pattern[p] == ']' {
					break
				} else if p+2 < len(pattern) && pattern[p+1] == '-' {
					lo, hi := pattern[p], pattern[p+2]
					if lo > hi {
						lo, hi = hi, lo
					}
					p += 2
					if c := name[s]; c >= lo && c <= hi {
						matched = true
					}
				} else if pattern[p] == name[s] {
					matched = true
				}
				p++
			}
			if negate {
				matched = !matched
			}
			if !matched {
				return false
			}
			s++
		case '\\':
			if p+1 < len(pattern) {
				p++
			}
			fallthrough
		default:
			if pattern[p] != name[s] {
				return false
			}
			s++
		}
		p++
		if s == len(name) {
			for p < len(pattern) && pattern[p] == '*' {
				p++
			}
			break
		}
	}
	return p == len(pattern) && s == len(name)
}
