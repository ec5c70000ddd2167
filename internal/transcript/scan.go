package transcript

// Reports only need the assistant turns of a transcript, so each line gets a
// cheap byte-level screen before the full JSON decode. The scan walks the
// object's top-level key/value pairs and skips nested values wholesale; a
// "type" key inside a nested object never matches.

type lineScan struct {
	buf []byte
	pos int
}

// assistantTurn reports whether the line is a top-level JSON object whose
// "type" field is the string "assistant". Malformed input is never an
// assistant turn.
func assistantTurn(line []byte) bool {
	s := lineScan{buf: line}
	s.ws()
	if !s.eat('{') {
		return false
	}
	for {
		s.ws()
		key, ok := s.str()
		if !ok {
			return false
		}
		s.ws()
		if !s.eat(':') {
			return false
		}
		s.ws()
		if string(key) == "type" {
			val, ok := s.str()
			return ok && string(val) == "assistant"
		}
		if !s.skipValue() {
			return false
		}
		s.ws()
		if !s.eat(',') {
			// End of object, or garbage. Either way no top-level "type".
			return false
		}
	}
}

func (s *lineScan) ws() {
	for s.pos < len(s.buf) && (s.buf[s.pos] == ' ' || s.buf[s.pos] == '\t') {
		s.pos++
	}
}

func (s *lineScan) eat(c byte) bool {
	if s.pos < len(s.buf) && s.buf[s.pos] == c {
		s.pos++
		return true
	}
	return false
}

// str consumes a JSON string and returns its raw bytes (escapes left as-is;
// key and value comparisons here never involve escaped characters).
func (s *lineScan) str() ([]byte, bool) {
	if !s.eat('"') {
		return nil, false
	}
	start := s.pos
	for s.pos < len(s.buf) {
		switch s.buf[s.pos] {
		case '\\':
			s.pos += 2
		case '"':
			v := s.buf[start:s.pos]
			s.pos++
			return v, true
		default:
			s.pos++
		}
	}
	return nil, false
}

// skipValue consumes one JSON value of any kind, leaving pos at the
// following delimiter.
func (s *lineScan) skipValue() bool {
	if s.pos >= len(s.buf) {
		return false
	}
	switch s.buf[s.pos] {
	case '"':
		_, ok := s.str()
		return ok
	case '{', '[':
		return s.skipNested()
	default:
		// Number, true/false, null.
		for s.pos < len(s.buf) {
			c := s.buf[s.pos]
			if c == ',' || c == '}' || c == ']' {
				return true
			}
			s.pos++
		}
		return false
	}
}

func (s *lineScan) skipNested() bool {
	depth := 0
	for s.pos < len(s.buf) {
		switch s.buf[s.pos] {
		case '"':
			if _, ok := s.str(); !ok {
				return false
			}
		case '{', '[':
			depth++
			s.pos++
		case '}', ']':
			depth--
			s.pos++
			if depth == 0 {
				return true
			}
		default:
			s.pos++
		}
	}
	return false
}
