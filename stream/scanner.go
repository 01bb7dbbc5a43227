package stream

import "strings"

// GuidePrefix starts the local name of every streamed sub-element.
const GuidePrefix = "guia"

// span is a guide element located in the buffer.
type span struct {
	start, end int
	qname      string // name as written, prefix included
	complete   bool
}

// IsGuideName reports whether a local element name is a guide boundary:
// "guia" followed by an upper case letter (guiaConsulta, guiaSP-SADT).
// The guiasTISS wrapper does not match.
func IsGuideName(local string) bool {
	if len(local) <= len(GuidePrefix) || !strings.HasPrefix(local, GuidePrefix) {
		return false
	}
	c := local[len(GuidePrefix)]
	return c >= 'A' && c <= 'Z'
}

// nextGuide finds the first guide element starting at or after from.
// A guide whose open tag, name or matching close tag is not yet in buf is
// returned with complete == false; so is any tag whose name is cut off by
// the end of buf, since it may still turn out to be a guide. ok is false
// when buf[from:] holds no guide candidate at all.
func nextGuide(buf string, from int) (s span, ok bool) {
	for from < len(buf) {
		i := strings.IndexByte(buf[from:], '<')
		if i < 0 {
			return span{}, false
		}
		start := from + i
		from = start + 1

		nameStart := start + 1
		if nameStart >= len(buf) {
			return span{start: start}, true
		}
		switch buf[nameStart] {
		case '/', '!', '?':
			continue
		}

		nameEnd := nameStart
		for nameEnd < len(buf) && !isNameTerminator(buf[nameEnd]) {
			nameEnd++
		}
		if nameEnd == len(buf) {
			return span{start: start}, true
		}

		qname := buf[nameStart:nameEnd]
		if !IsGuideName(localName(qname)) {
			continue
		}

		gt := strings.IndexByte(buf[nameEnd:], '>')
		if gt < 0 {
			return span{start: start, qname: qname}, true
		}
		gt += nameEnd
		if buf[gt-1] == '/' {
			return span{start: start, end: gt + 1, qname: qname, complete: true}, true
		}

		end, found := closeTagEnd(buf, gt+1, qname)
		if !found {
			return span{start: start, qname: qname}, true
		}
		return span{start: start, end: end, qname: qname, complete: true}, true
	}
	return span{}, false
}

// closeTagEnd finds the first "</qname>" at or after from, allowing
// whitespace before '>', and returns the offset just past it. A name that
// merely starts with qname is skipped.
func closeTagEnd(buf string, from int, qname string) (int, bool) {
	open := "</" + qname
	for {
		k := strings.Index(buf[from:], open)
		if k < 0 {
			return 0, false
		}
		i := from + k + len(open)
		for i < len(buf) && isSpace(buf[i]) {
			i++
		}
		if i == len(buf) {
			return 0, false
		}
		if buf[i] == '>' {
			return i + 1, true
		}
		from = i
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isNameTerminator(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '>', '/':
		return true
	}
	return false
}

func localName(qname string) string {
	if i := strings.LastIndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}
