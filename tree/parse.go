package tree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	tv "github.com/tissguard/validator"
)

// Reserved field names.
const (
	// AttrPrefix is prepended to attribute names kept as fields.
	AttrPrefix = "@"
	// TextField holds element text when the element also has children or
	// attributes.
	TextField = "#text"
)

// Parse normalizes already-decoded document text. Any encoding declared in
// the XML prolog is ignored because the text is UTF-8 by construction.
func Parse(text string) (*Node, error) {
	p := parser{decodeCharset: false}
	return p.parse(strings.NewReader(text))
}

// ParseBytes normalizes raw document bytes, honouring the encoding declared
// in the XML prolog (ISO-8859-1 and Windows-1252 are common in TISS files).
func ParseBytes(data []byte) (*Node, error) {
	p := parser{decodeCharset: true}
	return p.parse(bytes.NewReader(data))
}

// ParseReader normalizes raw document bytes read from r.
func ParseReader(r io.Reader) (*Node, error) {
	p := parser{decodeCharset: true}
	return p.parse(r)
}

// CharsetReader resolves an IANA charset name into a UTF-8 decoding reader.
func CharsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	if enc == nil {
		// registered but unsupported charset: read as-is
		return input, nil
	}
	return enc.NewDecoder().Reader(input), nil
}

func passthroughCharset(_ string, input io.Reader) (io.Reader, error) {
	return input, nil
}

// parser is constructed per call; it holds no state across documents.
type parser struct {
	decodeCharset bool
}

// element accumulates one open XML element until its end tag.
type element struct {
	attrs    []Field
	children []Field
	text     strings.Builder
}

func (p parser) parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	if p.decodeCharset {
		dec.CharsetReader = CharsetReader
	} else {
		dec.CharsetReader = passthroughCharset
	}

	var (
		stack    []*element
		names    []string
		root     *Node
		rootName string
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapSyntax(dec, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && root != nil {
				return nil, posError(dec, fmt.Errorf("second root element <%s> after <%s>", t.Name.Local, rootName))
			}
			el := &element{}
			for _, a := range t.Attr {
				if isNamespaceDecl(a.Name) {
					continue
				}
				el.attrs = append(el.attrs, F(AttrPrefix+a.Name.Local, Text(a.Value)))
			}
			stack = append(stack, el)
			names = append(names, t.Name.Local)

		case xml.EndElement:
			el := stack[len(stack)-1]
			name := names[len(names)-1]
			stack = stack[:len(stack)-1]
			names = names[:len(names)-1]

			node := el.build()
			if len(stack) == 0 {
				root = Map(F(name, node))
				rootName = name
				continue
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, F(name, node))

		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, posError(dec, errors.New("text outside the root element"))
				}
				continue
			}
			stack[len(stack)-1].text.Write(t)
		}
	}

	if len(stack) > 0 {
		return nil, posError(dec, fmt.Errorf("unclosed element <%s>", names[len(names)-1]))
	}
	if root == nil {
		return nil, &tv.ParseError{Err: tv.ErrEmptyInput}
	}
	return root, nil
}

// build turns the accumulated element into a node. Elements with only text
// become scalars; anything else becomes a mapping where repeated child
// names are grouped into sequences at the position of their first
// occurrence.
func (e *element) build() *Node {
	text := strings.TrimSpace(e.text.String())
	if len(e.attrs) == 0 && len(e.children) == 0 {
		return Text(text)
	}

	order := make([]string, 0, len(e.children))
	grouped := make(map[string][]*Node, len(e.children))
	for _, c := range e.children {
		if _, ok := grouped[c.Name]; !ok {
			order = append(order, c.Name)
		}
		grouped[c.Name] = append(grouped[c.Name], c.Value)
	}

	fields := make([]Field, 0, len(e.attrs)+len(order)+1)
	fields = append(fields, e.attrs...)
	for _, name := range order {
		nodes := grouped[name]
		if len(nodes) == 1 {
			fields = append(fields, F(name, nodes[0]))
		} else {
			fields = append(fields, F(name, List(nodes...)))
		}
	}
	if text != "" {
		fields = append(fields, F(TextField, Text(text)))
	}
	return Map(fields...)
}

func isNamespaceDecl(n xml.Name) bool {
	return n.Space == "xmlns" || (n.Space == "" && n.Local == "xmlns")
}

func wrapSyntax(dec *xml.Decoder, err error) error {
	var syn *xml.SyntaxError
	if errors.As(err, &syn) {
		_, col := dec.InputPos()
		return &tv.ParseError{Line: syn.Line, Column: col, Err: errors.New(syn.Msg)}
	}
	return posError(dec, err)
}

func posError(dec *xml.Decoder, err error) error {
	line, col := dec.InputPos()
	return &tv.ParseError{Line: line, Column: col, Err: err}
}
