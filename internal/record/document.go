package record

import (
	"bytes"
	"encoding/xml"
	"sort"
)

// Document renders the group as the UTF-8 payload handed to backend
// procedures: a root <object> element with one child element per
// attribute, element name = attribute key, no element attributes, no
// namespaces.
func (g *Group) Document() []byte {
	return document(g.DN, g.GlobalID, nil, g.Attrs)
}

// Document renders the person, including the derived login and password.
func (p *Person) Document() []byte {
	return document(p.DN, p.GlobalID, [][2]string{
		{"login", p.Login},
		{"password", p.Password},
	}, p.Attrs)
}

// document writes the header elements in a fixed order, then the
// remaining attributes sorted by key so equal records always serialize
// identically.
func document(dn, globalID string, extra [][2]string, attrs map[string]string) []byte {
	var buf bytes.Buffer
	buf.WriteString("<object>")
	writeElement(&buf, "dn", dn)
	writeElement(&buf, "objectGUID", globalID)
	for _, kv := range extra {
		writeElement(&buf, kv[0], kv[1])
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeElement(&buf, k, attrs[k])
	}
	buf.WriteString("</object>")
	return buf.Bytes()
}

func writeElement(buf *bytes.Buffer, name, value string) {
	buf.WriteByte('<')
	buf.WriteString(name)
	buf.WriteByte('>')
	_ = xml.EscapeText(buf, []byte(value)) // bytes.Buffer writes cannot fail
	buf.WriteString("</")
	buf.WriteString(name)
	buf.WriteByte('>')
}
