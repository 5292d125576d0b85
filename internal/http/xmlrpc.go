package httpx

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// xmlrpcTimeLayout is the dateTime.iso8601 layout XML-RPC clients expect.
const xmlrpcTimeLayout = "20060102T15:04:05"

// Fault codes for malformed requests.
const (
	faultParse         = -32700
	faultUnknownMethod = -32601
)

// xmlrpcFault is an XML-RPC fault response.
type xmlrpcFault struct {
	Code    int
	Message string
}

func (f *xmlrpcFault) Error() string { return fmt.Sprintf("xmlrpc fault %d: %s", f.Code, f.Message) }

// xmlrpcStruct is an XML-RPC struct. Members are encoded in key order.
type xmlrpcStruct map[string]any

var errNotMethodCall = errors.New("missing methodCall")

// parseMethodCall reads a methodCall document and returns the method name
// and decoded params.
func parseMethodCall(r io.Reader) (string, []any, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return "", nil, err
	}
	call := doc.SelectElement("methodCall")
	if call == nil {
		return "", nil, errNotMethodCall
	}
	nameEl := call.SelectElement("methodName")
	if nameEl == nil || strings.TrimSpace(nameEl.Text()) == "" {
		return "", nil, errors.New("missing methodName")
	}
	var args []any
	if params := call.SelectElement("params"); params != nil {
		for _, p := range params.SelectElements("param") {
			v, err := decodeValue(p.SelectElement("value"))
			if err != nil {
				return "", nil, err
			}
			args = append(args, v)
		}
	}
	return strings.TrimSpace(nameEl.Text()), args, nil
}

// decodeValue converts a <value> element. Untyped values are strings.
func decodeValue(el *etree.Element) (any, error) {
	if el == nil {
		return nil, errors.New("missing value")
	}
	children := el.ChildElements()
	if len(children) == 0 {
		return el.Text(), nil
	}
	typed := children[0]
	text := strings.TrimSpace(typed.Text())
	switch typed.Tag {
	case "int", "i4", "i8":
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad %s %q", typed.Tag, text)
		}
		return n, nil
	case "boolean":
		return text == "1", nil
	case "double":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad double %q", text)
		}
		return f, nil
	case "string", "base64":
		return typed.Text(), nil
	case "dateTime.iso8601":
		t, err := time.Parse(xmlrpcTimeLayout, text)
		if err != nil {
			return text, nil
		}
		return t, nil
	case "nil":
		return nil, nil
	case "struct":
		out := xmlrpcStruct{}
		for _, m := range typed.SelectElements("member") {
			name := m.SelectElement("name")
			if name == nil {
				return nil, errors.New("struct member without name")
			}
			v, err := decodeValue(m.SelectElement("value"))
			if err != nil {
				return nil, err
			}
			out[name.Text()] = v
		}
		return out, nil
	case "array":
		out := []any{}
		if data := typed.SelectElement("data"); data != nil {
			for _, ve := range data.SelectElements("value") {
				v, err := decodeValue(ve)
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %q", typed.Tag)
	}
}

// encodeValue appends v to parent as a <value> element.
func encodeValue(parent *etree.Element, v any) {
	val := parent.CreateElement("value")
	switch x := v.(type) {
	case nil:
		val.CreateElement("nil")
	case string:
		val.CreateElement("string").SetText(x)
	case bool:
		b := "0"
		if x {
			b = "1"
		}
		val.CreateElement("boolean").SetText(b)
	case int:
		val.CreateElement("int").SetText(strconv.Itoa(x))
	case int64:
		val.CreateElement("int").SetText(strconv.FormatInt(x, 10))
	case float64:
		val.CreateElement("double").SetText(strconv.FormatFloat(x, 'f', -1, 64))
	case time.Time:
		val.CreateElement("dateTime.iso8601").SetText(x.UTC().Format(xmlrpcTimeLayout))
	case xmlrpcStruct:
		st := val.CreateElement("struct")
		for _, k := range slices.Sorted(maps.Keys(x)) {
			m := st.CreateElement("member")
			m.CreateElement("name").SetText(k)
			encodeValue(m, x[k])
		}
	case []xmlrpcStruct:
		data := val.CreateElement("array").CreateElement("data")
		for _, item := range x {
			encodeValue(data, item)
		}
	case []any:
		data := val.CreateElement("array").CreateElement("data")
		for _, item := range x {
			encodeValue(data, item)
		}
	default:
		val.CreateElement("string").SetText(fmt.Sprint(x))
	}
}

func newResponseDoc() (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	return doc, doc.CreateElement("methodResponse")
}

// writeMethodResponse writes a successful methodResponse carrying v.
func writeMethodResponse(w io.Writer, v any) error {
	doc, resp := newResponseDoc()
	param := resp.CreateElement("params").CreateElement("param")
	encodeValue(param, v)
	_, err := doc.WriteTo(w)
	return err
}

// writeFault writes a fault methodResponse.
func writeFault(w io.Writer, f *xmlrpcFault) error {
	doc, resp := newResponseDoc()
	encodeValue(resp.CreateElement("fault"), xmlrpcStruct{
		"faultCode":   f.Code,
		"faultString": f.Message,
	})
	_, err := doc.WriteTo(w)
	return err
}

// argInt reads args[i] as an integer id. Missing or malformed ids are 0.
func argInt(args []any, i int) int64 {
	if i >= len(args) {
		return 0
	}
	switch v := args[i].(type) {
	case int64:
		return v
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// argStruct reads args[i] as a struct, returning an empty one when absent.
func argStruct(args []any, i int) xmlrpcStruct {
	if i < len(args) {
		if s, ok := args[i].(xmlrpcStruct); ok {
			return s
		}
	}
	return xmlrpcStruct{}
}

// Int reads member key as an integer; ok is false when it is absent.
func (s xmlrpcStruct) Int(key string) (int64, bool) {
	if _, present := s[key]; !present {
		return 0, false
	}
	return argInt([]any{s[key]}, 0), true
}
