package httpx

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethodCall(t *testing.T) {
	body := `<?xml version="1.0"?>
<methodCall>
  <methodName>wp.getPosts</methodName>
  <params>
    <param><value><int>1</int></value></param>
    <param><value>admin</value></param>
    <param><value><string>secret</string></value></param>
    <param><value><struct>
      <member><name>number</name><value><i4>5</i4></value></member>
      <member><name>post_type</name><value><string>page</string></value></member>
    </struct></value></param>
    <param><value><array><data>
      <value><boolean>1</boolean></value>
      <value><double>1.5</double></value>
      <value><dateTime.iso8601>20240102T03:04:05</dateTime.iso8601></value>
      <value><nil/></value>
    </data></array></value></param>
  </params>
</methodCall>`

	name, args, err := parseMethodCall(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "wp.getPosts", name)
	require.Len(t, args, 5)
	assert.Equal(t, int64(1), args[0])
	assert.Equal(t, "admin", args[1])
	assert.Equal(t, "secret", args[2])

	filter := argStruct(args, 3)
	n, ok := filter.Int("number")
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "page", filter["post_type"])
	_, ok = filter.Int("offset")
	assert.False(t, ok)

	list, ok := args[4].([]any)
	require.True(t, ok)
	assert.Equal(t, true, list[0])
	assert.InDelta(t, 1.5, list[1], 0.0001)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), list[2])
	assert.Nil(t, list[3])
}

func TestParseMethodCall_Errors(t *testing.T) {
	tests := map[string]string{
		"not xml":       "<methodCall attr=>",
		"wrong root":    "<methodResponse/>",
		"no name":       "<methodCall><params/></methodCall>",
		"bad int":       "<methodCall><methodName>m</methodName><params><param><value><int>x</int></value></param></params></methodCall>",
		"unknown type":  "<methodCall><methodName>m</methodName><params><param><value><blob/></value></param></params></methodCall>",
		"missing value": "<methodCall><methodName>m</methodName><params><param/></params></methodCall>",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := parseMethodCall(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}

func TestArgInt(t *testing.T) {
	args := []any{int64(7), " 42 ", "nope", 3.5}
	assert.Equal(t, int64(7), argInt(args, 0))
	assert.Equal(t, int64(42), argInt(args, 1))
	assert.Equal(t, int64(0), argInt(args, 2))
	assert.Equal(t, int64(0), argInt(args, 3))
	assert.Equal(t, int64(0), argInt(args, 9))
}

func TestWriteMethodResponse_RoundTrips(t *testing.T) {
	when := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, writeMethodResponse(&buf, []xmlrpcStruct{{
		"b_id":   int64(3),
		"a_name": "x",
		"when":   when,
		"flag":   false,
	}}))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))
	value := doc.FindElement("/methodResponse/params/param/value")
	require.NotNil(t, value)
	got, err := decodeValue(value)
	require.NoError(t, err)
	assert.Equal(t, []any{xmlrpcStruct{"a_name": "x", "b_id": int64(3), "when": when, "flag": false}}, got)

	names := doc.FindElements("//member/name")
	require.Len(t, names, 4)
	assert.Equal(t, "a_name", names[0].Text())
	assert.Equal(t, "when", names[3].Text())
}

func TestWriteFault(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFault(&buf, &xmlrpcFault{Code: 403, Message: "no"}))
	out := buf.String()
	assert.True(t, ContainsAll(out, []string{
		"<fault>",
		"<name>faultCode</name><value><int>403</int></value>",
		"<name>faultString</name><value><string>no</string></value>",
	}), out)
}
