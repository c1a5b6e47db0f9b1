package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"rpcclient/internal/rpctest"
	"rpcclient/message"
)

func TestParseParam(t *testing.T) {
	c := qt.New(t)

	c.Assert(parseParam([]byte("42")), qt.Equals, int64(42))
	c.Assert(parseParam([]byte("1.5")), qt.Equals, 1.5)
	c.Assert(parseParam([]byte("true")), qt.Equals, true)
	c.Assert(parseParam([]byte(`"quoted"`)), qt.Equals, "quoted")
	c.Assert(parseParam([]byte("bare words")), qt.Equals, "bare words")
	c.Assert(parseParam([]byte("1 2")), qt.Equals, "1 2")
	c.Assert(parseParam([]byte(`{"a":[1,"x"]}`)), qt.DeepEquals, map[string]any{"a": []any{int64(1), "x"}})
}

func TestParseBatch(t *testing.T) {
	c := qt.New(t)

	reqs, err := parseBatch([]byte(`[
		{"method": "echo", "params": ["hello"], "special_types": {"hello": "cdata"}},
		{"method": "log", "params": ["x"], "notification": true},
		{"method": "add", "params": [1, 2], "id": 7}
	]`))
	c.Assert(err, qt.IsNil)
	c.Assert(reqs, qt.HasLen, 3)
	c.Assert(reqs[0].SpecialTypes(), qt.DeepEquals, map[string]message.SpecialType{"hello": message.CData})
	c.Assert(reqs[1].ID().Kind(), qt.Equals, message.IDNone)
	c.Assert(reqs[2].ID().Value(), qt.Equals, int64(7))
	c.Assert(reqs[2].Params(), qt.DeepEquals, []any{int64(1), int64(2)})

	_, err = parseBatch([]byte(`[]`))
	c.Assert(err, qt.ErrorMatches, "batch file: no call")
	_, err = parseBatch([]byte(`[{"method": ""}]`))
	c.Assert(err, qt.ErrorMatches, "batch call 0: .*Invalid RPC method")
	_, err = parseBatch([]byte(`[{"method": "m", "id": 1.5}]`))
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestCommands(t *testing.T) {
	c := qt.New(t)

	svr := rpctest.NewServer("")
	defer svr.Close()
	svr.Handle("echo", func(params []any) (any, error) { return params, nil })

	run := func(args ...string) string {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(args)
		c.Assert(rootCmd.Execute(), qt.IsNil)
		return out.String()
	}

	out := run("version")
	c.Assert(out, qt.Equals, "rpcclient v"+Version+"\n")

	out = run("call", "--endpoint", svr.URL, "--protocol", "json", "echo", "1", "two")
	var got any
	c.Assert(json.Unmarshal([]byte(out), &got), qt.IsNil)
	c.Assert(got, qt.DeepEquals, []any{1.0, "two"})

	rootCmd.SetIn(strings.NewReader(`[{"method": "echo", "params": ["a"]}, {"method": "echo", "params": ["b"]}]`))
	out = run("batch", "--endpoint", svr.URL, "--protocol", "xml", "-")
	c.Assert(json.Unmarshal([]byte(out), &got), qt.IsNil)
	c.Assert(got, qt.DeepEquals, []any{[]any{"a"}, []any{"b"}})
}
