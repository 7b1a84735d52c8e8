// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

package info_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warthog618/atmqtt/info"
)

func TestHasPrefix(t *testing.T) {
	l := "cmd: blah"
	assert.True(t, info.HasPrefix(l, "cmd"))
	assert.False(t, info.HasPrefix(l, "cmd:"))
}

func TestTrimPrefix(t *testing.T) {
	patterns := []struct {
		name string
		line string
		out  string
	}{
		{"no prefix", "info line", "info line"},
		{"prefix", "cmd:info line", "info line"},
		{"prefix and space", "cmd: info line", "info line"},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			assert.Equal(t, p.out, info.TrimPrefix(p.line, "cmd"))
		}
		t.Run(p.name, f)
	}
}

func TestSplit(t *testing.T) {
	i := func(n int, s string) info.Value {
		return info.Value{Str: s, Int: n, IsInt: true}
	}
	q := func(s string) info.Value {
		return info.Value{Str: s, Quoted: true}
	}
	patterns := []struct {
		name string
		line string
		tag  string
		args []info.Value
	}{
		{
			"no args",
			"+CMQTTCONNLOST",
			"CMQTTCONNLOST",
			nil,
		},
		{
			"empty args",
			"+CMQTTCONNLOST: ",
			"CMQTTCONNLOST",
			nil,
		},
		{
			"ints",
			"+CMQTTCONNECT: 0,3",
			"CMQTTCONNECT",
			[]info.Value{i(0, "0"), i(3, "3")},
		},
		{
			"recv",
			"+CMQTTRECV: 1,\"t/1\",0,\"hello\"",
			"CMQTTRECV",
			[]info.Value{i(1, "1"), q("t/1"), i(0, "0"), q("hello")},
		},
		{
			"embedded comma",
			"+CMQTTRECV: 0,\"t\",1,\"a,b\"",
			"CMQTTRECV",
			[]info.Value{i(0, "0"), q("t"), i(1, "1"), q("a,b")},
		},
		{
			"embedded quote",
			"+CMQTTRECV: 0,\"t\",1,\"say \"hi\" now\"",
			"CMQTTRECV",
			[]info.Value{i(0, "0"), q("t"), i(1, "1"), q("say \"hi\" now")},
		},
		{
			"spaces",
			"+MQTTURC: \"conn\", 0, 2",
			"MQTTURC",
			[]info.Value{q("conn"), i(0, "0"), i(2, "2")},
		},
		{
			"unterminated",
			"+X: 1,\"abc",
			"X",
			[]info.Value{i(1, "1"), q("abc")},
		},
		{
			"non numeric",
			"^MODE: 3,fast",
			"MODE",
			[]info.Value{i(3, "3"), {Str: "fast"}},
		},
		{
			"empty quoted",
			"+CMQTTRECV: 0,\"\",0,\"\"",
			"CMQTTRECV",
			[]info.Value{i(0, "0"), q(""), i(0, "0"), q("")},
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			tag, args := info.Split(p.line)
			assert.Equal(t, p.tag, tag)
			assert.Equal(t, p.args, args)
		}
		t.Run(p.name, f)
	}
}

func TestSplitN(t *testing.T) {
	i := func(n int, s string) info.Value {
		return info.Value{Str: s, Int: n, IsInt: true}
	}
	q := func(s string) info.Value {
		return info.Value{Str: s, Quoted: true}
	}
	patterns := []struct {
		name string
		line string
		n    int
		tag  string
		args []info.Value
	}{
		{
			"tag only",
			"+CMQTTRECV: 0,\"t\",1,\"x\"",
			0,
			"CMQTTRECV",
			nil,
		},
		{
			"unlimited",
			"+CMQTTCONNECT: 0,3",
			-1,
			"CMQTTCONNECT",
			[]info.Value{i(0, "0"), i(3, "3")},
		},
		{
			"fewer than limit",
			"+CMQTTCONNECT: 0,3",
			4,
			"CMQTTCONNECT",
			[]info.Value{i(0, "0"), i(3, "3")},
		},
		{
			"json payload",
			"+CMQTTRECV: 0,\"t/1\",0,\"{\"a\":\"b\",\"c\":1}\"",
			4,
			"CMQTTRECV",
			[]info.Value{i(0, "0"), q("t/1"), i(0, "0"), q(`{"a":"b","c":1}`)},
		},
		{
			"quote comma quote",
			"+CMQTTRECV: 0,\"t\",1,\"\",\"\"",
			4,
			"CMQTTRECV",
			[]info.Value{i(0, "0"), q("t"), i(1, "1"), q(`","`)},
		},
		{
			"unquoted remainder",
			"+X: 1,2,3",
			2,
			"X",
			[]info.Value{i(1, "1"), {Str: "2,3"}},
		},
		{
			"empty payload",
			"+CMQTTRECV: 0,\"t\",0,\"\"\r\n",
			4,
			"CMQTTRECV",
			[]info.Value{i(0, "0"), q("t"), i(0, "0"), q("")},
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			tag, args := info.SplitN(p.line, p.n)
			assert.Equal(t, p.tag, tag)
			assert.Equal(t, p.args, args)
		}
		t.Run(p.name, f)
	}
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "42", info.Value{Str: "42", Int: 42, IsInt: true}.String())
	assert.Equal(t, "\"t/1\"", info.Value{Str: "t/1", Quoted: true}.String())
}
