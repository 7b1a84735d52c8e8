// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

package trace_test

import (
	"bytes"
	"log"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/atmqtt/trace"
)

func TestNew(t *testing.T) {
	mrw := bytes.NewBufferString("one")
	// vanilla
	tr := trace.New(mrw)
	assert.NotNil(t, tr)
	// with opts
	b := bytes.Buffer{}
	l := log.New(&b, "", log.LstdFlags)
	tr = trace.New(mrw, trace.WithLogger(l), trace.WithReadFormat("r: %v"))
	assert.NotNil(t, tr)
}

func TestRead(t *testing.T) {
	patterns := []struct {
		name    string
		options []trace.Option
		in      string
		log     string
	}{
		{"default", nil, "one\r\n", "r: \"one\\r\\n\"\n"},
		{"format", []trace.Option{trace.WithReadFormat("R: %s")}, "one", "R: one\n"},
		{"write format", []trace.Option{trace.WithWriteFormat("W: %s")}, "one", "r: \"one\"\n"},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			mrw := bytes.NewBufferString(p.in)
			b := bytes.Buffer{}
			l := log.New(&b, "", 0)
			tr := trace.New(mrw, append(p.options, trace.WithLogger(l))...)
			i := make([]byte, 10)
			n, err := tr.Read(i)
			require.Nil(t, err)
			assert.Equal(t, len(p.in), n)
			assert.Equal(t, p.log, b.String())
		}
		t.Run(p.name, f)
	}
}

func TestWrite(t *testing.T) {
	patterns := []struct {
		name    string
		options []trace.Option
		out     string
		log     string
	}{
		{"default", nil, "AT\r\n", "w: \"AT\\r\\n\"\n"},
		{"format", []trace.Option{trace.WithWriteFormat("W: %s")}, "two", "W: two\n"},
		{"read format", []trace.Option{trace.WithReadFormat("R: %s")}, "two", "w: \"two\"\n"},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			mrw := bytes.NewBufferString("one")
			b := bytes.Buffer{}
			l := log.New(&b, "", 0)
			tr := trace.New(mrw, append(p.options, trace.WithLogger(l))...)
			n, err := tr.Write([]byte(p.out))
			require.Nil(t, err)
			assert.Equal(t, len(p.out), n)
			assert.Equal(t, p.log, b.String())
			assert.Equal(t, "one"+p.out, mrw.String())
		}
		t.Run(p.name, f)
	}
}

func TestZerologLogger(t *testing.T) {
	mrw := bytes.NewBufferString("")
	b := bytes.Buffer{}
	l := zerolog.New(&b)
	tr := trace.New(mrw, trace.WithLogger(&l))
	_, err := tr.Write([]byte("AT\r\n"))
	require.Nil(t, err)
	assert.Contains(t, b.String(), `"message":"w: \"AT\\r\\n\""`)
}

func TestReadEmpty(t *testing.T) {
	mrw := bytes.NewBufferString("")
	b := bytes.Buffer{}
	l := log.New(&b, "", 0)
	tr := trace.New(mrw, trace.WithLogger(l))
	i := make([]byte, 10)
	n, _ := tr.Read(i)
	assert.Equal(t, 0, n)
	assert.Empty(t, b.String())
}
