// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

package serial_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/atmqtt/serial"
)

func TestNewBogus(t *testing.T) {
	m, err := serial.New(serial.WithPort("bogusmodem"), serial.WithBaud(115200))
	assert.NotNil(t, err)
	assert.Nil(t, m)
}

func TestNew(t *testing.T) {
	port := os.Getenv("ATMQTT_TEST_PORT")
	if port == "" {
		t.Skip("ATMQTT_TEST_PORT not set")
	}
	m, err := serial.New(serial.WithPort(port))
	require.Nil(t, err)
	require.NotNil(t, m)
	m.Close()
}
