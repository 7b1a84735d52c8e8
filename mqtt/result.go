// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package mqtt

import "fmt"

// Result is the result code reported by the modem for connect and
// disconnect events.
//
// The Result is informational; only success is distinguished from failure.
type Result int

const (
	ResultSuccess          Result = 0
	ResultReconnecting     Result = 1
	ResultUserDisconnect   Result = 2
	ResultRejected         Result = 3
	ResultServerDisconnect Result = 4
	ResultKeepAliveTimeout Result = 5
	ResultNetworkFailure   Result = 6
	ResultUnknown          Result = 255
)

var resultNames = map[Result]string{
	ResultSuccess:          "connected",
	ResultReconnecting:     "reconnecting",
	ResultUserDisconnect:   "disconnected by user",
	ResultRejected:         "rejected (protocol version, identifier, username or password)",
	ResultServerDisconnect: "disconnected by server",
	ResultKeepAliveTimeout: "disconnected on keep-alive timeout",
	ResultNetworkFailure:   "disconnected on network failure",
	ResultUnknown:          "disconnected on unknown error",
}

func (r Result) String() string {
	if n, ok := resultNames[r]; ok {
		return n
	}
	return fmt.Sprintf("unrecognised result %d", int(r))
}

// Stage is the progress of a session through the connect sequence.
type Stage int

const (
	StageIdle Stage = iota
	StageStartSent
	StageAccqSent
	StageCfgSent
	StageConnectSent
	StageConnected
	StageFailed
)

var stageNames = []string{
	"idle",
	"start sent",
	"accq sent",
	"cfg sent",
	"connect sent",
	"connected",
	"failed",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage %d", int(s))
}
