// SPDX-License-Identifier: MIT
//
// Copyright © 2026 Kent Gibson <warthog618@gmail.com>.

package mqtt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/atmqtt/info"
	"github.com/warthog618/atmqtt/mqtt"
)

func stepCmds(steps []mqtt.Step) []string {
	cmds := make([]string, len(steps))
	for i, s := range steps {
		cmds[i] = s.Cmd
	}
	return cmds
}

func TestA76xxConnectSteps(t *testing.T) {
	patterns := []struct {
		name  string
		id    int
		creds mqtt.Credentials
		cmds  []string
	}{
		{
			"tcp",
			0,
			mqtt.Credentials{Host: "broker", Port: 1883, ClientID: "cid"},
			[]string{
				"+CMQTTSTART",
				"+CMQTTACCQ=0,\"cid\"",
				"+CMQTTCFG=\"argtopic\",0,1,1",
				"+CMQTTCONNECT=0,\"tcp://broker:1883\",60,0",
			},
		},
		{
			"ssl",
			1,
			mqtt.Credentials{Host: "broker", Port: 8883, ClientID: "cid"},
			[]string{
				"+CMQTTSTART",
				"+CMQTTACCQ=1,\"cid\"",
				"+CMQTTCFG=\"argtopic\",1,1,1",
				"+CMQTTCONNECT=1,\"ssl://broker:8883\",60,0",
			},
		},
		{
			"user",
			0,
			mqtt.Credentials{Host: "broker", Port: 1883, ClientID: "cid", Username: "u", Password: "p,w"},
			[]string{
				"+CMQTTSTART",
				"+CMQTTACCQ=0,\"cid\"",
				"+CMQTTCFG=\"argtopic\",0,1,1",
				"+CMQTTCONNECT=0,\"tcp://broker:1883\",60,0,\"u\",\"p,w\"",
			},
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			steps := mqtt.A76xx{}.ConnectSteps(p.id, p.creds, time.Minute)
			assert.Equal(t, p.cmds, stepCmds(steps))
		}
		t.Run(p.name, f)
	}
}

func TestA76xxConnectStepsUndo(t *testing.T) {
	steps := mqtt.A76xx{}.ConnectSteps(2, mqtt.Credentials{Host: "h", Port: 1883}, 30*time.Second)
	require.Len(t, steps, 4)
	assert.Equal(t, mqtt.StageStartSent, steps[0].Stage)
	assert.Equal(t, "", steps[0].Undo)
	assert.Equal(t, 5*time.Second, steps[0].Timeout)
	assert.Equal(t, mqtt.StageAccqSent, steps[1].Stage)
	assert.Equal(t, "+CMQTTREL=2", steps[1].Undo)
	assert.Equal(t, mqtt.StageCfgSent, steps[2].Stage)
	assert.Equal(t, "", steps[2].Undo)
	assert.Equal(t, mqtt.StageConnectSent, steps[3].Stage)
	assert.Equal(t, "+CMQTTCONNECT=2,\"tcp://h:1883\",30,0", steps[3].Cmd)
	assert.Equal(t, "+CMQTTDISC=2,30", steps[3].Undo)
	assert.Equal(t, 5*time.Second, steps[3].Timeout)
}

func TestA76xxCommands(t *testing.T) {
	d := mqtt.A76xx{}
	assert.Equal(t, "+CMQTTDISC=0,30", d.Disconnect(0))
	assert.Equal(t, "+CMQTTSUB=1,\"a/b\",2,1", d.Subscribe(1, "a/b", 2))
	assert.Equal(t, "+CMQTTUNSUB=1,\"a/b\",1", d.Unsubscribe(1, "a/b"))
	pc := d.Publish(0, "a/b", 1, []byte("hello"))
	assert.Equal(t, "+CMQTTPUB=0,\"a/b\",1,5,0", pc.Cmd)
	assert.Equal(t, []byte("hello"), pc.Payload)
	assert.True(t, pc.Streamed())
	pc = d.Publish(0, "a/b", 0, nil)
	assert.Equal(t, "+CMQTTPUB=0,\"a/b\",0,0,0", pc.Cmd)
	assert.True(t, pc.Streamed())
	_, ok := d.StateQuery(0)
	assert.False(t, ok)
}

func TestA76xxDecode(t *testing.T) {
	patterns := []struct {
		name string
		line string
		ev   mqtt.Event
		ok   bool
	}{
		{
			"recv",
			"+CMQTTRECV: 0,\"a/b\",1,\"hello, world\"",
			mqtt.Event{Kind: mqtt.EventMessage, Session: 0, Topic: "a/b", Payload: []byte("hello, world"), Total: 12},
			true,
		},
		{
			"recv json",
			"+CMQTTRECV: 0,\"t/1\",0,\"{\"a\":\"b\",\"c\":1}\"",
			mqtt.Event{Kind: mqtt.EventMessage, Session: 0, Topic: "t/1", Payload: []byte(`{"a":"b","c":1}`), Total: 15},
			true,
		},
		{
			"recv quoted tail",
			"+CMQTTRECV: 0,\"t/1\",1,\"say \"a\",\"b\"\"",
			mqtt.Event{Kind: mqtt.EventMessage, Session: 0, Topic: "t/1", Payload: []byte(`say "a","b"`), Total: 11},
			true,
		},
		{
			"recv short",
			"+CMQTTRECV: 0,\"a/b\",1",
			mqtt.Event{},
			false,
		},
		{
			"connect",
			"+CMQTTCONNECT: 1,0",
			mqtt.Event{Kind: mqtt.EventConnect, Session: 1, Result: mqtt.ResultSuccess},
			true,
		},
		{
			"connect rejected",
			"+CMQTTCONNECT: 0,3",
			mqtt.Event{Kind: mqtt.EventConnect, Session: 0, Result: mqtt.ResultRejected},
			true,
		},
		{
			"connect malformed",
			"+CMQTTCONNECT: x,0",
			mqtt.Event{},
			false,
		},
		{
			"disc",
			"+CMQTTDISC: 0,0",
			mqtt.Event{Kind: mqtt.EventDisconnect, Session: 0},
			true,
		},
		{
			"pub",
			"+CMQTTPUB: 0,11",
			mqtt.Event{Kind: mqtt.EventPublishAck, Session: 0, Result: 11},
			true,
		},
		{
			"sub",
			"+CMQTTSUB: 1,0",
			mqtt.Event{Kind: mqtt.EventSubscribeAck, Session: 1},
			true,
		},
		{
			"unsub",
			"+CMQTTUNSUB: 1,0",
			mqtt.Event{Kind: mqtt.EventSubscribeAck, Session: 1},
			true,
		},
		{
			"connlost",
			"+CMQTTCONNLOST",
			mqtt.Event{Kind: mqtt.EventConnectionLost, Session: mqtt.AllSessions, Result: mqtt.ResultUnknown},
			true,
		},
		{
			"connlost id",
			"+CMQTTCONNLOST: 1,6",
			mqtt.Event{Kind: mqtt.EventConnectionLost, Session: 1, Result: mqtt.ResultNetworkFailure},
			true,
		},
		{
			"unknown",
			"+CMQTTNONESUCH: 1,2",
			mqtt.Event{},
			false,
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			ev, ok := decode(mqtt.A76xx{}, p.line)
			assert.Equal(t, p.ok, ok)
			assert.Equal(t, p.ev, ev)
		}
		t.Run(p.name, f)
	}
}

func TestML307ConnectSteps(t *testing.T) {
	patterns := []struct {
		name  string
		creds mqtt.Credentials
		cmds  []string
	}{
		{
			"tcp",
			mqtt.Credentials{Host: "broker", Port: 1883, ClientID: "cid"},
			[]string{
				"+MQTTCFG=\"clean\",0,1",
				"+MQTTCFG=\"pingreq\",0,60",
				"+MQTTCFG=\"encoding\",0,1,1",
				"+MQTTCONN=0,\"broker\",1883,\"cid\",\"\",\"\"",
			},
		},
		{
			"ssl",
			mqtt.Credentials{Host: "broker", Port: 8883, ClientID: "cid", Username: "u", Password: "p"},
			[]string{
				"+MQTTCFG=\"ssl\",0,1",
				"+MQTTCFG=\"clean\",0,1",
				"+MQTTCFG=\"pingreq\",0,60",
				"+MQTTCFG=\"encoding\",0,1,1",
				"+MQTTCONN=0,\"broker\",8883,\"cid\",\"u\",\"p\"",
			},
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			steps := mqtt.ML307{}.ConnectSteps(0, p.creds, time.Minute)
			assert.Equal(t, p.cmds, stepCmds(steps))
			last := steps[len(steps)-1]
			assert.Equal(t, mqtt.StageConnectSent, last.Stage)
			assert.Equal(t, "+MQTTDISC=0", last.Undo)
		}
		t.Run(p.name, f)
	}
}

func TestML307Commands(t *testing.T) {
	d := mqtt.ML307{}
	assert.Equal(t, "+MQTTDISC=1", d.Disconnect(1))
	assert.Equal(t, "+MQTTSUB=1,\"a/b\",1", d.Subscribe(1, "a/b", 1))
	assert.Equal(t, "+MQTTUNSUB=1,\"a/b\"", d.Unsubscribe(1, "a/b"))
	pc := d.Publish(0, "a/b", 1, []byte{0x00, 0xab, 'A'})
	assert.Equal(t, "+MQTTPUB=0,\"a/b\",1,0,0,3,00AB41", pc.Cmd)
	assert.False(t, pc.Streamed())
	cmd, ok := d.StateQuery(2)
	assert.True(t, ok)
	assert.Equal(t, "+MQTTSTATE=2", cmd)
}

func TestML307Decode(t *testing.T) {
	patterns := []struct {
		name string
		line string
		ev   mqtt.Event
		ok   bool
	}{
		{
			"conn",
			"+MQTTURC: \"conn\",0,0",
			mqtt.Event{Kind: mqtt.EventConnect, Session: 0},
			true,
		},
		{
			"conn quoted result",
			"+MQTTURC: \"conn\",1,\"3\"",
			mqtt.Event{Kind: mqtt.EventConnect, Session: 1, Result: mqtt.ResultRejected},
			true,
		},
		{
			"conn short",
			"+MQTTURC: \"conn\",1",
			mqtt.Event{},
			false,
		},
		{
			"suback",
			"+MQTTURC: \"suback\",0,1,0",
			mqtt.Event{Kind: mqtt.EventSubscribeAck, Session: 0},
			true,
		},
		{
			"puback",
			"+MQTTURC: \"puback\",2,1",
			mqtt.Event{Kind: mqtt.EventPublishAck, Session: 2},
			true,
		},
		{
			"publish",
			"+MQTTURC: \"publish\",0,1,\"a/b\",5,5,\"68656C6C6F\"",
			mqtt.Event{Kind: mqtt.EventMessage, Session: 0, Topic: "a/b", Payload: []byte("hello"), Total: 5},
			true,
		},
		{
			"publish fragment",
			"+MQTTURC: \"publish\",0,1,\"a/b\",10,5,\"68656C6C6F\"",
			mqtt.Event{Kind: mqtt.EventMessage, Session: 0, Topic: "a/b", Payload: []byte("hello"), Total: 10},
			true,
		},
		{
			"publish bad hex",
			"+MQTTURC: \"publish\",0,1,\"a/b\",5,5,\"hello\"",
			mqtt.Event{},
			false,
		},
		{
			"state connected",
			"+MQTTSTATE: 2",
			mqtt.Event{Kind: mqtt.EventState, Session: mqtt.AllSessions, Connected: true},
			true,
		},
		{
			"state disconnected",
			"+MQTTSTATE: 3",
			mqtt.Event{Kind: mqtt.EventState, Session: mqtt.AllSessions},
			true,
		},
		{
			"unknown",
			"+MQTTURC: \"ping\",0",
			mqtt.Event{},
			false,
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			ev, ok := decode(mqtt.ML307{}, p.line)
			assert.Equal(t, p.ok, ok)
			assert.Equal(t, p.ev, ev)
		}
		t.Run(p.name, f)
	}
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "connected", mqtt.ResultSuccess.String())
	assert.Equal(t, "disconnected on network failure", mqtt.ResultNetworkFailure.String())
	assert.Equal(t, "unrecognised result 42", mqtt.Result(42).String())
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "idle", mqtt.StageIdle.String())
	assert.Equal(t, "connect sent", mqtt.StageConnectSent.String())
	assert.Equal(t, "failed", mqtt.StageFailed.String())
	assert.Equal(t, "stage 99", mqtt.Stage(99).String())
}

func TestLookupDialect(t *testing.T) {
	d, ok := mqtt.LookupDialect("a76xx")
	assert.True(t, ok)
	assert.Equal(t, mqtt.A76xx{}, d)
	d, ok = mqtt.LookupDialect("ml307")
	assert.True(t, ok)
	assert.Equal(t, mqtt.ML307{}, d)
	_, ok = mqtt.LookupDialect("sim800")
	assert.False(t, ok)
}

func decode(d mqtt.Dialect, line string) (mqtt.Event, bool) {
	tag, _ := info.SplitN(line, 0)
	_, args := info.SplitN(line, d.Fields(tag))
	return d.Decode(tag, args)
}
