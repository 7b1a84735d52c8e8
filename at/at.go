// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// Package at provides a low level driver for AT modems.
package at

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// AT represents a modem that can be managed using AT commands.
//
// Commands can be issued to the modem using the Command and PayloadCommand
// methods.
//
// The AT closes the closed channel when the connection to the underlying
// modem is broken (Read returns EOF).
//
// When closed, all outstanding commands return ErrClosed and the state of the
// underlying modem becomes unknown.
//
// Once closed the AT cannot be re-opened - it must be recreated.
type AT struct {
	// channel for commands issued to the modem
	cmdCh chan func()

	// channel for changes to inds
	indCh chan func()

	// closed when modem is closed
	closed chan struct{}

	// channel for all lines read from the modem
	iLines chan string

	// channel for lines read from the modem after indications removed
	cLines chan string

	// the underlying modem
	modem io.ReadWriter

	// the minimum time between an escape command and the subsequent command
	escTime time.Duration

	// default phase timeouts for PayloadCommand
	promptTimeout     time.Duration
	completionTimeout time.Duration

	// indications mapped by prefix
	inds map[string]indication // only modified in indLoop

	// commands issued by Init.
	initCmds []string

	// covers escGuard
	escGuardMu sync.Mutex

	// if not-nil, the time the subsequent command must wait
	escGuard <-chan time.Time
}

// Option is a construction option for an AT.
type Option func(*AT)

// New creates a new AT modem.
func New(modem io.ReadWriter, options ...Option) *AT {
	a := &AT{
		modem:             modem,
		cmdCh:             make(chan func()),
		indCh:             make(chan func()),
		iLines:            make(chan string),
		cLines:            make(chan string),
		closed:            make(chan struct{}),
		escTime:           20 * time.Millisecond,
		promptTimeout:     2 * time.Second,
		completionTimeout: 3 * time.Second,
		inds:              make(map[string]indication),
	}
	for _, option := range options {
		option(a)
	}
	if a.initCmds == nil {
		a.initCmds = []string{
			"Z",  // reset to factory defaults (also clears the escape from the rx buffer)
			"E0", // disable command echo
		}
	}
	go lineReader(a.modem, a.iLines)
	go a.indLoop(a.indCh, a.iLines, a.cLines)
	go cmdLoop(a.cmdCh, a.cLines, a.closed)
	return a
}

const (
	esc    = 0x1b
	prompt = '>'
)

// WithEscTime sets the guard time for the modem.
//
// The escape time is the minimum time between an escape command being sent to
// the modem and any subsequent commands.
//
// The default guard time is 20msec.
func WithEscTime(d time.Duration) Option {
	return func(a *AT) {
		a.escTime = d
	}
}

// WithPayloadTimeouts sets the default prompt and completion timeouts used by
// PayloadCommand.
//
// The defaults are 2s for the prompt and 3s for completion.
func WithPayloadTimeouts(promptTimeout, completionTimeout time.Duration) Option {
	return func(a *AT) {
		a.promptTimeout = promptTimeout
		a.completionTimeout = completionTimeout
	}
}

// InfoHandler receives indication info.
//
// Handlers are called from the goroutine reading the modem, so they must not
// block or issue commands to the modem.
type InfoHandler func([]string)

// WithIndication adds an indication during construction.
func WithIndication(prefix string, handler InfoHandler, options ...IndicationOption) Option {
	ind := newIndication(prefix, handler, options...)
	return func(a *AT) {
		a.inds[prefix] = ind
	}
}

// WithInitCmds specifies the commands issued by Init.
//
// The default commands are ATZ and ATE0.
func WithInitCmds(cmds ...string) Option {
	return func(a *AT) {
		a.initCmds = cmds
	}
}

// Closed returns a channel which will block while the modem is not closed.
func (a *AT) Closed() <-chan struct{} {
	return a.closed
}

// Command issues the command to the modem and returns the result.
//
// The command should NOT include the AT prefix, nor <CR><LF> suffix which is
// automatically added.
//
// The return value includes the info (the lines returned by the modem between
// the command and the status line), or an error if the command did not
// complete successfully.
func (a *AT) Command(ctx context.Context, cmd string) ([]string, error) {
	done := make(chan response)
	cmdf := func() {
		info, err := a.processReq(ctx, cmd)
		done <- response{info: info, err: err}
	}
	select {
	case <-a.closed:
		return nil, ErrClosed
	case a.cmdCh <- cmdf:
		rsp := <-done
		return rsp.info, rsp.err
	}
}

// PayloadCommand issues a command that is followed by a block of raw data,
// and returns the result.
//
// A payload command is issued in two steps; first the command line:
//
//   AT<command><CR>
//
// which the modem responds to with a ">" prompt, after which the payload is
// written to the modem verbatim, with no terminator.
//
// The modem then completes the command as per other commands, such as those
// issued by Command.
//
// The payload may contain arbitrary binary data, so the length of the
// payload is expected to have been declared in the command.
//
// If the prompt is not received within the prompt timeout the command is
// escaped and ErrNoPrompt is returned. If the status line does not follow
// the payload within the completion timeout ErrTimeout is returned.
func (a *AT) PayloadCommand(ctx context.Context, cmd string, payload []byte, options ...PayloadOption) ([]string, error) {
	pc := payloadConfig{
		promptTimeout:     a.promptTimeout,
		completionTimeout: a.completionTimeout,
	}
	for _, option := range options {
		option(&pc)
	}
	done := make(chan response)
	cmdf := func() {
		info, err := a.processPayloadReq(ctx, cmd, payload, pc)
		done <- response{info: info, err: err}
	}
	select {
	case <-a.closed:
		return nil, ErrClosed
	case a.cmdCh <- cmdf:
		rsp := <-done
		return rsp.info, rsp.err
	}
}

// PayloadOption alters the behaviour of a PayloadCommand.
type PayloadOption func(*payloadConfig)

type payloadConfig struct {
	promptTimeout     time.Duration
	completionTimeout time.Duration
}

// WithPromptTimeout sets the period to wait for the prompt.
func WithPromptTimeout(d time.Duration) PayloadOption {
	return func(pc *payloadConfig) {
		pc.promptTimeout = d
	}
}

// WithCompletionTimeout sets the period to wait for the status line after the
// payload has been written.
func WithCompletionTimeout(d time.Duration) PayloadOption {
	return func(pc *payloadConfig) {
		pc.completionTimeout = d
	}
}

// AddIndication adds a handler for a set of lines beginning with the prefixed
// line and the following trailing lines.
//
// Lines matching an indication are consumed by the indication and are not
// seen by any outstanding command.
func (a *AT) AddIndication(prefix string, handler InfoHandler, options ...IndicationOption) (err error) {
	ind := newIndication(prefix, handler, options...)
	errs := make(chan error)
	indf := func() {
		if _, ok := a.inds[ind.prefix]; ok {
			errs <- ErrIndicationExists
			return
		}
		a.inds[ind.prefix] = ind
		close(errs)
	}
	select {
	case <-a.closed:
		err = ErrClosed
	case a.indCh <- indf:
		err = <-errs
	}
	return
}

// CancelIndication removes any indication corresponding to the prefix.
//
// Once CancelIndication returns the handler will not be called again.
func (a *AT) CancelIndication(prefix string) {
	done := make(chan struct{})
	indf := func() {
		delete(a.inds, prefix)
		close(done)
	}
	select {
	case <-a.closed:
	case a.indCh <- indf:
		<-done
	}
}

// Init initialises the modem by escaping any outstanding payload commands
// and resetting the modem to factory defaults.
//
// The Init is intended to be called after creation and before any other commands
// are issued in order to get the modem into a known state.
//
// The default init commands can be overridden by the cmds parameter.
func (a *AT) Init(ctx context.Context, cmds ...string) error {
	// escape any outstanding payload operations then CR to flush the command
	// buffer
	a.escape([]byte("\r\n")...)

	if cmds == nil {
		cmds = a.initCmds
	}
	for _, cmd := range cmds {
		_, err := a.Command(ctx, cmd)
		switch err {
		case nil:
		case context.DeadlineExceeded, context.Canceled:
			return err
		default:
			return errors.Wrapf(err, "AT%s", cmd)
		}
	}
	return nil
}

// cmdLoop is responsible for the interface to the modem.
//
// It serialises the issuing of commands and awaits the responses.
// If no command is pending then any lines received are discarded.
//
// The cmdLoop terminates when the downstream closes.
func cmdLoop(cmds chan func(), in <-chan string, out chan struct{}) {
	for {
		select {
		case cmd := <-cmds:
			cmd()
		case _, ok := <-in:
			if !ok {
				close(out)
				return
			}
		}
	}
}

// lineReader takes lines from m and redirects them to out.
//
// lineReader exits when m closes.
func lineReader(m io.Reader, out chan string) {
	scanner := bufio.NewScanner(m)
	scanner.Split(scanLines)
	for scanner.Scan() {
		out <- scanner.Text()
	}
	close(out) // tell pipeline we're done - end of pipeline will close the AT.
}

// indLoop is responsible for pulling indications from the stream of lines read
// from the modem, and forwarding them to handlers.
//
// Non-indication lines are passed upstream. Indication trailing lines are
// assumed to arrive in a contiguous block immediately after the indication.
//
// indLoop exits when the in channel closes.
func (a *AT) indLoop(cmds chan func(), in <-chan string, out chan string) {
	defer close(out)
	for {
		select {
		case cmd := <-cmds:
			cmd()
		case line, ok := <-in:
			if !ok {
				return
			}
			ind, found := a.matchIndication(line)
			if !found {
				out <- line
				continue
			}
			n := make([]string, ind.lines)
			n[0] = line
			for i := 1; i < ind.lines; i++ {
				t, ok := <-in
				if !ok {
					return
				}
				n[i] = t
			}
			ind.handler(n)
		}
	}
}

// matchIndication returns the indication with the longest prefix matching
// the line.
func (a *AT) matchIndication(line string) (indication, bool) {
	var match indication
	found := false
	for prefix, ind := range a.inds {
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		if !found || len(prefix) > len(match.prefix) {
			match = ind
			found = true
		}
	}
	return match, found
}

func (a *AT) processReq(ctx context.Context, cmd string) (info []string, err error) {
	a.waitEscGuard()
	err = a.writeCommand(cmd)
	if err != nil {
		return
	}
	cmdID := parseCmdID(cmd)
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		case line, ok := <-a.cLines:
			if !ok {
				return nil, ErrClosed
			}
			if line == "" {
				continue
			}
			lt := parseRxLine(line, cmdID)
			i, done, perr := a.processRxLine(lt, line)
			if i != nil {
				info = append(info, *i)
			}
			if perr != nil {
				err = perr
				return
			}
			if done {
				return
			}
		}
	}
}

func (a *AT) processPayloadReq(ctx context.Context, cmd string, payload []byte, pc payloadConfig) (info []string, err error) {
	a.waitEscGuard()
	err = a.writePayloadCommand(cmd)
	if err != nil {
		return
	}
	cmdID := parseCmdID(cmd)
	prompted := false
	echo := ""
	phase := time.NewTimer(pc.promptTimeout)
	defer phase.Stop()
	for {
		select {
		case <-ctx.Done():
			if !prompted {
				// cancel outstanding payload request
				a.escape()
			}
			err = ctx.Err()
			return
		case <-phase.C:
			if !prompted {
				a.escape()
				err = ErrNoPrompt
				return
			}
			err = ErrTimeout
			return
		case line, ok := <-a.cLines:
			if !ok {
				err = ErrClosed
				return
			}
			if line == "" {
				continue
			}
			lt := parseRxLine(line, cmdID)
			if lt == rxlPrompt {
				if prompted {
					continue
				}
				prompted = true
				echo = string(payload)
				if err = a.writePayload(payload); err != nil {
					a.escape()
					return
				}
				if !phase.Stop() {
					<-phase.C
				}
				phase.Reset(pc.completionTimeout)
				continue
			}
			if echo != "" && strings.HasPrefix(line, echo) {
				// swallow echoed payload
				echo = ""
				continue
			}
			i, done, perr := a.processRxLine(lt, line)
			if i != nil {
				info = append(info, *i)
			}
			if perr != nil {
				err = perr
				return
			}
			if done {
				return
			}
		}
	}
}

// processRxLine parses a line received from the modem and determines how it
// adds to the response for the current command.
//
// The return values are:
//  - a line of info to be added to the response (optional)
//  - a flag indicating if the command is complete.
//  - an error detected while processing the command.
func (a *AT) processRxLine(lt rxl, line string) (info *string, done bool, err error) {
	switch lt {
	case rxlStatusOK:
		done = true
	case rxlStatusError:
		err = newError(line)
	case rxlUnknown, rxlInfo:
		info = &line
	case rxlConnect:
		info = &line
		done = true
	case rxlConnectError:
		err = ConnectError(line)
	}
	return
}

// issue an escape command
func (a *AT) escape(b ...byte) {
	cmd := append([]byte(string(rune(esc))+"\r\n"), b...)
	a.modem.Write(cmd)
	a.startEscGuard()
}

// startEscGuard starts a write guard that prevents a subsequent write within
// a short period of time (default 20ms).
func (a *AT) startEscGuard() {
	a.escGuardMu.Lock()
	a.escGuard = time.After(a.escTime)
	a.escGuardMu.Unlock()
}

// waitEscGuard waits for a write guard to allow a write to the modem.
func (a *AT) waitEscGuard() {
	a.escGuardMu.Lock()
	defer a.escGuardMu.Unlock()
	if a.escGuard == nil {
		return
	}
	for {
		select {
		case _, ok := <-a.cLines:
			if !ok {
				return
			}
		case <-a.escGuard:
			a.escGuard = nil
			return
		}
	}
}

// writeCommand writes a one line command to the modem.
func (a *AT) writeCommand(cmd string) error {
	cmdLine := "AT" + cmd + "\r\n"
	_, err := a.modem.Write([]byte(cmdLine))
	return err
}

// writePayloadCommand writes the first line of a payload command to the modem.
func (a *AT) writePayloadCommand(cmd string) error {
	cmdLine := "AT" + cmd + "\r"
	_, err := a.modem.Write([]byte(cmdLine))
	return err
}

// writePayload writes the raw payload of a payload command to the modem.
func (a *AT) writePayload(payload []byte) error {
	for len(payload) > 0 {
		n, err := a.modem.Write(payload)
		if err != nil {
			return err
		}
		payload = payload[n:]
	}
	return nil
}

// CMEError indicates a CME Error was returned by the modem.
//
// The value is the error value, in string form, which may be the numeric or
// textual, depending on the modem configuration.
type CMEError string

// CMSError indicates a CMS Error was returned by the modem.
//
// The value is the error value, in string form, which may be the numeric or
// textual, depending on the modem configuration.
type CMSError string

// ConnectError indicates an attempt to dial failed.
//
// The value of the error is the failure indication returned by the modem.
type ConnectError string

func (e CMEError) Error() string {
	return string("CME Error: " + e)
}

func (e CMSError) Error() string {
	return string("CMS Error: " + e)
}

func (e ConnectError) Error() string {
	return string("Connect: " + e)
}

var (
	// ErrClosed indicates an operation cannot be performed as the modem has
	// been closed.
	ErrClosed = errors.New("closed")

	// ErrError indicates the modem returned a generic AT ERROR in response to
	// an operation.
	ErrError = errors.New("ERROR")

	// ErrIndicationExists indicates there is already a indication registered
	// for a prefix.
	ErrIndicationExists = errors.New("indication exists")

	// ErrNoPrompt indicates the modem did not prompt for the payload of a
	// payload command.
	ErrNoPrompt = errors.New("no prompt")

	// ErrTimeout indicates the modem did not complete a payload command after
	// the payload was written.
	ErrTimeout = errors.New("timeout")
)

// newError parses a line and creates an error corresponding to the content.
func newError(line string) error {
	var err error
	switch {
	case strings.HasPrefix(line, "ERROR"):
		err = ErrError
	case strings.HasPrefix(line, "+CMS ERROR:"):
		err = CMSError(strings.TrimSpace(line[11:]))
	case strings.HasPrefix(line, "+CME ERROR:"):
		err = CMEError(strings.TrimSpace(line[11:]))
	}
	return err
}

// response represents the result of a request operation performed on the
// modem.
//
// info is the collection of lines returned between the command and the status
// line. err corresponds to any error returned by the modem or while
// interacting with the modem.
type response struct {
	info []string
	err  error
}

// Received line types.
type rxl int

const (
	rxlUnknown rxl = iota
	rxlEchoCmdLine
	rxlInfo
	rxlStatusOK
	rxlStatusError
	rxlAsync
	rxlPrompt
	rxlConnect
	rxlConnectError
)

// indication represents an unsolicited result code (URC) from the modem, such
// as a received MQTT message.
//
// Indications are lines prefixed with a particular pattern, and may include a
// number of trailing lines. The matching lines are bundled into a slice and
// sent to the handler.
type indication struct {
	prefix  string
	lines   int
	handler InfoHandler
}

func newIndication(prefix string, handler InfoHandler, options ...IndicationOption) indication {
	ind := indication{
		prefix:  prefix,
		handler: handler,
		lines:   1,
	}
	for _, option := range options {
		option(&ind)
	}
	return ind
}

// IndicationOption alters the behavior of the indication.
type IndicationOption func(*indication)

// WithTrailingLines indicates the indication includes a number of lines after
// the line containing the indication.
func WithTrailingLines(l int) IndicationOption {
	return func(ind *indication) {
		ind.lines = l + 1
	}
}

// WithTrailingLine indicates the indication includes one line after the line
// containing the indication.
var WithTrailingLine = WithTrailingLines(1)

// parseCmdID returns the identifier component of the command.
//
// This is the section prior to any '=' or '?' and is generally, but not
// always, used to prefix info lines corresponding to the command.
func parseCmdID(cmdLine string) string {
	if idx := strings.IndexAny(cmdLine, "=?"); idx != -1 {
		return cmdLine[0:idx]
	}
	return cmdLine
}

// parseRxLine parses a received line and identifies the line type.
func parseRxLine(line string, cmdID string) rxl {
	switch {
	case line == "OK":
		return rxlStatusOK
	case strings.HasPrefix(line, "ERROR"),
		strings.HasPrefix(line, "+CME ERROR:"),
		strings.HasPrefix(line, "+CMS ERROR:"):
		return rxlStatusError
	case strings.HasPrefix(line, cmdID+":"):
		return rxlInfo
	case line == string(prompt):
		return rxlPrompt
	case strings.HasPrefix(line, "AT"+cmdID):
		return rxlEchoCmdLine
	case len(cmdID) == 0 || cmdID[0] != 'D':
		// Short circuit non-ATD commands.
		return rxlUnknown
	case strings.HasPrefix(line, "CONNECT"):
		return rxlConnect
	case line == "BUSY",
		line == "NO ANSWER",
		line == "NO CARRIER",
		line == "NO DIALTONE":
		return rxlConnectError
	default:
		return rxlUnknown
	}
}

// scanLines is a custom line scanner for lineReader that recognises the prompt
// returned by the modem in response to payload commands such as +CMQTTPUB.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	// handle prompt special case - no CR at prompt
	if len(data) >= 1 && data[0] == prompt {
		i := 1
		// there may be trailing space, so swallow that...
		for ; i < len(data) && data[i] == ' '; i++ {
		}
		return i, data[0:1], nil
	}
	return bufio.ScanLines(data, atEOF)
}
