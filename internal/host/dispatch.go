package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/runnerr0/browsinglab/internal/nativemsg"
	"github.com/runnerr0/browsinglab/internal/storage"
)

const describeArgLimit = 100

// Response is the reply to one message. A successful reply carries id and
// result (which may be null); a failed one carries id, error and traceback.
type Response struct {
	ID        json.RawMessage
	Result    any
	Error     string
	Traceback string
}

type successReply struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result"`
}

type errorReply struct {
	ID        json.RawMessage `json:"id"`
	Error     string          `json:"error"`
	Traceback string          `json:"traceback"`
}

// Failed reports whether the response is an error reply.
func (r Response) Failed() bool { return r.Error != "" }

// MarshalJSON implements json.Marshaler.
func (r Response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	if r.Failed() {
		return json.Marshal(errorReply{ID: id, Error: r.Error, Traceback: r.Traceback})
	}
	return json.Marshal(successReply{ID: id, Result: r.Result})
}

// Dispatch runs the handler named by msg and builds its reply. Handler
// errors and panics become error replies; they are also logged to stderr
// and to the archive log.
func (s *Session) Dispatch(ctx context.Context, msg *nativemsg.Message) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = s.failure(msg, fmt.Errorf("panic: %v", r), string(debug.Stack()))
		}
	}()

	h, ok := handlers[msg.Name]
	if !ok {
		return s.failure(msg, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Name), "")
	}
	if !h.archiveOptional && s.archive == nil {
		return s.failure(msg, fmt.Errorf("%w: %s", ErrNoArchive, describe(msg)), "")
	}

	params, err := bindArgs(h, msg)
	if err != nil {
		return s.failure(msg, err, "")
	}

	result, err := h.call(ctx, s, params)
	if err != nil {
		return s.failure(msg, err, "")
	}
	return Response{ID: msg.ID, Result: result}
}

// failure logs err and turns it into an error reply. When trace is empty it
// is built from the message and the error chain.
func (s *Session) failure(msg *nativemsg.Message, err error, trace string) Response {
	desc := describe(msg)
	if trace == "" {
		trace = errorTrace(desc, err)
	}
	s.logger.Error("message failed", "message", msg.Name, "error", err)

	text, _ := json.Marshal(fmt.Sprintf("Error in %s: %v", desc, err))
	tb, _ := json.Marshal(trace)
	s.writeLog(storage.FormatLogEntry("s_err", "", []json.RawMessage{text, tb}, s.now()))

	return Response{ID: msg.ID, Error: err.Error(), Traceback: trace}
}

// errorTrace lists the error chain under the failed message.
func errorTrace(desc string, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "in message %s\n", desc)
	fmt.Fprintf(&b, "  %v\n", err)
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "  caused by: %v\n", e)
	}
	return b.String()
}

// describe renders a message as name(args, kwargs) with long values cut
// short.
func describe(msg *nativemsg.Message) string {
	parts := make([]string, 0, len(msg.Args)+len(msg.Kwargs))
	for _, arg := range msg.Args {
		parts = append(parts, shorten(arg))
	}
	keys := make([]string, 0, len(msg.Kwargs))
	for k := range msg.Kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+shorten(msg.Kwargs[k]))
	}
	name := msg.Name
	if name == "" {
		name = "(unknown)"
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

func shorten(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	s := buf.String()
	if len(s) > describeArgLimit {
		s = s[:describeArgLimit] + "..."
	}
	return s
}
