package host

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/runnerr0/browsinglab/internal/nativemsg"
)

// bindArgs merges a message's positional arguments, named by the handler's
// parameter list, with its keyword arguments into one JSON object.
func bindArgs(h handler, msg *nativemsg.Message) (json.RawMessage, error) {
	obj := make(map[string]json.RawMessage, len(h.params)+len(msg.Kwargs))

	if h.rest != "" {
		args := msg.Args
		if args == nil {
			args = []json.RawMessage{}
		}
		packed, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadArguments, err)
		}
		obj[h.rest] = packed
	} else {
		if len(msg.Args) > len(h.params) {
			return nil, fmt.Errorf("%w: %s takes %d positional arguments but %d were given",
				ErrBadArguments, msg.Name, len(h.params), len(msg.Args))
		}
		for i, arg := range msg.Args {
			obj[h.params[i]] = arg
		}
	}

	for k, v := range msg.Kwargs {
		if _, dup := obj[k]; dup {
			return nil, fmt.Errorf("%w: %s got multiple values for argument %q", ErrBadArguments, msg.Name, k)
		}
		obj[k] = v
	}

	for _, name := range h.required {
		if _, ok := obj[name]; !ok {
			return nil, fmt.Errorf("%w: %s missing required argument %q", ErrBadArguments, msg.Name, name)
		}
	}

	return json.Marshal(obj)
}

// decodeStrict decodes data into v, rejecting fields v does not declare.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	return nil
}
