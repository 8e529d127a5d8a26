package notify

import (
	"context"
	"errors"

	"go.uber.org/multierr"
)

// ErrDisabled is returned by a sink that has no destination configured.
var ErrDisabled = errors.New("notifier disabled")

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi delivers to every sink independently. A failing sink does not stop
// the others; all errors are combined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}

func (m Multi) Len() int {
	n := 0
	for _, s := range m {
		if s != nil {
			n++
		}
	}
	return n
}
