// Package dump writes every envelope that crosses the fabric to a file as a
// stream of CBOR records. The dump is a side channel and never changes the
// simulation.
package dump

import (
	"bufio"
	"errors"
	"io"
	"os"
	"reflect"
	"regexp"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/sarchlab/schd/andlist"
	"github.com/sarchlab/schd/msg"
	"github.com/sarchlab/schd/sim/hooking"
	"github.com/sarchlab/schd/sim/timing"
	"github.com/sarchlab/schd/xbar"
)

// Directions of a record.
const (
	Out = "out"
	In  = "in"
)

// Record is one dumped envelope.
type Record struct {
	Time      float64 `cbor:"time"`
	Endpoint  string  `cbor:"endpoint"`
	Direction string  `cbor:"dir"`
	Envelope  msg.Doc `cbor:"env"`
}

// Writer is a hook that dumps envelopes. Attach it to crossbars to dump what
// is sent and to ports to dump what is received.
type Writer struct {
	lock sync.Mutex

	clock  timing.TimeTeller
	mask   *regexp.Regexp
	buf    *bufio.Writer
	closer io.Closer
	enc    *cbor.Encoder

	count int
	err   error
}

// NewWriter creates a writer that dumps to w. Only the endpoints matching
// the mask are dumped. An empty mask dumps everything.
func NewWriter(w io.Writer, clock timing.TimeTeller, mask string) (*Writer, error) {
	if mask == "" {
		mask = ".*"
	}

	re, err := andlist.Compile(mask)
	if err != nil {
		return nil, err
	}

	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}

	d := &Writer{
		clock: clock,
		mask:  re,
		buf:   bufio.NewWriter(w),
	}
	d.enc = em.NewEncoder(d.buf)

	if c, ok := w.(io.Closer); ok {
		d.closer = c
	}

	return d, nil
}

// Create creates the dump file and a writer to it.
func Create(path string, clock timing.TimeTeller, mask string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w, err := NewWriter(f, clock, mask)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return w, nil
}

// Func dumps the envelope carried by the hook context.
func (w *Writer) Func(ctx hooking.HookCtx) {
	env, ok := ctx.Item.(*msg.Envelope)
	if !ok {
		return
	}

	switch ctx.Pos {
	case xbar.HookPosMsgSend:
		w.write(env.Src, Out, env)
	case xbar.HookPosMsgRecvd:
		port, ok := ctx.Domain.(*xbar.Port)
		if !ok {
			return
		}

		w.write(port.Name(), In, env)
	}
}

func (w *Writer) write(endpoint, dir string, env *msg.Envelope) {
	if !w.mask.MatchString(endpoint) {
		return
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if w.err != nil {
		return
	}

	w.err = w.enc.Encode(Record{
		Time:      w.clock.Now(),
		Endpoint:  endpoint,
		Direction: dir,
		Envelope:  env.Doc(),
	})

	if w.err == nil {
		w.count++
	}
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.count
}

// Err returns the first write error.
func (w *Writer) Err() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.err
}

// Close flushes the records and closes the underlying file.
func (w *Writer) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	err := w.buf.Flush()
	if w.closer != nil {
		err = errors.Join(err, w.closer.Close())
	}

	return errors.Join(w.err, err)
}

// ReadAll decodes every record of a dump.
func ReadAll(r io.Reader) ([]Record, error) {
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, err
	}

	dec := dm.NewDecoder(r)

	var out []Record

	for {
		var rec Record

		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return out, nil
		}

		if err != nil {
			return out, err
		}

		out = append(out, rec)
	}
}
