package msg

import (
	"github.com/sarchlab/schd/sim/id"
	"github.com/sarchlab/schd/sim/timing"
)

// An Envelope carries a document from one endpoint to one or more
// destinations. A destination is an exact endpoint name or a pattern.
type Envelope struct {
	ID       string
	Src      string
	Dst      []string
	Body     Doc
	SendTime timing.VTimeInSec
	RecvTime timing.VTimeInSec
}

// NewEnvelope creates an envelope with a fresh ID.
func NewEnvelope(src string, dst []string, body Doc) *Envelope {
	return &Envelope{
		ID:   id.Generate(),
		Src:  src,
		Dst:  dst,
		Body: body,
	}
}

// Clone deep-copies the envelope and gives the copy a new ID.
func (e *Envelope) Clone() *Envelope {
	c := *e
	c.ID = id.Generate()
	c.Dst = append([]string(nil), e.Dst...)
	c.Body = e.Body.Clone()

	return &c
}

// Doc renders the envelope, including its addressing, as a document.
func (e *Envelope) Doc() Doc {
	dst := make([]any, len(e.Dst))
	for i, d := range e.Dst {
		dst[i] = d
	}

	return Doc{
		"id":   e.ID,
		"src":  e.Src,
		"dst":  dst,
		"body": e.Body.Clone(),
	}
}
