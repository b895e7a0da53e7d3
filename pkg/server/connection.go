package server

import (
	"context"
	"net"
	"time"

	"github.com/osmocom-go/hlr-gsup/internal/logger"
	"github.com/osmocom-go/hlr-gsup/pkg/audit"
	"github.com/osmocom-go/hlr-gsup/pkg/gsup"
	"github.com/osmocom-go/hlr-gsup/pkg/health"
	"github.com/osmocom-go/hlr-gsup/pkg/metrics"
	"github.com/osmocom-go/hlr-gsup/pkg/provisioner"
	"github.com/osmocom-go/hlr-gsup/pkg/routing"
)

// handshakeState tracks the CCM identity handshake. The server never
// rejects GSUP traffic based on this state (see design notes); it exists
// for observability and future policy tightening.
type handshakeState int

const (
	statePreID handshakeState = iota
	stateIdentified
)

// pendingUpdateLocation is the one-shot continuation the connection's read
// loop consults while a nested Update Location exchange is outstanding.
// It is kept as plain data rather than a closure: the read loop itself,
// not a second goroutine, decides whether the next non-CCM frame
// satisfies it (see completeUpdateLocation in handlers.go).
type pendingUpdateLocation struct {
	imsi       string
	vlrNumber  string
	mscNumber  string
	sgsnNumber string
	deadline   time.Time
	start      time.Time
}

// Conn is one accepted GSUP/IPA connection: a single read-loop goroutine
// and a single dedicated writer goroutine, so that bytes written in
// response to different frames never interleave on the wire.
type Conn struct {
	netConn net.Conn
	peer    string

	writeCh chan []byte
	done    chan struct{}

	state   handshakeState
	pending *pendingUpdateLocation

	identity gsup.Identity

	auth      AuthFetcher
	routing   *routing.Store
	metrics   *metrics.Metrics
	log       *logger.Logger
	audit     *audit.Writer
	health    *health.Check
	notify    ProcedureNotifier
	ulTimeout time.Duration
}

// AuthFetcher is the consumed contract to the external provisioner: the
// only operation a connection handler needs.
type AuthFetcher interface {
	FetchAuthData(ctx context.Context, imsi string) (*provisioner.AuthRecord, error)
}

// ProcedureNotifier receives one notification each time a GSUP procedure on
// some connection finishes, successfully or not. The admin web surface
// implements this to drive its live "/ws" feed of completed procedures.
type ProcedureNotifier interface {
	BroadcastProcedure(procedure, imsi, outcome string)
}

func newConn(nc net.Conn, auth AuthFetcher, rs *routing.Store, m *metrics.Metrics, log *logger.Logger, aw *audit.Writer, hc *health.Check, notify ProcedureNotifier, ulTimeout time.Duration) *Conn {
	peer := nc.RemoteAddr().String()
	return &Conn{
		netConn:   nc,
		peer:      peer,
		writeCh:   make(chan []byte, 16),
		done:      make(chan struct{}),
		state:     statePreID,
		identity:  gsup.DefaultIdentity(),
		auth:      auth,
		routing:   rs,
		metrics:   m,
		log:       log.WithConn(peer),
		audit:     aw,
		health:    hc,
		notify:    notify,
		ulTimeout: ulTimeout,
	}
}

// enqueueCCM schedules a raw CCM payload for writing.
func (c *Conn) enqueueCCM(payload []byte) {
	c.enqueueFrame(gsup.CCMSentinel, payload)
}

// enqueueGSUP schedules a GSUP message for writing.
func (c *Conn) enqueueGSUP(typ gsup.MessageType, ies []gsup.IE) {
	payload, err := gsup.Encode(typ, ies)
	if err != nil {
		c.log.Error("failed to encode outgoing message", err, "type", typ.String())
		return
	}
	c.enqueueFrame(gsup.Protocol, payload)
	c.metrics.FramesSentTotal.WithLabelValues("gsup").Inc()
}

func (c *Conn) enqueueFrame(protocol uint8, payload []byte) {
	select {
	case c.writeCh <- encodeFrameHeader(protocol, payload):
	case <-c.done:
	}
}

func encodeFrameHeader(protocol uint8, payload []byte) []byte {
	out := make([]byte, 3+len(payload))
	out[0] = byte(len(payload) >> 8)
	out[1] = byte(len(payload))
	out[2] = protocol
	copy(out[3:], payload)
	return out
}

// writeLoop is the connection's single writer: it owns the socket's write
// side exclusively, so handlers never write directly.
func (c *Conn) writeLoop() {
	for {
		select {
		case frame, ok := <-c.writeCh:
			if !ok {
				return
			}
			if _, err := c.netConn.Write(frame); err != nil {
				c.log.Warn("write failed, closing connection", "error", err.Error())
				c.netConn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// close releases all per-connection resources. Safe to call more than
// once and from any goroutine.
func (c *Conn) close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.netConn.Close()
}
