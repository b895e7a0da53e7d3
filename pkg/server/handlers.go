package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/osmocom-go/hlr-gsup/pkg/audit"
	"github.com/osmocom-go/hlr-gsup/pkg/gsup"
	"github.com/osmocom-go/hlr-gsup/pkg/routing"
)

// readLoop is the connection's only reader. It classifies every inbound
// frame, routes CCM frames to the CCM handler unconditionally, and
// otherwise either dispatches to the one-shot Update Location
// continuation (if one is pending) or to the regular request table.
//
// The nested Update Location wait is implemented as a read deadline on
// this same loop rather than a second reader: when pending is set, the
// next ReadFrame call is bounded by pending.deadline, and a timeout is
// handled exactly like any other inbound event.
func (c *Conn) readLoop() {
	defer c.close()

	for {
		if c.pending != nil {
			c.netConn.SetReadDeadline(c.pending.deadline)
		} else {
			c.netConn.SetReadDeadline(time.Time{})
		}

		frame, err := gsup.ReadFrame(c.netConn)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() && c.pending != nil {
				c.expireUpdateLocation()
				continue
			}
			c.log.Debug("connection closed", "reason", err.Error())
			return
		}

		if frame.IsCCM() {
			c.metrics.FramesReceivedTotal.WithLabelValues("ccm").Inc()
			c.handleCCM(frame.Payload)
			c.recordMessage()
			continue
		}
		c.metrics.FramesReceivedTotal.WithLabelValues("gsup").Inc()

		msg, err := gsup.Decode(frame.Payload)
		if err != nil {
			switch {
			case errors.Is(err, gsup.ErrEmptyPayload):
				// No message type byte at all: a protocol error per the
				// data model, but there is no request to reply to, so the
				// connection just stays open and waits for the next frame.
				c.log.Warn("empty GSUP payload", "error", err.Error())
				continue
			case errors.Is(err, gsup.ErrDuplicateIE):
				c.log.Warn("protocol violation in GSUP payload", "error", err.Error(), "type", msg.Type.String())
				c.recordMessage()
				c.replyProtocolError(msg.Type)
				continue
			default:
				c.log.Warn("malformed GSUP payload, closing connection", "error", err.Error())
				return
			}
		}
		c.recordMessage()

		if c.pending != nil {
			c.handleDuringPendingUpdateLocation(msg)
			continue
		}

		c.dispatch(msg)
	}
}

// recordMessage reports one successfully framed application-layer message
// (CCM or GSUP) to the health check's message counter.
func (c *Conn) recordMessage() {
	if c.health != nil {
		c.health.RecordMessage()
	}
}

// replyProtocolError sends the *Error message appropriate to reqType with
// Cause=ProtocolError. reqType for which no typed error exists are ignored,
// per the connection remaining open with no reply required.
func (c *Conn) replyProtocolError(reqType gsup.MessageType) {
	errType, ok := gsup.ErrorTypeFor(reqType)
	if !ok {
		return
	}
	c.enqueueGSUP(errType, gsup.ErrorIEs(gsup.CauseProtocolError))
}

func (c *Conn) handleCCM(payload []byte) {
	reply, identified, err := gsup.HandleCCM(payload, c.identity)
	if err != nil {
		c.log.Debug("ignoring malformed CCM frame", "error", err.Error())
		return
	}
	if identified {
		c.state = stateIdentified
	}
	if reply != nil {
		c.enqueueCCM(reply)
		c.metrics.FramesSentTotal.WithLabelValues("ccm").Inc()
	}
}

// handleDuringPendingUpdateLocation enforces the nested-exchange rule:
// while a pending Update Location is outstanding, the only acceptable
// non-CCM inbound message is a matching InsertSubscriberDataResult.
// Anything else is a protocol violation.
func (c *Conn) handleDuringPendingUpdateLocation(msg gsup.Message) {
	if msg.Type == gsup.MsgInsertSubscriberDataResult {
		if imsi, err := msg.DecodeIMSI(); err == nil && imsi == c.pending.imsi {
			c.completeUpdateLocation()
			return
		}
	}

	c.log.Warn("protocol violation during pending update location",
		"expected_imsi", c.pending.imsi, "got_type", msg.Type.String())
	pending := c.pending
	c.pending = nil
	c.metrics.UpdateLocationDuration.Observe(time.Since(pending.start).Seconds())
	c.recordOutcome(pending.imsi, "UpdateLocation", "protocol_violation", "")
	c.enqueueGSUP(gsup.MsgUpdateLocationError, gsup.ErrorIEs(gsup.CauseProtocolError))
}

func (c *Conn) expireUpdateLocation() {
	c.log.Warn("update location nested wait timed out", "imsi", c.pending.imsi)
	pending := c.pending
	c.pending = nil
	c.metrics.UpdateLocationDuration.Observe(time.Since(pending.start).Seconds())
	c.recordOutcome(pending.imsi, "UpdateLocation", "timeout", "")
	c.enqueueGSUP(gsup.MsgUpdateLocationError, gsup.ErrorIEs(gsup.CauseProtocolError))
}

func (c *Conn) dispatch(msg gsup.Message) {
	switch msg.Type {
	case gsup.MsgSendAuthInfoRequest:
		c.handleSendAuthInfo(msg)
	case gsup.MsgSendSubscriberDataRequest:
		c.handleSendSubscriberData(msg)
	case gsup.MsgSendRoutingInfoForSMRequest:
		c.handleSendRoutingInfoForSM(msg)
	case gsup.MsgUpdateLocationRequest:
		c.handleUpdateLocationRequest(msg)
	default:
		c.log.Debug("ignoring unhandled message type", "type", msg.Type.String())
	}
}

func (c *Conn) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// --- 4.5.1 Authentication Info ---

func (c *Conn) handleSendAuthInfo(msg gsup.Message) {
	imsi, err := msg.DecodeIMSI()
	if err != nil {
		c.enqueueGSUP(gsup.MsgSendAuthInfoError, gsup.ErrorIEs(gsup.CauseProtocolError))
		return
	}

	ctx, cancel := c.ctx()
	defer cancel()
	rec, err := c.auth.FetchAuthData(ctx, imsi)
	if err != nil {
		c.recordOutcome(imsi, "SendAuthInfo", "provisioner_error", err.Error())
		c.enqueueGSUP(gsup.MsgSendAuthInfoError, gsup.ErrorIEs(gsup.CauseIMSIUnknown))
		return
	}

	// The source behavior maps ki -> RAND and opc -> AUTN, which is not a
	// correct Milenage derivation. Preserved here for bug-compatibility;
	// see the open question in the design notes.
	ki, err := rec.KiBytes()
	if err != nil {
		c.enqueueGSUP(gsup.MsgSendAuthInfoError, gsup.ErrorIEs(gsup.CauseIMSIUnknown))
		return
	}
	opc, err := rec.OPCBytes()
	if err != nil {
		c.enqueueGSUP(gsup.MsgSendAuthInfoError, gsup.ErrorIEs(gsup.CauseIMSIUnknown))
		return
	}

	c.recordOutcome(imsi, "SendAuthInfo", "success", "")
	c.enqueueGSUP(gsup.MsgSendAuthInfoResult, []gsup.IE{
		gsup.IMSIIE(imsi),
		{Type: gsup.IERAND, Value: ki},
		{Type: gsup.IEAUTN, Value: opc},
	})
}

// --- 4.5.2 Subscriber Data ---

func (c *Conn) handleSendSubscriberData(msg gsup.Message) {
	imsi, err := msg.DecodeIMSI()
	if err != nil {
		c.enqueueGSUP(gsup.MsgSendSubscriberDataError, gsup.ErrorIEs(gsup.CauseProtocolError))
		return
	}

	ctx, cancel := c.ctx()
	defer cancel()
	rec, err := c.auth.FetchAuthData(ctx, imsi)
	if err != nil {
		c.recordOutcome(imsi, "SendSubscriberData", "provisioner_error", err.Error())
		c.enqueueGSUP(gsup.MsgSendSubscriberDataError, gsup.ErrorIEs(gsup.CauseSubscriberDataNotAvailable))
		return
	}

	ies := []gsup.IE{
		gsup.IMSIIE(imsi),
		{Type: gsup.IEMSISDN, Value: []byte(msisdnOrDefault(rec.MSISDN))},
		{Type: gsup.IESubscriberStatus, Value: []byte{uint8(gsup.SubscriberStatusServiceGranted)}},
		{Type: gsup.IENetworkAccessMode, Value: []byte{uint8(gsup.NetworkAccessModePacketAndCircuit)}},
	}
	if len(rec.BearerServices) > 0 {
		ies = append(ies, gsup.IE{Type: gsup.IEBearerServices, Value: rec.BearerServices})
	}
	if len(rec.Teleservices) > 0 {
		ies = append(ies, gsup.IE{Type: gsup.IETeleservices, Value: rec.Teleservices})
	}

	c.recordOutcome(imsi, "SendSubscriberData", "success", "")
	c.enqueueGSUP(gsup.MsgSendSubscriberDataResult, ies)
}

// --- 4.5.3 Routing Info for SM ---

func (c *Conn) handleSendRoutingInfoForSM(msg gsup.Message) {
	imsi, err := msg.DecodeIMSI()
	if err != nil {
		c.enqueueGSUP(gsup.MsgSendRoutingInfoForSMError, gsup.ErrorIEs(gsup.CauseProtocolError))
		return
	}

	entry, ok := c.routing.Lookup(imsi)
	if !ok || entry.Empty() {
		c.recordOutcome(imsi, "SendRoutingInfoForSM", "no_route", "")
		c.enqueueGSUP(gsup.MsgSendRoutingInfoForSMError, gsup.ErrorIEs(gsup.CauseSMSRoutingError))
		return
	}

	ies := []gsup.IE{gsup.IMSIIE(imsi)}
	if entry.MSCNumber != "" {
		ies = append(ies, gsup.IE{Type: gsup.IEMSCNumber, Value: []byte(entry.MSCNumber)})
	}
	if entry.SGSNNumber != "" {
		ies = append(ies, gsup.IE{Type: gsup.IESGSNNumber, Value: []byte(entry.SGSNNumber)})
	}
	if entry.MMENumber != "" {
		ies = append(ies, gsup.IE{Type: gsup.IEMMENumber, Value: []byte(entry.MMENumber)})
	}

	c.recordOutcome(imsi, "SendRoutingInfoForSM", "success", "")
	c.enqueueGSUP(gsup.MsgSendRoutingInfoForSMResult, ies)
}

// --- 4.5.4 Update Location (nested exchange) ---

func (c *Conn) handleUpdateLocationRequest(msg gsup.Message) {
	imsi, err := msg.DecodeIMSI()
	if err != nil {
		c.enqueueGSUP(gsup.MsgUpdateLocationError, gsup.ErrorIEs(gsup.CauseProtocolError))
		return
	}

	if c.pending != nil {
		c.enqueueGSUP(gsup.MsgUpdateLocationError, gsup.ErrorIEs(gsup.CauseProtocolError))
		return
	}

	ctx, cancel := c.ctx()
	defer cancel()
	rec, err := c.auth.FetchAuthData(ctx, imsi)
	if err != nil {
		c.recordOutcome(imsi, "UpdateLocation", "provisioner_error", err.Error())
		c.enqueueGSUP(gsup.MsgUpdateLocationError, gsup.ErrorIEs(gsup.CauseSubscriberDataNotAvailable))
		return
	}

	vlr, _ := msg.IEs.Get(gsup.IEVLRNumber)
	msc, _ := msg.IEs.Get(gsup.IEMSCNumber)
	sgsn, _ := msg.IEs.Get(gsup.IESGSNNumber)

	now := time.Now()
	c.pending = &pendingUpdateLocation{
		imsi:       imsi,
		vlrNumber:  string(vlr),
		mscNumber:  string(msc),
		sgsnNumber: string(sgsn),
		deadline:   now.Add(c.ulTimeout),
		start:      now,
	}

	c.enqueueGSUP(gsup.MsgInsertSubscriberDataRequest, []gsup.IE{
		gsup.IMSIIE(imsi),
		{Type: gsup.IEMSISDN, Value: []byte(msisdnOrDefault(rec.MSISDN))},
		{Type: gsup.IESubscriberStatus, Value: []byte{uint8(gsup.SubscriberStatusServiceGranted)}},
		{Type: gsup.IENetworkAccessMode, Value: []byte{uint8(gsup.NetworkAccessModePacketAndCircuit)}},
		{Type: gsup.IESubscriberDataFlags, Value: []byte{0x00}},
		{Type: gsup.IEGSMBearerCapabilities, Value: []byte{0x00}},
	})
}

// completeUpdateLocation runs when the read loop has matched the awaited
// InsertSubscriberDataResult: it upserts the routing entry from the
// original request's numbers and replies with the final result.
func (c *Conn) completeUpdateLocation() {
	pending := c.pending
	c.pending = nil

	c.routing.Upsert(pending.imsi, routing.Entry{
		VLRNumber:  pending.vlrNumber,
		MSCNumber:  pending.mscNumber,
		SGSNNumber: pending.sgsnNumber,
	})

	c.metrics.UpdateLocationDuration.Observe(time.Since(pending.start).Seconds())
	c.recordOutcome(pending.imsi, "UpdateLocation", "success", "")
	c.enqueueGSUP(gsup.MsgUpdateLocationResult, []gsup.IE{gsup.IMSIIE(pending.imsi)})
}

// recordOutcome is the single completion point for a GSUP procedure: it
// pushes the event onto the admin live feed (if one is wired) and appends
// it to the audit trail (if one is configured). Neither sink can fail a
// GSUP reply; both are best-effort.
func (c *Conn) recordOutcome(imsi, procedure, outcome, detail string) {
	if c.notify != nil {
		c.notify.BroadcastProcedure(procedure, imsi, outcome)
	}
	if c.audit == nil {
		return
	}
	c.audit.Record(context.Background(), audit.Event{
		Timestamp: time.Now(),
		Peer:      c.peer,
		IMSI:      imsi,
		Procedure: procedure,
		Outcome:   outcome,
		Detail:    detail,
	})
}

// msisdnOrDefault mirrors the source behavior of substituting a
// hard-coded MSISDN when the provisioner does not supply one.
func msisdnOrDefault(msisdn string) string {
	if msisdn != "" {
		return msisdn
	}
	return "1234567890"
}
