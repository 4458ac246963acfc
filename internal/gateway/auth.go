package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
)

// Response codes for requests the registry could not answer.
const (
	CodeUnsupported = http.StatusNotImplemented
	CodeInternal    = http.StatusInternalServerError
)

// AuthRequest is the JSON body of graylogic/auth/{transport}/request.
type AuthRequest struct {
	ClientID   string `json:"client_id"`
	DeviceID   string `json:"device_id,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	Token      string `json:"token,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
}

// ToProtocol converts r into a registry request for transport.
func (r AuthRequest) ToProtocol(transport protocol.Transport) protocol.AuthenticationRequest {
	return protocol.AuthenticationRequest{
		Transport:  transport,
		DeviceID:   r.DeviceID,
		ClientID:   r.ClientID,
		Username:   r.Username,
		Password:   r.Password,
		Token:      r.Token,
		RemoteAddr: r.RemoteAddr,
	}
}

// handleAuthRequest answers a broker or device authentication request on
// the requesting client's response topic.
func (g *Gateway) handleAuthRequest(topic string, payload []byte) error {
	ctx, done, err := g.begin()
	if err != nil {
		return err
	}
	defer done()

	transportID, err := mqtt.ParseAuthRequestTopic(topic)
	if err != nil {
		return err
	}

	var req AuthRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	if req.ClientID == "" {
		return ErrMissingClientID
	}

	start := g.now()
	resp := g.Authenticate(ctx, req.ToProtocol(protocol.LookupTransport(transportID)))
	g.recorder.WriteAuthAttempt(influxdb.AuthAttempt{
		Protocol:  g.support.ID(),
		Transport: transportID,
		Success:   resp.Success,
		Code:      resp.Code,
		Duration:  g.now().Sub(start),
		Time:      start,
	})

	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encoding auth response: %w", err)
	}
	return g.mqtt.Publish(mqtt.Topics{}.AuthResponse(transportID, req.ClientID), body, g.mqtt.QoS(), false)
}

// Authenticate resolves req against the device catalogue and always
// returns a response: registry errors become failed responses carrying
// CodeUnsupported or CodeInternal.
func (g *Gateway) Authenticate(ctx context.Context, req protocol.AuthenticationRequest) *protocol.AuthenticationResponse {
	resp, err := g.support.AuthenticateWithRegistry(ctx, req, g.devices.Lookup())
	switch {
	case errors.Is(err, protocol.ErrUnsupportedAuthentication):
		g.logger.Warn("unsupported authentication request", "request", req.String())
		return protocol.AuthenticationError(CodeUnsupported, "unsupported transport")
	case err != nil:
		g.logger.Error("authentication failed", "request", req.String(), "error", err)
		return protocol.AuthenticationError(CodeInternal, "authentication error")
	}

	if resp.Success {
		g.logger.Info("device authenticated", "request", req.String(), "device_id", resp.DeviceID)
	} else {
		g.logger.Info("device rejected", "request", req.String(), "code", resp.Code)
	}
	return resp
}
