package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-protocols/internal/audit"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol/metadata"
)

// Additional error codes for protocol endpoints.
const (
	ErrCodeUnsupportedAuth = "unsupported_authentication"
	ErrCodeInitFailed      = "init_failed"
)

// Content types for encoded device metadata.
const (
	contentTypeJSON = "application/json"
	contentTypeYAML = "application/yaml"
)

// ProtocolResponse describes the protocol support.
type ProtocolResponse struct {
	ID             string                   `json:"id"`
	Name           string                   `json:"name"`
	Description    string                   `json:"description,omitempty"`
	MetadataCodecs []string                 `json:"metadata_codecs"`
	InitConfig     *metadata.ConfigMetadata `json:"init_config,omitempty"`
	Stats          protocol.Stats           `json:"stats"`
}

// TransportResponse describes one supported transport.
type TransportResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AuthenticateRequest is the body of POST /protocol/authenticate.
type AuthenticateRequest struct {
	Transport  string `json:"transport"`
	DeviceID   string `json:"device_id,omitempty"`
	ClientID   string `json:"client_id,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	Token      string `json:"token,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
}

// handleGetProtocol returns the protocol identity and registration summary.
func (s *Server) handleGetProtocol(w http.ResponseWriter, _ *http.Request) {
	resp := ProtocolResponse{
		ID:          s.support.ID(),
		Name:        s.support.Name(),
		Description: s.support.Description(),
		Stats:       s.support.Stats(),
	}
	for c := range s.support.MetadataCodecs() {
		resp.MetadataCodecs = append(resp.MetadataCodecs, c.ID())
	}
	if md, ok := s.support.InitConfigMetadata(); ok {
		resp.InitConfig = md
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListTransports lists the transports that currently resolve a codec.
func (s *Server) handleListTransports(w http.ResponseWriter, r *http.Request) {
	transports, err := s.support.SupportedTransports(r.Context())
	if err != nil {
		s.logger.Error("listing supported transports", "error", err)
		writeInternalError(w, "failed to list transports")
		return
	}

	out := make([]TransportResponse, 0, len(transports))
	for _, t := range transports {
		out = append(out, TransportResponse{ID: t.ID(), Name: t.Name()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transports": out,
		"count":      len(out),
	})
}

// handleGetConfigMetadata returns the device configuration schema of a transport.
func (s *Server) handleGetConfigMetadata(w http.ResponseWriter, r *http.Request) {
	transport := transportParam(r)

	md, ok, err := s.support.ConfigMetadata(r.Context(), transport)
	if err != nil {
		s.logger.Error("resolving config metadata", "transport", transport.ID(), "error", err)
		writeInternalError(w, "failed to resolve config metadata")
		return
	}
	if !ok {
		writeNotFound(w, "no config metadata for transport "+transport.ID())
		return
	}
	writeJSON(w, http.StatusOK, md)
}

// handleGetDefaultMetadata returns the default device model of a transport,
// encoded with the metadata codec named by ?format (the mandatory codec by default).
func (s *Server) handleGetDefaultMetadata(w http.ResponseWriter, r *http.Request) {
	transport := transportParam(r)

	codec := s.support.MetadataCodec()
	if format := r.URL.Query().Get("format"); format != "" {
		c, ok := s.support.MetadataCodecByID(format)
		if !ok {
			writeBadRequest(w, "unknown metadata format "+format)
			return
		}
		codec = c
	}

	md, ok, err := s.support.DefaultMetadata(r.Context(), transport)
	if err != nil {
		s.logger.Error("resolving default metadata", "transport", transport.ID(), "error", err)
		writeInternalError(w, "failed to resolve default metadata")
		return
	}
	if !ok {
		writeNotFound(w, "no default metadata for transport "+transport.ID())
		return
	}

	body, err := codec.Encode(r.Context(), md)
	if err != nil {
		s.logger.Error("encoding default metadata", "codec", codec.ID(), "error", err)
		writeInternalError(w, "failed to encode default metadata")
		return
	}

	contentType := contentTypeJSON
	if codec.ID() == metadata.YAMLCodecID {
		contentType = contentTypeYAML
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(body)
}

// handleGetExpands returns the config fragments for one part of a device model.
//
// Query parameters: type (property, function, event or tag; required),
// id (metadata id) and data_type.
func (s *Server) handleGetExpands(w http.ResponseWriter, r *http.Request) {
	transport := transportParam(r)
	q := r.URL.Query()

	metadataType, ok := metadata.ParseType(q.Get("type"))
	if !ok {
		writeBadRequest(w, "type must be one of property, function, event, tag")
		return
	}

	out := []*metadata.ConfigMetadata{}
	for md, err := range s.support.MetadataExpandsConfig(r.Context(), transport, metadataType, q.Get("id"), q.Get("data_type")) {
		if err != nil {
			s.logger.Error("expanding config metadata", "transport", transport.ID(), "error", err)
			writeInternalError(w, "failed to expand config metadata")
			return
		}
		out = append(out, md)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"expands": out,
		"count":   len(out),
	})
}

// handleGetDeviceState reports a device's state through the state checker.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	checker, ok := s.support.StateChecker()
	if !ok {
		writeNotFound(w, "protocol has no state checker")
		return
	}

	id := chi.URLParam(r, "id")
	dev, err := s.devices.Lookup().Device(r.Context(), id)
	if err != nil {
		if errors.Is(err, protocol.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("looking up device", "device_id", id, "error", err)
		writeInternalError(w, "failed to look up device")
		return
	}

	state, err := checker.CheckState(r.Context(), dev)
	if err != nil {
		s.logger.Error("checking device state", "device_id", id, "error", err)
		writeInternalError(w, "failed to check device state")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"state":     state,
	})
}

// handleAuthenticate runs the transport's authenticator against the device registry.
// Verdicts (including rejections) are returned with 200; the code field
// carries the outcome.
func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var body AuthenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if body.Transport == "" {
		writeBadRequest(w, "transport is required")
		return
	}

	req := protocol.AuthenticationRequest{
		Transport:  protocol.LookupTransport(body.Transport),
		DeviceID:   body.DeviceID,
		ClientID:   body.ClientID,
		Username:   body.Username,
		Password:   body.Password,
		Token:      body.Token,
		RemoteAddr: body.RemoteAddr,
	}

	resp, err := s.support.AuthenticateWithRegistry(r.Context(), req, s.devices.Lookup())
	s.recordAudit(r.Context(), r, authAuditEntry(body, resp, err))
	if err != nil {
		if errors.Is(err, protocol.ErrUnsupportedAuthentication) {
			writeUnprocessable(w, ErrCodeUnsupportedAuth,
				"transport "+body.Transport+" does not support authentication")
			return
		}
		s.logger.Error("authenticating device", "request", req.String(), "error", err)
		writeInternalError(w, "authentication failed")
		return
	}

	s.logger.Info("device authentication",
		"transport", body.Transport,
		"device_id", resp.DeviceID,
		"code", resp.Code,
	)
	writeJSON(w, http.StatusOK, resp)
}

// handleInit replays the protocol's init callbacks with the request body.
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if body == nil {
		body = map[string]any{}
	}

	err := s.support.Init(body)
	s.recordAudit(r.Context(), r, initAuditEntry(s.support.ID(), body, err))
	if err != nil {
		if errors.Is(err, protocol.ErrInitFailed) {
			writeUnprocessable(w, ErrCodeInitFailed, err.Error())
			return
		}
		s.logger.Error("initialising protocol support", "error", err)
		writeInternalError(w, "init failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "initialised",
		"disposed": s.support.IsDisposed(),
	})
}

// authAuditEntry describes an authentication call without its credentials.
func authAuditEntry(body AuthenticateRequest, resp *protocol.AuthenticationResponse, err error) audit.Entry {
	entityID := body.DeviceID
	if entityID == "" {
		entityID = body.Username
	}
	details := map[string]any{"transport": body.Transport}
	switch {
	case err != nil:
		details["error"] = err.Error()
	case resp != nil:
		details["code"] = resp.Code
		details["success"] = resp.Success
	}
	return audit.Entry{
		Action:     audit.ActionAuthenticate,
		EntityType: audit.EntityDevice,
		EntityID:   entityID,
		Actor:      body.RemoteAddr,
		Details:    details,
	}
}

// initAuditEntry records which init keys were supplied, never their values.
func initAuditEntry(protocolID string, body map[string]any, err error) audit.Entry {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	details := map[string]any{"keys": keys}
	if err != nil {
		details["error"] = err.Error()
	}
	return audit.Entry{
		Action:     audit.ActionInit,
		EntityType: audit.EntityProtocol,
		EntityID:   protocolID,
		Details:    details,
	}
}

// transportParam resolves the {transport} URL parameter.
func transportParam(r *http.Request) protocol.Transport {
	return protocol.LookupTransport(chi.URLParam(r, "transport"))
}
