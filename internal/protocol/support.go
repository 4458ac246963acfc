package protocol

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-protocols/internal/protocol/metadata"
)

// Logger defines the logging interface used by Support.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a new Support.
type Options struct {
	// ID uniquely identifies the protocol support (required).
	ID string

	// Name is a human-readable name. Defaults to ID.
	Name string

	// Description is optional free text.
	Description string

	// MetadataCodec is the mandatory device metadata codec (required).
	MetadataCodec metadata.Codec

	// Logger receives registration and lifecycle events. Optional.
	Logger Logger
}

// Support is a protocol capability registry keyed by transport.
//
// A Support is populated incrementally with Add/Set calls, typically while
// a protocol module initialises, consulted by gateways during steady-state
// operation, and disposed once when the module is unloaded.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Capability tables are independently locked; registering an interceptor
//     is the only read-modify-write operation and is serialised.
type Support struct {
	id          string
	name        string
	description string
	identityMu  sync.RWMutex

	metadataCodec metadata.Codec
	extraCodecs   []metadata.Codec
	extraCodecsMu sync.RWMutex

	// Capability tables, keyed by transport ID.
	codecs          *table[Provider[MessageCodec]]
	authenticators  *table[Authenticator]
	configMetadata  *table[Provider[*metadata.ConfigMetadata]]
	defaultMetadata *table[Provider[*metadata.DeviceMetadata]]
	expands         *table[ExpandsConfigSupplier]

	// interceptor holds nil, a single interceptor, or a *CompositeInterceptor.
	interceptor   atomic.Pointer[interceptorRef]
	interceptorMu sync.Mutex

	stateChecker atomic.Pointer[stateCheckerRef]
	initConfig   atomic.Pointer[metadata.ConfigMetadata]

	disposed    atomic.Bool
	disposables []Disposable
	initFuncs   []InitFunc
	lifecycleMu sync.Mutex

	logger Logger
}

type stateCheckerRef struct {
	checker StateChecker
}

// New creates an empty protocol support.
//
// Parameters:
//   - opts: Identity, mandatory metadata codec and optional logger
//
// Returns:
//   - *Support: Empty registry ready for registration
//   - error: ErrInvalidSupport if ID or MetadataCodec is missing
func New(opts Options) (*Support, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidSupport)
	}
	if opts.MetadataCodec == nil {
		return nil, fmt.Errorf("%w: metadata codec is required", ErrInvalidSupport)
	}

	name := opts.Name
	if name == "" {
		name = opts.ID
	}

	s := &Support{
		id:              opts.ID,
		name:            name,
		description:     opts.Description,
		metadataCodec:   opts.MetadataCodec,
		codecs:          newTable[Provider[MessageCodec]](),
		authenticators:  newTable[Authenticator](),
		configMetadata:  newTable[Provider[*metadata.ConfigMetadata]](),
		defaultMetadata: newTable[Provider[*metadata.DeviceMetadata]](),
		expands:         newTable[ExpandsConfigSupplier](),
		logger:          noopLogger{},
	}
	if opts.Logger != nil {
		s.logger = opts.Logger
	}
	return s, nil
}

// ID returns the protocol support identifier.
func (s *Support) ID() string {
	return s.id
}

// Name returns the human-readable name.
func (s *Support) Name() string {
	s.identityMu.RLock()
	defer s.identityMu.RUnlock()
	return s.name
}

// SetName replaces the human-readable name.
func (s *Support) SetName(name string) {
	s.identityMu.Lock()
	s.name = name
	s.identityMu.Unlock()
}

// Description returns the description.
func (s *Support) Description() string {
	s.identityMu.RLock()
	defer s.identityMu.RUnlock()
	return s.description
}

// SetDescription replaces the description.
func (s *Support) SetDescription(description string) {
	s.identityMu.Lock()
	s.description = description
	s.identityMu.Unlock()
}

// register stores v for transport in t.
//
// Registrations on a disposed support are dropped so no lookup can succeed
// after disposal. A registration racing Dispose re-checks the flag after
// the put and removes its own entry, so a disposed support never holds
// capabilities.
func register[V any](s *Support, t *table[V], kind string, transport Transport, v V) {
	if transport == nil {
		s.logger.Warn("registration without transport ignored", "protocol", s.id, "kind", kind)
		return
	}
	if s.disposed.Load() {
		s.logger.Warn("registration on disposed protocol support ignored",
			"protocol", s.id,
			"kind", kind,
			"transport", transport.ID(),
		)
		return
	}

	t.put(transport.ID(), v)
	if s.disposed.Load() {
		t.remove(transport.ID())
		return
	}
	s.logger.Debug("capability registered", "protocol", s.id, "kind", kind, "transport", transport.ID())
}

// resolve looks up a provider and invokes it.
// Absence (nothing registered, disposed support, or a provider yielding nil)
// is reported as ok == false with a nil error.
func resolve[T any](ctx context.Context, s *Support, t *table[Provider[T]], transport Transport) (T, bool, error) {
	var zero T
	if transport == nil || s.disposed.Load() {
		return zero, false, nil
	}

	provider, ok := t.get(transport.ID())
	if !ok || provider == nil {
		return zero, false, nil
	}

	v, err := provider(ctx)
	if err != nil {
		return zero, false, err
	}
	if isNil(v) {
		return zero, false, nil
	}
	return v, true, nil
}

// =============================================================================
// Message Codecs
// =============================================================================

// AddMessageCodec registers a lazy codec provider for a transport,
// replacing any earlier registration for the same transport.
func (s *Support) AddMessageCodec(transport Transport, provider Provider[MessageCodec]) {
	if provider == nil {
		return
	}
	register(s, s.codecs, "message_codec", transport, provider)
}

// AddMessageCodecInstance registers a ready codec for a transport.
func (s *Support) AddMessageCodecInstance(transport Transport, codec MessageCodec) {
	if isNil(codec) {
		return
	}
	s.AddMessageCodec(transport, Just(codec))
}

// AddMessageCodecFor registers a codec under the transport it declares.
func (s *Support) AddMessageCodecFor(codec MessageCodec) {
	if isNil(codec) {
		return
	}
	s.AddMessageCodecInstance(codec.SupportTransport(), codec)
}

// MessageCodec resolves the codec registered for a transport.
//
// Returns:
//   - MessageCodec: The resolved codec (nil when absent)
//   - bool: false when no codec is registered or the provider yielded nothing
//   - error: The provider's own failure, unchanged
func (s *Support) MessageCodec(ctx context.Context, transport Transport) (MessageCodec, bool, error) {
	return resolve(ctx, s, s.codecs, transport)
}

// SupportedTransports resolves every registered codec concurrently and
// returns the distinct transports they declare, sorted by ID.
//
// The result is recomputed on every call. If any provider fails, the first
// failure is returned.
func (s *Support) SupportedTransports(ctx context.Context) ([]Transport, error) {
	if s.disposed.Load() {
		return nil, nil
	}

	providers := s.codecs.values()
	resolved := make([]Transport, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, provider := range providers {
		if provider == nil {
			continue
		}
		g.Go(func() error {
			codec, err := provider(gctx)
			if err != nil {
				return err
			}
			if isNil(codec) {
				return nil
			}
			resolved[i] = codec.SupportTransport()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(resolved))
	out := make([]Transport, 0, len(resolved))
	for _, t := range resolved {
		if t == nil {
			continue
		}
		if _, dup := seen[t.ID()]; dup {
			continue
		}
		seen[t.ID()] = struct{}{}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID() < out[j].ID()
	})
	return out, nil
}

// =============================================================================
// Config Schemas and Default Metadata
// =============================================================================

// AddConfigMetadata registers a lazy config schema provider for a transport.
func (s *Support) AddConfigMetadata(transport Transport, provider Provider[*metadata.ConfigMetadata]) {
	if provider == nil {
		return
	}
	register(s, s.configMetadata, "config_metadata", transport, provider)
}

// AddConfigMetadataInstance registers a ready config schema for a transport.
func (s *Support) AddConfigMetadataInstance(transport Transport, md *metadata.ConfigMetadata) {
	if md == nil {
		return
	}
	s.AddConfigMetadata(transport, Just(md))
}

// ConfigMetadata resolves the config schema registered for a transport.
func (s *Support) ConfigMetadata(ctx context.Context, transport Transport) (*metadata.ConfigMetadata, bool, error) {
	return resolve(ctx, s, s.configMetadata, transport)
}

// AddDefaultMetadata registers a lazy default device metadata provider.
func (s *Support) AddDefaultMetadata(transport Transport, provider Provider[*metadata.DeviceMetadata]) {
	if provider == nil {
		return
	}
	register(s, s.defaultMetadata, "default_metadata", transport, provider)
}

// AddDefaultMetadataInstance registers ready default device metadata.
func (s *Support) AddDefaultMetadataInstance(transport Transport, md *metadata.DeviceMetadata) {
	if md == nil {
		return
	}
	s.AddDefaultMetadata(transport, Just(md))
}

// DefaultMetadata resolves the default device metadata for a transport.
func (s *Support) DefaultMetadata(ctx context.Context, transport Transport) (*metadata.DeviceMetadata, bool, error) {
	return resolve(ctx, s, s.defaultMetadata, transport)
}

// SetExpandsConfigMetadata registers the expandable config supplier for a transport.
func (s *Support) SetExpandsConfigMetadata(transport Transport, supplier ExpandsConfigSupplier) {
	if isNil(supplier) {
		return
	}
	register(s, s.expands, "expands_config", transport, supplier)
}

// MetadataExpandsConfig returns the config schema fragments for one part of
// a device model on a transport. The sequence is empty when no supplier is
// registered; errors from the supplier are yielded unchanged.
func (s *Support) MetadataExpandsConfig(ctx context.Context, transport Transport, metadataType metadata.Type, metadataID, dataTypeID string) iter.Seq2[*metadata.ConfigMetadata, error] {
	if transport == nil || s.disposed.Load() {
		return emptySeq2[*metadata.ConfigMetadata, error]()
	}

	supplier, ok := s.expands.get(transport.ID())
	if !ok || isNil(supplier) {
		return emptySeq2[*metadata.ConfigMetadata, error]()
	}

	seq := supplier.ExpandsConfig(ctx, metadataType, metadataID, dataTypeID)
	if seq == nil {
		return emptySeq2[*metadata.ConfigMetadata, error]()
	}
	return seq
}

// SetInitConfigMetadata sets the schema of the configuration map passed to Init.
func (s *Support) SetInitConfigMetadata(md *metadata.ConfigMetadata) {
	s.initConfig.Store(md)
}

// InitConfigMetadata returns the schema set with SetInitConfigMetadata.
func (s *Support) InitConfigMetadata() (*metadata.ConfigMetadata, bool) {
	md := s.initConfig.Load()
	return md, md != nil
}

// =============================================================================
// Metadata Codecs
// =============================================================================

// MetadataCodec returns the mandatory metadata codec.
func (s *Support) MetadataCodec() metadata.Codec {
	return s.metadataCodec
}

// AddMetadataCodec appends an auxiliary metadata codec.
func (s *Support) AddMetadataCodec(codec metadata.Codec) {
	if isNil(codec) {
		return
	}
	s.extraCodecsMu.Lock()
	s.extraCodecs = append(s.extraCodecs, codec)
	s.extraCodecsMu.Unlock()
}

// MetadataCodecs yields the mandatory codec followed by the auxiliary
// codecs in the order they were added. Each iteration takes a fresh
// snapshot, so the sequence can be ranged over repeatedly.
func (s *Support) MetadataCodecs() iter.Seq[metadata.Codec] {
	return func(yield func(metadata.Codec) bool) {
		if !yield(s.metadataCodec) {
			return
		}

		s.extraCodecsMu.RLock()
		extra := slices.Clone(s.extraCodecs)
		s.extraCodecsMu.RUnlock()

		for _, c := range extra {
			if !yield(c) {
				return
			}
		}
	}
}

// MetadataCodecByID returns the first metadata codec with the given ID.
func (s *Support) MetadataCodecByID(id string) (metadata.Codec, bool) {
	for c := range s.MetadataCodecs() {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// =============================================================================
// State Checker
// =============================================================================

// SetStateChecker sets the optional device state checker.
func (s *Support) SetStateChecker(checker StateChecker) {
	if isNil(checker) {
		s.stateChecker.Store(nil)
		return
	}
	s.stateChecker.Store(&stateCheckerRef{checker: checker})
}

// StateChecker returns the registered state checker, if any.
func (s *Support) StateChecker() (StateChecker, bool) {
	ref := s.stateChecker.Load()
	if ref == nil {
		return nil, false
	}
	return ref.checker, true
}

// Stats summarises registrations for monitoring.
type Stats struct {
	MessageCodecs    int  `json:"message_codecs"`
	Authenticators   int  `json:"authenticators"`
	ConfigMetadata   int  `json:"config_metadata"`
	DefaultMetadata  int  `json:"default_metadata"`
	ExpandsSuppliers int  `json:"expands_suppliers"`
	MetadataCodecs   int  `json:"metadata_codecs"`
	HasStateChecker  bool `json:"has_state_checker"`
	Disposed         bool `json:"disposed"`
}

// Stats returns current registration counts. Per-transport counts are zero
// once the support is disposed.
func (s *Support) Stats() Stats {
	s.extraCodecsMu.RLock()
	metadataCodecs := 1 + len(s.extraCodecs)
	s.extraCodecsMu.RUnlock()

	_, hasChecker := s.StateChecker()

	if s.disposed.Load() {
		return Stats{
			MetadataCodecs:  metadataCodecs,
			HasStateChecker: hasChecker,
			Disposed:        true,
		}
	}

	return Stats{
		MessageCodecs:    s.codecs.size(),
		Authenticators:   s.authenticators.size(),
		ConfigMetadata:   s.configMetadata.size(),
		DefaultMetadata:  s.defaultMetadata.size(),
		ExpandsSuppliers: s.expands.size(),
		MetadataCodecs:   metadataCodecs,
		HasStateChecker:  hasChecker,
		Disposed:         s.disposed.Load(),
	}
}
