// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package socket

import "time"

// Options holds the socket configuration block of spec.md §6, mutated
// only at init (non-thread-safe sockets) or under the socket mutex
// (thread-safe sockets). The functional-options shape follows the
// teacher's own options.go (Option func(*Options), defaultOptions,
// WithXxx constructors).
type Options struct {
	SndHWM, RcvHWM int // 0 = unlimited
	Linger         time.Duration // -1 = infinite
	RoutingID      []byte

	RouterMandatory bool
	RouterHandover  bool
	ProbeRouter     bool

	XPubVerbose     XPubVerbose
	XPubWelcomeMsg  []byte
	InvertMatching  bool

	HeartbeatIvl     time.Duration
	HeartbeatTimeout time.Duration
	HeartbeatTTL     time.Duration // deciseconds resolution enforced by caller

	MaxMsgSize int64 // -1 = unlimited

	Immediate bool

	TLSCert, TLSKey, TLSCA, TLSPassword, TLSHostname string
	TLSTrustSystem                                  bool

	ZMPMetadata bool

	ConnectRoutingID []byte

	lastEndpoint string // read-only, populated after bind
}

// XPubVerbose controls which subscription notifications XPUB surfaces to
// the user via xrecv (spec.md §4.3).
type XPubVerbose uint8

const (
	XPubVerboseNone XPubVerbose = iota
	XPubVerboseAll
	XPubVerboseFirstUnique
)

var defaultOptions = Options{
	Linger:     -1,
	MaxMsgSize: -1,
}

// Option configures a Socket at construction time.
type Option func(*Options)

func WithSndHWM(n int) Option { return func(o *Options) { o.SndHWM = n } }
func WithRcvHWM(n int) Option { return func(o *Options) { o.RcvHWM = n } }
func WithLinger(d time.Duration) Option { return func(o *Options) { o.Linger = d } }
func WithRoutingID(id []byte) Option {
	return func(o *Options) { o.RoutingID = append([]byte(nil), id...) }
}
func WithConnectRoutingID(id []byte) Option {
	return func(o *Options) { o.ConnectRoutingID = append([]byte(nil), id...) }
}
func WithRouterMandatory() Option { return func(o *Options) { o.RouterMandatory = true } }
func WithRouterHandover() Option  { return func(o *Options) { o.RouterHandover = true } }
func WithProbeRouter() Option     { return func(o *Options) { o.ProbeRouter = true } }
func WithXPubVerbose(v XPubVerbose) Option {
	return func(o *Options) { o.XPubVerbose = v }
}
func WithXPubWelcomeMsg(b []byte) Option {
	return func(o *Options) { o.XPubWelcomeMsg = append([]byte(nil), b...) }
}
func WithInvertMatching() Option { return func(o *Options) { o.InvertMatching = true } }
func WithHeartbeat(ivl, timeout, ttl time.Duration) Option {
	return func(o *Options) {
		o.HeartbeatIvl = ivl
		o.HeartbeatTimeout = timeout
		o.HeartbeatTTL = ttl
	}
}
func WithMaxMsgSize(n int64) Option { return func(o *Options) { o.MaxMsgSize = n } }
func WithImmediate() Option         { return func(o *Options) { o.Immediate = true } }
func WithZMPMetadata() Option       { return func(o *Options) { o.ZMPMetadata = true } }
func WithTLS(cert, key, ca string) Option {
	return func(o *Options) { o.TLSCert, o.TLSKey, o.TLSCA = cert, key, ca }
}
func WithTLSHostname(h string) Option { return func(o *Options) { o.TLSHostname = h } }
func WithTLSTrustSystem() Option      { return func(o *Options) { o.TLSTrustSystem = true } }

// LastEndpoint returns the resolved bound endpoint, populated after every
// successful Bind, including one whose requested endpoint used a wildcard
// (spec.md §6 "last_endpoint").
func (o *Options) LastEndpoint() string { return o.lastEndpoint }

// SetLastEndpoint records the resolved bound endpoint; called by
// zctx.Socket.Bind after a successful Bind, not by user code.
func (o *Options) SetLastEndpoint(addr string) { o.lastEndpoint = addr }
