// Package tgl is the root UserAgent façade: it owns every per-DC
// dcclient.Client, brokers RPCs through internal/query, feeds inbound
// updates through internal/updater, and fans out the result to a host-
// supplied Callback, per spec.md §2 item 10 and §6.
//
// Grounded on _examples/original_source/src/user_agent.h/.cpp (owns all
// DCs, the active-DC pointer, our_id, the global pts/qts/seq/date) and
// _examples/Dimonyga-tgclient/mtproto.go's MTProto struct (AppConfig,
// SessionStore, single background loop) for the ambient shape: config,
// logging, session persistence.
package tgl

// AppConfig is the client identity sent in every fresh connection's
// initConnection envelope, per spec.md §6.6. Field names and shape
// mirror mtproto.go's AppConfig.
type AppConfig struct {
	AppID          int32
	AppHash        string
	AppVersion     string
	DeviceModel    string
	SystemVersion  string
	SystemLangCode string
	LangPack       string
	LangCode       string
}

// defaultBootstrapDC is the DC id used when Config leaves BootstrapDC at
// its zero value, matching mtproto.go's InitSession always dialing DC 2
// for the very first connection.
const defaultBootstrapDC = 2

// Config bundles everything a UserAgent needs to start: the app
// identity, the bootstrap DC to dial first, and which DC (if known)
// owns the user's authorization.
type Config struct {
	App AppConfig

	// BootstrapAddr overrides the compile-time endpoint table (see
	// dcendpoints.go) for the very first connection; leave empty to
	// dial BootstrapDC's standard address.
	BootstrapAddr string

	// BootstrapDC is the DC id BootstrapAddr belongs to, per spec.md
	// §9's distinct "active DC" vs "home DC" resolution: until
	// help.getConfig or a restored session says otherwise, both start
	// out pointed at this DC. Zero means defaultBootstrapDC.
	BootstrapDC int

	// TestMode selects the three test-mode DC endpoints of spec.md §6.5
	// instead of the five production ones.
	TestMode bool

	// PreferIPv6 selects the IPv6 half of a DC's known addresses
	// (compile-time or learned from help.getConfig) when both are
	// known, per spec.md §6.5.
	PreferIPv6 bool

	// SessionDir, if nonempty, enables persistence via sessionstore.
	// SessionPassphrase, if also nonempty, enables encryption at rest.
	SessionDir        string
	SessionPassphrase string
}

func (c Config) bootstrapDC() int {
	if c.BootstrapDC != 0 {
		return c.BootstrapDC
	}
	return defaultBootstrapDC
}

// bootstrapAddr resolves the address for the very first connection:
// BootstrapAddr if the host set one, else BootstrapDC's compile-time
// address from spec.md §6.5's endpoint table.
func (c Config) bootstrapAddr() string {
	if c.BootstrapAddr != "" {
		return c.BootstrapAddr
	}
	if addr, ok := staticDCAddr(c.bootstrapDC(), c.TestMode, c.PreferIPv6); ok {
		return addr
	}
	return productionDCEndpoints[0].IPv4
}
