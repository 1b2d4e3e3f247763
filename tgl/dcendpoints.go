package tgl

// DCEndpoint is one compile-time-known datacenter address, per spec.md
// §6.5: the five production DCs (IPv4+IPv6) plus the three test-mode DCs
// are baked in so a client can bootstrap before help.getConfig has ever
// answered.
type DCEndpoint struct {
	ID   int
	IPv4 string
	IPv6 string
}

// productionDCEndpoints are Telegram's well-known production datacenter
// addresses, per spec.md §6.5.
var productionDCEndpoints = []DCEndpoint{
	{ID: 1, IPv4: "149.154.175.53:443", IPv6: "[2001:b28:f23d:f001::a]:443"},
	{ID: 2, IPv4: "149.154.167.51:443", IPv6: "[2001:67c:04e8:f002::a]:443"},
	{ID: 3, IPv4: "149.154.175.100:443", IPv6: "[2001:b28:f23d:f003::a]:443"},
	{ID: 4, IPv4: "149.154.167.91:443", IPv6: "[2001:67c:04e8:f004::a]:443"},
	{ID: 5, IPv4: "91.108.56.130:443", IPv6: "[2001:b28:f23f:f005::a]:443"},
}

// testDCEndpoints are the three test-mode datacenter addresses, per
// spec.md §6.5.
var testDCEndpoints = []DCEndpoint{
	{ID: 1, IPv4: "149.154.175.10:443", IPv6: "[2001:b28:f23d:f001::e]:443"},
	{ID: 2, IPv4: "149.154.167.40:443", IPv6: "[2001:67c:04e8:f002::e]:443"},
	{ID: 3, IPv4: "149.154.175.117:443", IPv6: "[2001:b28:f23d:f003::e]:443"},
}

func endpointTable(testMode bool) []DCEndpoint {
	if testMode {
		return testDCEndpoints
	}
	return productionDCEndpoints
}

// staticDCAddr looks dcID up in the compile-time endpoint table of
// spec.md §6.5, used before help.getConfig has ever taught this UserAgent
// a better address for dcID (or for a DC it never answers about).
func staticDCAddr(dcID int, testMode, preferIPv6 bool) (string, bool) {
	for _, ep := range endpointTable(testMode) {
		if ep.ID != dcID {
			continue
		}
		if preferIPv6 && ep.IPv6 != "" {
			return ep.IPv6, true
		}
		return ep.IPv4, true
	}
	return "", false
}
