package query

import (
	"strconv"
	"strings"
)

// maxDCID bounds a migration target to a plausible datacenter number, the
// same sanity check get_dc_from_migration applies (query.cpp's
// TGL_MAX_DC_NUM) before trusting server-supplied text.
const maxDCID = 100

// parsePrefixedInt extracts the integer suffix of an error string of the
// shape "<prefix><digits>", e.g. "USER_MIGRATE_2" -> (2, true). Grounded
// on get_int_from_prefixed_string (query.cpp).
func parsePrefixedInt(s, prefix string) (int, bool) {
	if !strings.HasPrefix(s, prefix) || len(s) <= len(prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(s[len(prefix):])
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseMigrationDC extracts a target DC number from a 303 error's message,
// per get_dc_from_migration (query.cpp): the three migration error
// families all carry the destination DC as a trailing integer.
func parseMigrationDC(errorMessage string) (int, bool) {
	for _, prefix := range [...]string{"USER_MIGRATE_", "PHONE_MIGRATE_", "NETWORK_MIGRATE_"} {
		if dc, ok := parsePrefixedInt(errorMessage, prefix); ok {
			return dc, true
		}
	}
	return 0, false
}

// defaultFloodWaitSeconds is the retry delay used when a 420/500 error's
// message isn't the expected "FLOOD_WAIT_N" shape, per query.cpp's
// handle_error default case.
const defaultFloodWaitSeconds = 10

// parseFloodWaitSeconds extracts the wait duration from a FLOOD_WAIT_N
// error message, falling back to defaultFloodWaitSeconds.
func parseFloodWaitSeconds(errorMessage string) int {
	if n, ok := parsePrefixedInt(errorMessage, "FLOOD_WAIT_"); ok {
		return n
	}
	return defaultFloodWaitSeconds
}
