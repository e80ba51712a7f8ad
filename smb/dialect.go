package smb

// Dialect revision codes, spec.md §6.
const (
	DialectSMB202 uint16 = 0x0202
	DialectSMB210 uint16 = 0x0210
	DialectSMB300 uint16 = 0x0300
	DialectSMB302 uint16 = 0x0302
	DialectSMB311 uint16 = 0x0311
	// DialectSMB2Wildcard is returned by a multi-protocol negotiate to mean
	// "retry with an SMB2 Negotiate"; never a final selection.
	DialectSMB2Wildcard uint16 = 0x02FF
)

// allDialects lists every dialect the client can offer, in ascending order
// (spec.md §4.7 step 3); offeredDialects filters this by
// ConnectionConfig.MinDialect/MaxDialect.
var allDialects = []uint16{
	DialectSMB202,
	DialectSMB210,
	DialectSMB300,
	DialectSMB302,
	DialectSMB311,
}

func dialectName(d uint16) string {
	switch d {
	case DialectSMB202:
		return "SMB 2.0.2"
	case DialectSMB210:
		return "SMB 2.1.0"
	case DialectSMB300:
		return "SMB 3.0.0"
	case DialectSMB302:
		return "SMB 3.0.2"
	case DialectSMB311:
		return "SMB 3.1.1"
	case DialectSMB2Wildcard:
		return "SMB 2.???"
	default:
		return "unknown dialect"
	}
}

func dialectAtLeast311(d uint16) bool { return d == DialectSMB311 }

func dialectSupportsEncryption(d uint16) bool {
	return d == DialectSMB300 || d == DialectSMB302 || d == DialectSMB311
}

func offeredDialects(min, max uint16) []uint16 {
	lo, hi := min, max
	if lo == 0 {
		lo = allDialects[0]
	}
	if hi == 0 {
		hi = allDialects[len(allDialects)-1]
	}
	var out []uint16
	for _, d := range allDialects {
		if d >= lo && d <= hi {
			out = append(out, d)
		}
	}
	return out
}
