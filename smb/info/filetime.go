// Package info implements the MS-SMB2/MS-FSCC info-class payloads the
// QueryDirectory/QueryInfo/SetInfo operations (C10) exchange: FILETIME
// conversion, FileFullDirectoryInformation, and the basic/standard/
// disposition file info classes spec.md's Create/Close/SetInfo flows need.
package info

import "time"

// windowsEpochOffset is the number of 100ns ticks between the Windows
// FILETIME epoch (1601-01-01) and the Unix epoch (1970-01-01), grounded on
// the teacher's dcerpc/msrrp Filetime/PFiletime pair (see DESIGN.md).
const windowsEpochOffset = 116444736000000000

// FileTime is a Windows FILETIME: 100-nanosecond ticks since 1601-01-01 UTC.
type FileTime uint64

// Time converts f to a time.Time. A zero FileTime maps to the zero time.Time.
func (f FileTime) Time() time.Time {
	if f == 0 {
		return time.Time{}
	}
	ticks := int64(f) - windowsEpochOffset
	return time.Unix(0, ticks*100).UTC()
}

// FileTimeFromTime converts t to a FILETIME. The zero time.Time maps to 0.
func FileTimeFromTime(t time.Time) FileTime {
	if t.IsZero() {
		return 0
	}
	ticks := t.UTC().UnixNano()/100 + windowsEpochOffset
	if ticks < 0 {
		return 0
	}
	return FileTime(ticks)
}
