package types

import (
	"encoding/binary"
	"fmt"
)

// Platform is the target OS a binary was built for, carried by
// LC_BUILD_VERSION (and implied by the legacy LC_VERSION_MIN_* commands).
type Platform uint32

const (
	PlatformUnknown            Platform = 0
	PlatformMacOS              Platform = 1
	PlatformIOS                Platform = 2
	PlatformTvOS               Platform = 3
	PlatformWatchOS            Platform = 4
	PlatformBridgeOS           Platform = 5
	PlatformMacCatalyst        Platform = 6
	PlatformIOSSimulator       Platform = 7
	PlatformTvOSSimulator      Platform = 8
	PlatformWatchOSSimulator   Platform = 9
	PlatformDriverKit          Platform = 10
	PlatformRealityOS          Platform = 11
	PlatformRealityOSSimulator Platform = 12
	PlatformFirmware           Platform = 13
	PlatformSepOS              Platform = 14
	PlatformAny                Platform = 0xFFFFFFFF
)

var platformStrings = []IntName{
	{uint32(PlatformUnknown), "unknown"},
	{uint32(PlatformMacOS), "macosx"},
	{uint32(PlatformIOS), "ios"},
	{uint32(PlatformTvOS), "tvos"},
	{uint32(PlatformWatchOS), "watchos"},
	{uint32(PlatformBridgeOS), "bridgeos"},
	{uint32(PlatformMacCatalyst), "maccatalyst"},
	{uint32(PlatformIOSSimulator), "ios-simulator"},
	{uint32(PlatformTvOSSimulator), "tvos-simulator"},
	{uint32(PlatformWatchOSSimulator), "watchos-simulator"},
	{uint32(PlatformDriverKit), "driverkit"},
	{uint32(PlatformRealityOS), "realityos"},
	{uint32(PlatformRealityOSSimulator), "realityos-simulator"},
	{uint32(PlatformFirmware), "firmware"},
	{uint32(PlatformSepOS), "sepos"},
	{uint32(PlatformAny), "any"},
}

func (p Platform) String() string { return StringName(uint32(p), platformStrings, false) }

// Known reports whether p is one of the enumerated platform values. The
// load-command walker rejects every other value as INVALID_PLATFORM.
func (p Platform) Known() bool {
	for _, n := range platformStrings {
		if n.I == uint32(p) {
			return true
		}
	}
	return false
}

// Version is an X.Y.Z version packed into 32 bits as xxxx.yy.zz, the wire
// layout shared by LC_ID_DYLIB's current/compatibility versions and
// LC_BUILD_VERSION's minos/sdk fields.
type Version uint32

// Major, Minor, and Revision unpack the three components of a packed
// version.
func (v Version) Major() uint16 {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return binary.BigEndian.Uint16(b[:2])
}

func (v Version) Minor() uint8 {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b[2]
}

func (v Version) Revision() uint8 {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b[3]
}

// String renders the version, omitting a zero minor unless the revision is
// also non-zero (1.0.0 -> "1", 1.2.0 -> "1.2", 1.0.3 -> "1.0.3").
func (v Version) String() string {
	if v.Minor() == 0 && v.Revision() == 0 {
		return fmt.Sprintf("%d", v.Major())
	}
	if v.Revision() == 0 {
		return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
	}
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Revision())
}
