// Package devbus resolves textual link descriptors into typed accessors for
// memory-mapped device registers.
//
// # Architecture
//
//	┌────────────────────┐  ParseLink   ┌───────────────┐
//	│  "@adc+0x10,le16"  │─────────────▶│     Link      │
//	└────────────────────┘              └───────┬───────┘
//	                                            │ Registry.Resolve
//	┌──────────────────────────────────┐        ▼
//	│             Registry             │  ┌───────────────┐
//	│  devices:    name → Device       │─▶│    Access     │── Read / Write
//	│  strategies: name → Strategy     │  │ addr+strategy │
//	└──────────────────────────────────┘  └───────────────┘
//
// Drivers register each device's CPU-visible base address once at start-up
// (RegisterDevice). Consumers resolve their link descriptor once at bind
// time (ResolveLink) and then read and write through the returned Access.
//
// # Link Descriptors
//
//	@adc                 be32 register at the base of "adc"
//	@adc+0x10,le16       16-bit little-endian register at base+0x10
//	#C2 S8 @adc+4,be16s  signed 16-bit register at base+(2<<8)+4
//	42                   constant link, not register backed
//
// Built-in access methods are be32 (default), le32, be16, le16, be16s, le16s
// and be8. Drivers may add their own with RegisterStrategy; how those relate
// to built-in names is chosen by ShadowPolicy.
//
// # Masked Writes
//
// Access.Write with a non-zero mask is a read-modify-write performed under
// the owning device's mutex. Every writer that mutates a device's registers,
// inside or outside this package, must hold the same mutex (Device is a
// sync.Locker). Locking is per device, not per register.
//
// # Thread Safety
//
// Registry and Access are safe for concurrent use from multiple goroutines.
package devbus
