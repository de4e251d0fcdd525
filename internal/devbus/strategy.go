package devbus

import (
	"slices"
)

// Width is the data width of a register access in bits.
type Width uint8

// Supported access widths.
const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
)

// Bytes returns the width in bytes.
func (w Width) Bytes() int {
	return int(w) / 8 //nolint:mnd // bits per byte
}

// ByteOrder is the byte order of a register as seen on the bus.
type ByteOrder uint8

// Byte orders.
const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "little"
	}
	return "big"
}

// DefaultStrategy is used when a link names no access method.
const DefaultStrategy = "be32"

// Strategy reads and writes one register through a resolved Access.
//
// Read returns the bus value masked (or sign-extended) to the strategy's
// width. Write truncates value to the strategy's width before storing.
// Implementations must be safe for concurrent use; they are shared by every
// Access that selected them.
type Strategy interface {
	Read(a *Access) (uint32, error)
	Write(a *Access, value uint32) error
}

// Preparer is implemented by strategies that need private per-access data.
// Prepare runs once at resolve time; the result is available from
// Access.Private. An error fails resolution with a bad access field.
type Preparer interface {
	Prepare(a *Access) (any, error)
}

// Sized is implemented by strategies that know their access width. The
// width is used to bound-check addresses against device windows.
type Sized interface {
	Width() Width
}

// StrategyFuncs adapts a pair of functions to the Strategy interface.
//
// Example:
//
//	reg.RegisterStrategy("fifo", devbus.StrategyFuncs{
//	    ReadFunc: func(a *devbus.Access) (uint32, error) {
//	        if a.Address().Add(4).InLE32()&fifoEmpty != 0 {
//	            return 0, errFifoEmpty
//	        }
//	        return a.Address().InLE32(), nil
//	    },
//	    WriteFunc: func(a *devbus.Access, v uint32) error {
//	        a.Address().OutLE32(v)
//	        return nil
//	    },
//	})
type StrategyFuncs struct {
	ReadFunc  func(a *Access) (uint32, error)
	WriteFunc func(a *Access, value uint32) error

	// Bits is the access width; zero means 32.
	Bits Width
}

// Read calls f.ReadFunc.
func (f StrategyFuncs) Read(a *Access) (uint32, error) {
	return f.ReadFunc(a)
}

// Write calls f.WriteFunc.
func (f StrategyFuncs) Write(a *Access, value uint32) error {
	return f.WriteFunc(a, value)
}

// Width returns f.Bits, defaulting to 32.
func (f StrategyFuncs) Width() Width {
	if f.Bits == 0 {
		return Width32
	}
	return f.Bits
}

// builtin is the closed set of (width, order, signedness) accesses.
type builtin struct {
	width  Width
	order  ByteOrder
	signed bool
}

var builtins = map[string]builtin{
	"be32":  {width: Width32, order: BigEndian},
	"le32":  {width: Width32, order: LittleEndian},
	"be16":  {width: Width16, order: BigEndian},
	"le16":  {width: Width16, order: LittleEndian},
	"be16s": {width: Width16, order: BigEndian, signed: true},
	"le16s": {width: Width16, order: LittleEndian, signed: true},
	"be8":   {width: Width8, order: BigEndian},
}

func (b builtin) Width() Width {
	return b.width
}

func (b builtin) Read(a *Access) (uint32, error) {
	addr := a.Address()

	switch b.width {
	case Width8:
		return uint32(addr.In8()), nil
	case Width16:
		var v uint16
		if b.order == LittleEndian {
			v = addr.InLE16()
		} else {
			v = addr.InBE16()
		}
		if b.signed {
			return uint32(int32(int16(v))), nil //nolint:gosec // sign extension is the point
		}
		return uint32(v), nil
	default:
		if b.order == LittleEndian {
			return addr.InLE32(), nil
		}
		return addr.InBE32(), nil
	}
}

func (b builtin) Write(a *Access, value uint32) error {
	addr := a.Address()

	switch b.width {
	case Width8:
		addr.Out8(uint8(value & 0xff)) //nolint:gosec // truncated to width
	case Width16:
		v := uint16(value & 0xffff) //nolint:gosec // truncated to width
		if b.order == LittleEndian {
			addr.OutLE16(v)
		} else {
			addr.OutBE16(v)
		}
	default:
		if b.order == LittleEndian {
			addr.OutLE32(value)
		} else {
			addr.OutBE32(value)
		}
	}
	return nil
}

// Builtin returns the built-in strategy with the given name.
func Builtin(name string) (Strategy, bool) {
	b, ok := builtins[name]
	if !ok {
		return nil, false
	}
	return b, true
}

// IsBuiltin reports whether name is a built-in access method.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// BuiltinNames returns the built-in access method names, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// StrategyInfo describes an access method for diagnostics.
type StrategyInfo struct {
	Name    string `json:"name"`
	Width   Width  `json:"width"`
	Order   string `json:"order,omitempty"`
	Signed  bool   `json:"signed"`
	Builtin bool   `json:"builtin"`
}

// describe builds the StrategyInfo for s registered under name.
func describe(name string, s Strategy, isBuiltin bool) StrategyInfo {
	info := StrategyInfo{Name: name, Width: Width32, Builtin: isBuiltin}

	switch v := s.(type) {
	case builtin:
		info.Width = v.width
		info.Signed = v.signed
		if v.width != Width8 {
			info.Order = v.order.String()
		}
	case Sized:
		info.Width = v.Width()
	}

	return info
}

// strategyWidth returns the access width of s, assuming 32 bits when unknown.
func strategyWidth(s Strategy) Width {
	if sz, ok := s.(Sized); ok {
		return sz.Width()
	}
	return Width32
}
