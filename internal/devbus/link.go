package devbus

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LinkKind distinguishes register-backed links from constants.
type LinkKind int

// Link kinds.
const (
	ConstantLink LinkKind = iota
	RegisterLink
)

func (k LinkKind) String() string {
	if k == RegisterLink {
		return "register"
	}
	return "constant"
}

// Link is a parsed link descriptor.
//
// Grammar:
//
//	link          := constant-link | register-link | vme-link
//	constant-link := "" | integer
//	register-link := "@" device ["+" offset] ["," access]
//	vme-link      := "#" ["C" instance] ["S" shift] register-link
//
// Integers accept any base strconv understands with base 0 ("16", "0x10",
// "020", "-4"). The instance and shift of a vme-link may instead be supplied
// by the surrounding configuration by setting Instance and Shift before
// resolution.
type Link struct {
	Kind       LinkKind
	Descriptor string

	// Constant is the value of a constant link.
	Constant int64

	Device string
	Offset int64
	Method string // empty selects DefaultStrategy

	Instance uint32
	Shift    uint
}

// Channel returns Instance << Shift.
func (l Link) Channel() (uint64, error) {
	if l.Shift >= 64 { //nolint:mnd // bits in uint64
		return 0, fmt.Errorf("%w: shift %d too large", ErrInvalidLink, l.Shift)
	}
	ch := uint64(l.Instance) << l.Shift
	if ch>>l.Shift != uint64(l.Instance) {
		return 0, fmt.Errorf("%w: instance %d << %d overflows", ErrInvalidLink, l.Instance, l.Shift)
	}
	return ch, nil
}

// ParseLink parses a link descriptor.
//
// Errors are *FieldError values naming the offending field; they carry no
// consumer until resolution attributes them.
func ParseLink(descriptor string) (Link, error) {
	l := Link{Descriptor: descriptor}
	s := strings.TrimSpace(descriptor)

	switch {
	case s == "":
		return l, nil
	case s[0] == '#':
		return parseVMELink(s[1:], l)
	case s[0] == '@':
		return parseRegisterLink(s[1:], l)
	}

	v, err := parseInteger(s)
	if err != nil {
		return Link{}, badField("", FieldLink, descriptor,
			fmt.Errorf("%w: %q is neither a constant nor a register link", ErrInvalidLink, s))
	}
	l.Constant = v
	return l, nil
}

// parseVMELink parses `C<instance> S<shift> @...` after the leading '#'.
func parseVMELink(s string, l Link) (Link, error) {
	at := strings.IndexByte(s, '@')
	if at < 0 {
		return Link{}, badField("", FieldLink, l.Descriptor,
			fmt.Errorf("%w: missing '@device'", ErrInvalidLink))
	}

	var seenC, seenS bool
	for _, tok := range strings.Fields(s[:at]) {
		if len(tok) < 2 { //nolint:mnd // letter plus at least one digit
			return Link{}, badField("", FieldLink, l.Descriptor,
				fmt.Errorf("%w: bad token %q", ErrInvalidLink, tok))
		}

		v, err := strconv.ParseUint(tok[1:], 0, 32)
		if err != nil {
			return Link{}, badField("", FieldLink, l.Descriptor,
				fmt.Errorf("%w: bad number in %q", ErrInvalidLink, tok))
		}

		switch {
		case tok[0] == 'C' && !seenC:
			seenC = true
			l.Instance = uint32(v)
		case tok[0] == 'S' && !seenS:
			seenS = true
			l.Shift = uint(v)
		default:
			return Link{}, badField("", FieldLink, l.Descriptor,
				fmt.Errorf("%w: unexpected token %q", ErrInvalidLink, tok))
		}
	}

	return parseRegisterLink(s[at+1:], l)
}

// parseRegisterLink parses `device[+offset][,access]` after the '@'.
func parseRegisterLink(parm string, l Link) (Link, error) {
	l.Kind = RegisterLink

	if i := strings.IndexByte(parm, ','); i >= 0 {
		l.Method = strings.TrimSpace(parm[i+1:])
		parm = parm[:i]
		if l.Method == "" {
			return Link{}, badField("", FieldAccess, l.Descriptor,
				fmt.Errorf("%w: empty access method", ErrUnknownStrategy))
		}
	}

	if i := strings.IndexByte(parm, '+'); i >= 0 {
		text := strings.TrimSpace(parm[i+1:])
		parm = parm[:i]

		off, err := parseInteger(text)
		if err != nil {
			return Link{}, badField("", FieldOffset, l.Descriptor,
				fmt.Errorf("%w: %q", ErrInvalidOffset, text))
		}
		l.Offset = off
	}

	l.Device = strings.TrimSpace(parm)
	if !validName(l.Device) {
		return Link{}, badField("", FieldDevice, l.Descriptor,
			fmt.Errorf("%w: device %q", ErrInvalidName, l.Device))
	}

	return l, nil
}

// parseInteger accepts signed literals and unsigned literals up to 64 bits.
func parseInteger(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		u, uerr := strconv.ParseUint(s, 0, 64)
		if uerr == nil {
			return int64(u), nil //nolint:gosec // wraps like an address offset
		}
	}
	return 0, err
}

func (l Link) String() string {
	if l.Kind == ConstantLink {
		return strconv.FormatInt(l.Constant, 10)
	}

	var b strings.Builder
	if l.Instance != 0 || l.Shift != 0 {
		fmt.Fprintf(&b, "#C%d S%d ", l.Instance, l.Shift)
	}
	b.WriteByte('@')
	b.WriteString(l.Device)
	if l.Offset != 0 {
		fmt.Fprintf(&b, "+%#x", l.Offset)
	}
	if l.Method != "" {
		b.WriteByte(',')
		b.WriteString(l.Method)
	}
	return b.String()
}
