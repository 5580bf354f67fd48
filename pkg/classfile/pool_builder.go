package classfile

import (
	"fmt"
	"math"
)

// PoolBuilder assembles a deduplicated constant pool. Index 0 is reserved
// and long/double entries occupy two indices, as in a parsed pool.
type PoolBuilder struct {
	entries []ConstantPoolEntry
	index   map[poolKey]uint16
	err     error
}

type poolKey struct {
	tag  uint8
	a, b string
	n    uint64
}

// NewPoolBuilder creates an empty builder.
func NewPoolBuilder() *PoolBuilder {
	return &PoolBuilder{
		entries: []ConstantPoolEntry{nil},
		index:   make(map[poolKey]uint16),
	}
}

// Err reports an overflow of the 16-bit pool index space.
func (p *PoolBuilder) Err() error { return p.err }

// Entries returns the pool in parsed-pool layout.
func (p *PoolBuilder) Entries() []ConstantPoolEntry { return p.entries }

func (p *PoolBuilder) add(key poolKey, entry ConstantPoolEntry, wide bool) uint16 {
	if idx, ok := p.index[key]; ok {
		return idx
	}
	size := 1
	if wide {
		size = 2
	}
	if len(p.entries)+size > math.MaxUint16 {
		if p.err == nil {
			p.err = fmt.Errorf("constant pool overflow: more than %d entries", math.MaxUint16-1)
		}
		return 0
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, entry)
	if wide {
		p.entries = append(p.entries, nil)
	}
	p.index[key] = idx
	return idx
}

// Utf8 returns the index of a CONSTANT_Utf8 entry.
func (p *PoolBuilder) Utf8(s string) uint16 {
	return p.add(poolKey{tag: TagUtf8, a: s}, &ConstantUtf8{Value: s}, false)
}

// Integer returns the index of a CONSTANT_Integer entry.
func (p *PoolBuilder) Integer(v int32) uint16 {
	return p.add(poolKey{tag: TagInteger, n: uint64(uint32(v))}, &ConstantInteger{Value: v}, false)
}

// Float returns the index of a CONSTANT_Float entry. Keyed by bit pattern so
// that -0.0 and NaN payloads stay distinct.
func (p *PoolBuilder) Float(v float32) uint16 {
	return p.add(poolKey{tag: TagFloat, n: uint64(math.Float32bits(v))}, &ConstantFloat{Value: v}, false)
}

// Long returns the index of a CONSTANT_Long entry.
func (p *PoolBuilder) Long(v int64) uint16 {
	return p.add(poolKey{tag: TagLong, n: uint64(v)}, &ConstantLong{Value: v}, true)
}

// Double returns the index of a CONSTANT_Double entry.
func (p *PoolBuilder) Double(v float64) uint16 {
	return p.add(poolKey{tag: TagDouble, n: math.Float64bits(v)}, &ConstantDouble{Value: v}, true)
}

// Class returns the index of a CONSTANT_Class entry for a binary name
// ("java/lang/String") or array descriptor ("[I").
func (p *PoolBuilder) Class(name string) uint16 {
	nameIdx := p.Utf8(name)
	return p.add(poolKey{tag: TagClass, a: name}, &ConstantClass{NameIndex: nameIdx}, false)
}

// String returns the index of a CONSTANT_String entry.
func (p *PoolBuilder) String(s string) uint16 {
	utf := p.Utf8(s)
	return p.add(poolKey{tag: TagString, a: s}, &ConstantString{StringIndex: utf}, false)
}

// NameAndType returns the index of a CONSTANT_NameAndType entry.
func (p *PoolBuilder) NameAndType(name, descriptor string) uint16 {
	n, d := p.Utf8(name), p.Utf8(descriptor)
	return p.add(poolKey{tag: TagNameAndType, a: name, b: descriptor},
		&ConstantNameAndType{NameIndex: n, DescriptorIndex: d}, false)
}

// Fieldref returns the index of a CONSTANT_Fieldref entry.
func (p *PoolBuilder) Fieldref(owner, name, descriptor string) uint16 {
	c, nat := p.Class(owner), p.NameAndType(name, descriptor)
	return p.add(poolKey{tag: TagFieldref, a: owner, b: name + ":" + descriptor},
		&ConstantFieldref{ClassIndex: c, NameAndTypeIndex: nat}, false)
}

// Methodref returns the index of a CONSTANT_Methodref or, when iface is set,
// a CONSTANT_InterfaceMethodref entry.
func (p *PoolBuilder) Methodref(owner, name, descriptor string, iface bool) uint16 {
	c, nat := p.Class(owner), p.NameAndType(name, descriptor)
	if iface {
		return p.add(poolKey{tag: TagInterfaceMethodref, a: owner, b: name + descriptor},
			&ConstantInterfaceMethodref{ClassIndex: c, NameAndTypeIndex: nat}, false)
	}
	return p.add(poolKey{tag: TagMethodref, a: owner, b: name + descriptor},
		&ConstantMethodref{ClassIndex: c, NameAndTypeIndex: nat}, false)
}
