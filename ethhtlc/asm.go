package ethhtlc

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/core/vm"
)

// assembler emits evm bytecode. Jump targets are always pushed with PUSH2 so
// label offsets can be patched after the code is laid out.
type assembler struct {
	code   []byte
	labels map[string]int
	fixups map[int]string
}

func newAssembler() *assembler {
	return &assembler{labels: map[string]int{}, fixups: map[int]string{}}
}

func (a *assembler) op(ops ...vm.OpCode) *assembler {
	for _, o := range ops {
		a.code = append(a.code, byte(o))
	}
	return a
}

// push emits the smallest PUSHn carrying b.
func (a *assembler) push(b []byte) *assembler {
	if len(b) == 0 || len(b) > 32 {
		panic(fmt.Sprintf("push of %d bytes", len(b)))
	}
	a.code = append(a.code, byte(vm.PUSH1)+byte(len(b)-1))
	a.code = append(a.code, b...)
	return a
}

func (a *assembler) push1(v byte) *assembler {
	return a.push([]byte{v})
}

func (a *assembler) pushLabel(name string) *assembler {
	a.code = append(a.code, byte(vm.PUSH2))
	a.fixups[len(a.code)] = name
	a.code = append(a.code, 0, 0)
	return a
}

func (a *assembler) label(name string) *assembler {
	a.labels[name] = len(a.code)
	return a.op(vm.JUMPDEST)
}

func (a *assembler) assemble() ([]byte, error) {
	for pos, name := range a.fixups {
		target, ok := a.labels[name]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", name)
		}
		binary.BigEndian.PutUint16(a.code[pos:], uint16(target))
	}
	return a.code, nil
}
