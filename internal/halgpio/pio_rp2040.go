//go:build rp2040

package halgpio

// PIO-accelerated wire driver for the RP2040, built the same way the
// teacher's stepper backend drives step pulses: a small PIO assembler
// program owns the tight hardware loop, the Go side only pushes and
// pulls FIFO words, so a symbol's drive/settle timing isn't at the
// mercy of Go's scheduler.

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// buildWirePIOProgram builds a program that, per OSR word pulled from
// the TX FIFO, writes the low byte of the word to the OUT pins (the wire
// drive mask, one bit per wire, active-low through the pin's open-drain
// configuration) and pushes the current pin levels back on the RX FIFO,
// giving back-to-back drive+sample with no software-visible jitter.
func buildWirePIOProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),           // 0: pull block
		asm.Out(rp2pio.OutDestPins, 8).Encode(),   // 1: out pins, 8 (drive mask)
		asm.In(rp2pio.InSourcePins, 8).Encode(),   // 2: in pins, 8 (sampled levels)
		asm.Push(false, true).Encode(),            // 3: push block
		// .wrap
	}
}

const wirePIOOrigin = 0

// PIODriver implements Driver for up to 8 wires using one RP2040 PIO
// state machine, grounded on the teacher's PIOStepperBackend structure
// (claim, assemble, configure pin mode, set wrap, enable).
type PIODriver struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	pins   []machine.Pin
	offset uint8
}

// NewPIODriver claims state machine smNum on PIO pioNum and configures
// it to drive/sample the given consecutive base pin run.
func NewPIODriver(pioNum, smNum uint8, basePin machine.Pin, nWires int) (*PIODriver, error) {
	var pioHW *rp2pio.PIO
	if pioNum == 0 {
		pioHW = rp2pio.PIO0
	} else {
		pioHW = rp2pio.PIO1
	}

	d := &PIODriver{pio: pioHW, sm: pioHW.StateMachine(smNum)}
	d.sm.TryClaim()

	program := buildWirePIOProgram()
	offset, err := d.pio.AddProgram(program, wirePIOOrigin)
	if err != nil {
		return nil, err
	}
	d.offset = offset

	for i := 0; i < nWires; i++ {
		p := basePin + machine.Pin(i)
		p.Configure(machine.PinConfig{Mode: d.pio.PinMode()})
		d.pins = append(d.pins, p)
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(basePin, uint8(nWires))
	cfg.SetInPins(basePin)
	cfg.SetOutPins(basePin, uint8(nWires))
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(1000, 0)

	d.sm.Init(offset, cfg)
	d.sm.SetPindirsConsecutive(basePin, uint8(nWires), false)
	d.sm.SetEnabled(true)

	return d, nil
}

// Drive pushes a drive mask into the PIO program, waiting only while the
// TX FIFO is full. It does not read the sample word the program pushes
// back; Sample reads it from the RX FIFO.
func (d *PIODriver) Drive(bits uint32) error {
	for d.sm.IsTxFIFOFull() {
	}
	d.sm.TxPut(bits & 0xFF)
	return nil
}

func (d *PIODriver) Sample() (uint32, error) {
	for d.sm.IsRxFIFOEmpty() {
	}
	v := d.sm.RxGet()
	return v & 0xFF, nil
}
