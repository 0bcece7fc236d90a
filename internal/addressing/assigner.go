package addressing

import "fmt"

// Assigner is the controller-side address table: an announcing MAC is
// mapped to a newly proposed address, recorded in the table as soon as
// Propose offers it, and released back to the free pool on request.
type Assigner struct {
	maxAddr   uint8
	macToAddr map[[MACLen]byte]uint8
	addrToMAC map[uint8][MACLen]byte
}

// NewAssigner returns an empty address table allocating from 1..maxAddr
// inclusive; address 0 is never assigned.
func NewAssigner(maxAddr uint8) *Assigner {
	return &Assigner{
		maxAddr:   maxAddr,
		macToAddr: make(map[[MACLen]byte]uint8),
		addrToMAC: make(map[uint8][MACLen]byte),
	}
}

// Propose returns the address to offer mac: its existing address if
// already known, otherwise the lowest free one.
func (a *Assigner) Propose(mac [MACLen]byte) (uint8, error) {
	if addr, ok := a.macToAddr[mac]; ok {
		return addr, nil
	}
	for addr := uint8(1); addr <= a.maxAddr; addr++ {
		if _, taken := a.addrToMAC[addr]; !taken {
			a.macToAddr[mac] = addr
			a.addrToMAC[addr] = mac
			return addr, nil
		}
	}
	return 0, fmt.Errorf("addressing: no free address in 1..%d", a.maxAddr)
}

// Release frees mac's address back to the pool, if it holds one.
func (a *Assigner) Release(mac [MACLen]byte) {
	if addr, ok := a.macToAddr[mac]; ok {
		delete(a.macToAddr, mac)
		delete(a.addrToMAC, addr)
	}
}

// Lookup returns the address currently assigned to mac, if any.
func (a *Assigner) Lookup(mac [MACLen]byte) (uint8, bool) {
	addr, ok := a.macToAddr[mac]
	return addr, ok
}
