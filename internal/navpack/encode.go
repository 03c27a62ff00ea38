package navpack

import (
	"encoding/binary"
)

// Encode builds a 2048 byte navigation pack carrying the given PCI and DSI
// fields. Fields the parser does not read are left zero.
func Encode(np NavPack) []byte {
	buf := make([]byte, PackSize)

	// pack header with an MPEG-2 marker and mux rate
	copy(buf[0:], []byte{0x00, 0x00, 0x01, 0xba, 0x44})
	buf[13] = 0xf8
	// system header
	copy(buf[0x0e:], []byte{0x00, 0x00, 0x01, 0xbb, 0x00, 0x12})

	copy(buf[pciPacket:], []byte{0x00, 0x00, 0x01, 0xbf, 0x03, 0xd4, 0x00})
	pci := buf[PCIStart:]
	binary.BigEndian.PutUint32(pci[0:], np.PCI.NavPackLBN)
	binary.BigEndian.PutUint32(pci[12:], np.PCI.VOBUStartPTM)
	binary.BigEndian.PutUint32(pci[16:], np.PCI.VOBUEndPTM)

	copy(buf[dsiPacket:], []byte{0x00, 0x00, 0x01, 0xbf, 0x03, 0xfa, 0x01})
	dsi := buf[DSIStart:]
	d := np.DSI
	binary.BigEndian.PutUint32(dsi[0:], d.SCR)
	binary.BigEndian.PutUint32(dsi[4:], d.NavPackLBN)
	binary.BigEndian.PutUint32(dsi[8:], d.VOBUEA)
	binary.BigEndian.PutUint16(dsi[24:], uint16(d.VOBID))
	dsi[27] = byte(d.CellID)
	binary.BigEndian.PutUint16(dsi[32:], d.Category)
	binary.BigEndian.PutUint32(dsi[34:], d.ILVUEA)
	binary.BigEndian.PutUint32(dsi[38:], d.NextILVUStart)
	binary.BigEndian.PutUint16(dsi[42:], d.ILVUSize)
	for i, a := range d.Angles {
		binary.BigEndian.PutUint32(dsi[180+i*6:], a.Address)
		binary.BigEndian.PutUint16(dsi[184+i*6:], a.Size)
	}
	binary.BigEndian.PutUint32(dsi[314:], d.NextVOBU)
	binary.BigEndian.PutUint32(dsi[318:], d.PrevVOBU)
	return buf
}

// NextVOBU returns the search pointer value for a VOBU at offset blocks after
// the current navigation pack.
func NextVOBU(offset uint32) uint32 {
	return sriValid | offset&SRIEndOfCell
}
