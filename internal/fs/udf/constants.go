package udf

// UDF constants for DVD-Video images (UDF 1.02 bridge format)
const (
	// Sector size for optical media
	SectorSize = 2048

	// Volume Recognition Sequence starts at sector 16
	vrsSector = 16
	vrsLimit  = 32

	// Standard identifiers
	StandardIDCD001 = "CD001"
	StandardIDCDW02 = "CDW02"
	StandardIDBOOT2 = "BOOT2"
	StandardIDBEA01 = "BEA01"
	StandardIDNSR02 = "NSR02"
	StandardIDNSR03 = "NSR03"
	StandardIDTEA01 = "TEA01"

	// Descriptor tags
	TagPrimaryVolume     = 1
	TagAnchorVolume      = 2
	TagPartition         = 5
	TagLogicalVolume     = 6
	TagTerminating       = 8
	TagFileSet           = 256
	TagFileIdentifier    = 257
	TagFile              = 261
	TagExtendedFileEntry = 266

	// File characteristics
	FileCharHidden    = 0x01
	FileCharDirectory = 0x02
	FileCharDeleted   = 0x04
	FileCharParent    = 0x08

	// ICB file types
	ICBFileTypeDirectory = 4
	ICBFileTypeFile      = 5
)

// Allocation descriptor types (ICB tag flags, bits 0-2).
const (
	adShort    = 0
	adLong     = 1
	adEmbedded = 3
)

// Byte offsets inside descriptors. Only the fields the reader needs are named.
const (
	pvdVolumeIdentifier = 24  // dstring[32]
	pdStartingLocation  = 188 // uint32
	lvdContentsUse      = 248 // long_ad of the file set descriptor
	avdpMainExtent      = 16  // extent_ad
	fsdRootICB          = 400 // long_ad

	feFileType  = 27 // ICB tag file type
	feICBFlags  = 34 // ICB tag flags
	feInfoLen   = 56
	feLenEA     = 168
	feLenAD     = 172
	feBaseSize  = 176
	efeLenEA    = 208
	efeLenAD    = 212
	efeBaseSize = 216

	fidCharacteristics = 18
	fidLenFI           = 19
	fidICB             = 20
	fidLenIU           = 36
	fidBaseSize        = 38

	isoVolumeIdentifier = 40
)

// Tag represents descriptor tag
type Tag struct {
	TagIdentifier       uint16
	DescriptorVersion   uint16
	TagChecksum         uint8
	Reserved            uint8
	TagSerialNumber     uint16
	DescriptorCRC       uint16
	DescriptorCRCLength uint16
	TagLocation         uint32
}

// LBAddr is a partition relative logical block address.
type LBAddr struct {
	LogicalBlockNumber       uint32
	PartitionReferenceNumber uint16
}

// LongAD represents long allocation descriptor
type LongAD struct {
	ExtentLength      uint32
	ExtentLocation    LBAddr
	ImplementationUse [6]byte
}

// ShortAD represents short allocation descriptor
type ShortAD struct {
	ExtentLength   uint32
	ExtentPosition uint32
}
