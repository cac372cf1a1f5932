package hal

// RegAddress is an offset into a device register space. Device packages
// declare their register maps as RegAddress constants.
type RegAddress uint8

// Direction is the command bit carried by the first byte of a register transaction.
type Direction uint8

const (
	Write Direction = 0x00
	Read  Direction = 0x80
)

// Frame returns the address byte sent on the wire for the given direction.
func (obj RegAddress) Frame(dir Direction) byte {
	return byte(obj)&^byte(Read) | byte(dir)
}

func (obj RegAddress) ToByte() byte {
	return byte(obj)
}
