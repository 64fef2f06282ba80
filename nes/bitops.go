package nes

// Some common bitwise manipulations.

func setBit(target byte, bit uint) byte {
	return target | (1 << bit)
}

func clearBit(target byte, bit uint) byte {
	return target &^ (1 << bit)
}

// bitHigh returns whether the bit specified is set high in value,
// e.g. bitHigh(64, 6) == true (64 = 0b01000000, so bit 6 is high).
func bitHigh(value byte, bit uint) bool {
	return value&(1<<bit) > 0
}

// bitLow returns whether the bit specified is set low in value.
func bitLow(value byte, bit uint) bool {
	return value&(1<<bit) == 0
}
