// Package otp provides access to the one-time-programmable memory on
// the rp2350 microcontroller. A handful of rows in [FirstUserRow,
// LastUserRow] are available for application data; see [ReadRow] and
// [WriteRow].
package otp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"
)

const (
	// Predefined OTP rows.
	CHIPID0 = 0x000
	RANDID0 = 0x004

	// Flags.
	_IS_WRITE = 0x1

	// Return codes.
	_BOOTROM_OK                             = 0
	_BOOTROM_ERROR_NOT_PERMITTED            = -4
	_BOOTROM_ERROR_BAD_ALIGNMENT            = -11
	_BOOTROM_ERROR_UNSUPPORTED_MODIFICATION = -18

	FirstUserRow = 0x0c0
	LastUserRow  = 0xf3f
	numRows      = 4096
)

type bootromError struct {
	errCode int
}

func (b *bootromError) Error() string {
	switch b.errCode {
	case _BOOTROM_ERROR_NOT_PERMITTED:
		return "otp: not permitted"
	case _BOOTROM_ERROR_UNSUPPORTED_MODIFICATION:
		return "otp: unsupported modification"
	case _BOOTROM_ERROR_BAD_ALIGNMENT:
		return "otp: bad alignment"
	default:
		return fmt.Sprintf("otp: unknown error: %d", b.errCode)
	}
}

func read(buf []byte, row uint16) error {
	return otpAccess(buf, row, 0)
}

func write(buf []uint8, row uint16) error {
	return otpAccess(buf, row, _IS_WRITE)
}

func writeRow(row uint16, val uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], val)
	return write(buf[:], row)
}

func readRow(row uint16) (uint32, error) {
	var buf [4]byte
	if err := read(buf[:4], row); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadRow reads the raw 24-bit application value of a user OTP row;
// the upper byte of the result is always zero. The row must be in
// [FirstUserRow, LastUserRow].
func ReadRow(row uint16) (uint32, error) {
	if row < FirstUserRow || LastUserRow < row {
		return 0, errors.New("otp: row out of user range")
	}
	return readRow(row)
}

// WriteRow writes the low 24 bits of v to a user OTP row; rows are 24
// bits wide, so the upper byte of v is not stored. Bits already programmed to 1 cannot be cleared, so callers that
// update a row in place must first confirm the new value is a
// superset of the old one, or use a fresh row.
func WriteRow(row uint16, v uint32) error {
	if row < FirstUserRow || LastUserRow < row {
		return errors.New("otp: row out of user range")
	}
	return writeRow(row, v)
}

func otpAccess(buf []byte, row uint16, flags int) error {
	rowAndFlags := (uint32(flags) << 16) | uint32(row)
	buf32 := make([]uint32, (len(buf)+3)/4)
	ptr := (*byte)(unsafe.Pointer(unsafe.SliceData(buf32)))
	aligned := unsafe.Slice(ptr, len(buf32)*4)
	copy(aligned, buf)
	res := otp_access(unsafe.SliceData(aligned), uint32(len(aligned)), rowAndFlags)
	copy(buf, aligned)
	return toErr(int(res))
}

var otp_access func(buf *uint8, buf_len, row_and_flags uint32) int

func toErr(res int) error {
	if res == 0 {
		return nil
	}
	return &bootromError{res}
}
