//go:build tinygo

package identity

import (
	"errors"

	"dwrange.dev/driver/otp"
)

// rowGroupID and rowNodeID are the two user OTP rows this firmware
// reserves for the identity store. OTP rows can only have bits set,
// never cleared, so OTPStore.WriteU16 rejects a write that would
// require clearing a bit already programmed.
const (
	rowGroupID uint16 = otp.FirstUserRow
	rowNodeID  uint16 = otp.FirstUserRow + 1
)

// OTPStore persists uwb_gid/uwb_nid in rp2350 one-time-programmable
// memory via driver/otp.
type OTPStore struct{}

func OpenOTPStore() OTPStore {
	return OTPStore{}
}

func rowFor(key string) (uint16, error) {
	switch key {
	case keyGroupID:
		return rowGroupID, nil
	case keyNodeID:
		return rowNodeID, nil
	default:
		return 0, errors.New("identity: unknown key")
	}
}

func (OTPStore) ReadU16(key string) (uint16, error) {
	row, err := rowFor(key)
	if err != nil {
		return 0, err
	}
	v, err := otp.ReadRow(row)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func (OTPStore) WriteU16(key string, v uint16) error {
	row, err := rowFor(key)
	if err != nil {
		return err
	}
	old, err := otp.ReadRow(row)
	if err != nil {
		return err
	}
	if old&^uint32(v) != 0 {
		return errors.New("identity: value requires clearing an OTP bit, use a fresh row")
	}
	if old == uint32(v) {
		return nil
	}
	return otp.WriteRow(row, uint32(v))
}
