package vietqr

import (
	"fmt"
	"strings"
)

// EMVCo merchant-presented QR field IDs used by the NAPAS VietQR profile.
const (
	idPayloadFormat       = "00"
	idInitiationMethod    = "01"
	idMerchantAccountInfo = "38"
	idCurrency            = "53"
	idAmount              = "54"
	idCountry             = "58"
	idAdditionalData      = "62"
	idCRC                 = "63"

	napasGUID      = "A000000727"
	serviceIBFTTA  = "QRIBFTTA"
	currencyVND    = "704"
	countryVietnam = "VN"
)

// tlv renders one id-length-value element. Lengths are two decimal digits
// per the EMVCo spec.
func tlv(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// buildPayload assembles the full VietQR payload for a bank transfer to
// bin/account with a fixed amount and a reference carried in the purpose
// field. The CRC element covers everything up to and including its own
// "6304" prefix.
func buildPayload(bin, account, amount, reference string) string {
	var b strings.Builder
	b.WriteString(tlv(idPayloadFormat, "01"))
	b.WriteString(tlv(idInitiationMethod, "12")) // dynamic: one payment per code

	beneficiary := tlv("00", bin) + tlv("01", account)
	merchantInfo := tlv("00", napasGUID) + tlv("01", beneficiary) + tlv("02", serviceIBFTTA)
	b.WriteString(tlv(idMerchantAccountInfo, merchantInfo))

	b.WriteString(tlv(idCurrency, currencyVND))
	if amount != "" {
		b.WriteString(tlv(idAmount, amount))
	}
	b.WriteString(tlv(idCountry, countryVietnam))
	if reference != "" {
		b.WriteString(tlv(idAdditionalData, tlv("08", reference)))
	}

	b.WriteString(idCRC + "04")
	payload := b.String()
	return payload + crc16(payload)
}

// crc16 implements CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF) as
// required by EMVCo, returning four uppercase hex digits.
func crc16(s string) string {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return fmt.Sprintf("%04X", crc)
}
