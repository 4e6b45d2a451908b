package vault

import (
	"strconv"
	"strings"

	"stablemint/crypto"
)

var (
	collateralTypePrefix = []byte("vault/type/")
	priceFeedPrefix      = []byte("vault/feed/")
	vaultRecordPrefix    = []byte("vault/rec/")
	ownerIndexPrefix     = []byte("vault/owner/")
	vaultSequenceKey     = []byte("vault/seq")
	oracleSetKey         = []byte("vault/oracles")
)

func collateralTypeKey(code string) []byte {
	trimmed := normalizeCode(code)
	buf := make([]byte, len(collateralTypePrefix)+len(trimmed))
	copy(buf, collateralTypePrefix)
	copy(buf[len(collateralTypePrefix):], trimmed)
	return buf
}

func priceFeedKey(code string) []byte {
	trimmed := normalizeCode(code)
	buf := make([]byte, len(priceFeedPrefix)+len(trimmed))
	copy(buf, priceFeedPrefix)
	copy(buf[len(priceFeedPrefix):], trimmed)
	return buf
}

func vaultRecordKey(owner crypto.Address, id uint64) []byte {
	suffix := owner.Hex() + "/" + strconv.FormatUint(id, 10)
	buf := make([]byte, len(vaultRecordPrefix)+len(suffix))
	copy(buf, vaultRecordPrefix)
	copy(buf[len(vaultRecordPrefix):], suffix)
	return buf
}

func ownerIndexKey(owner crypto.Address) []byte {
	suffix := owner.Hex()
	buf := make([]byte, len(ownerIndexPrefix)+len(suffix))
	copy(buf, ownerIndexPrefix)
	copy(buf[len(ownerIndexPrefix):], suffix)
	return buf
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
