package brain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/wonny/salescast/internal/contracts"
)

// fingerprint hashes the categorized rows; equal inputs give equal heat tables
func fingerprint(rows []contracts.CategorizedSales) string {
	h := sha256.New()
	var buf [8 * 7]byte
	for _, r := range rows {
		binary.LittleEndian.PutUint64(buf[0:], uint64(r.MonthIndex))
		binary.LittleEndian.PutUint64(buf[8:], uint64(r.ShopID))
		binary.LittleEndian.PutUint64(buf[16:], uint64(r.ItemID))
		binary.LittleEndian.PutUint64(buf[24:], uint64(r.CategoryID))
		binary.LittleEndian.PutUint64(buf[32:], math.Float64bits(r.AvgSalesPrice))
		binary.LittleEndian.PutUint64(buf[40:], math.Float64bits(r.TotalSales))
		binary.LittleEndian.PutUint64(buf[48:], uint64(r.TotalRecordCount))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
