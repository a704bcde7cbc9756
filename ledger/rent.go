package ledger

// Rent is the default storage reclamation schedule.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
	// Overhead is charged per account on top of its data length.
	Overhead uint64
}

// DefaultRent is 3480 lamports per byte-year, exempt at two years, with a
// 128-byte account overhead.
var DefaultRent = Rent{LamportsPerByteYear: 3480, ExemptionYears: 2, Overhead: 128}

func (r Rent) MinimumBalance(dataLen int) uint64 {
	return (r.Overhead + uint64(dataLen)) * r.LamportsPerByteYear * r.ExemptionYears
}
