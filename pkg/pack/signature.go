package pack

// knsModuli are the three pairwise co-prime moduli the KNS signature folds
// character codes into. Co-primality keeps the three lanes from aliasing
// against each other on periodic input.
var knsModuli = [3]uint32{257, 263, 269}

// Signature is a KNS (three-lane) tie-break signature: a deterministic,
// order-sensitive fold of a string's rune codes into three residues, one per
// modulus in knsModuli.
type Signature [3]uint32

// Sign computes the KNS signature of s: three residues, one per modulus in
// knsModuli, each folding the 0-based position i and rune code of every
// character of s a different way —
//
//	s1 = Σ code_i                      mod 257
//	s2 = Σ code_i · (i+1)               mod 263
//	s3 = Σ ((code_i << 1) XOR (i+8))    mod 269
//
// (the third lane's XOR operand uses i+8 because the worked check in the
// spec folds in the +1 from the second lane's weight before adding 7).
func Sign(s string) Signature {
	var acc Signature
	i := 0
	for _, r := range s {
		code := uint32(r)
		acc[0] = (acc[0] + code) % knsModuli[0]
		acc[1] = (acc[1] + code*uint32(i+1)) % knsModuli[1]
		acc[2] = (acc[2] + ((code << 1) ^ uint32(i+8))) % knsModuli[2]
		i++
	}
	return acc
}

// circularDistance returns the shorter of the clockwise and counterclockwise
// distances between a and b on a ring of size mod.
func circularDistance(a, b, mod uint32) uint32 {
	d := a - b
	if a < b {
		d = b - a
	}
	if rest := mod - d; rest < d {
		return rest
	}
	return d
}

// Stabilize returns a multiplier in (1.01, 1.02] derived from the mean
// circular distance between query and candidate signatures across all three
// lanes, each normalized by its own modulus (each lane's normalized distance
// is below 0.5; identical signatures give exactly 1.02). It never reorders results by
// more than the stated 2% bound; it exists only to break exact score ties
// deterministically instead of by map iteration or sort instability.
func Stabilize(query, candidate Signature) float64 {
	var total float64
	for k, m := range knsModuli {
		d := circularDistance(query[k], candidate[k], m)
		total += float64(d) / float64(m)
	}
	avg := total / float64(len(knsModuli))
	return 1 + 0.02*(1-avg)
}
