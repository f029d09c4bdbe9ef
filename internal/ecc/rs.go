package ecc

import "errors"

// ErrTooManyErrors is returned when a codeword has more byte errors than the
// parity can locate and correct (more than nsym/2 symbol errors).
var ErrTooManyErrors = errors.New("ecc: too many errors to correct")

// generator returns g(x) = product_{i=0}^{nsym-1} (x - alpha^i), the RS
// generator polynomial for nsym parity symbols, highest degree term first.
func generator(nsym int) []byte {
	g := []byte{1}
	for i := 0; i < nsym; i++ {
		g = polyMul(g, []byte{1, gfPow(2, i)})
	}
	return g
}

// encodeSymbols appends nsym parity bytes to msg and returns just the parity.
// msg is treated as the high-degree coefficients of a systematic codeword.
func encodeSymbols(msg []byte, nsym int) []byte {
	gen := generator(nsym)
	remainder := make([]byte, len(msg)+nsym)
	copy(remainder, msg)

	for i := 0; i < len(msg); i++ {
		coef := remainder[i]
		if coef == 0 {
			continue
		}
		for j, gc := range gen {
			if gc == 0 {
				continue
			}
			remainder[i+j] ^= gfMul(gc, coef)
		}
	}
	return remainder[len(msg):]
}

// syndromes computes the nsym syndrome values of codeword (msg || parity),
// highest degree first. All-zero syndromes mean no errors.
func syndromes(codeword []byte, nsym int) []byte {
	s := make([]byte, nsym)
	for i := 0; i < nsym; i++ {
		s[i] = polyEval(codeword, gfPow(2, i))
	}
	return s
}

// berlekampMassey finds the error locator polynomial from the syndromes.
// Returns the locator (highest degree first) or an error if its degree
// exceeds nsym/2 (uncorrectable).
func berlekampMassey(syn []byte, nsym int) ([]byte, error) {
	errLoc := []byte{1}
	oldLoc := []byte{1}

	for i := 0; i < nsym; i++ {
		oldLoc = append(oldLoc, 0)
		delta := syn[i]
		for j := 1; j < len(errLoc); j++ {
			delta ^= gfMul(errLoc[len(errLoc)-1-j], syn[i-j])
		}
		if delta == 0 {
			continue
		}
		if len(oldLoc) > len(errLoc) {
			newLoc := polyScale(oldLoc, delta)
			oldLoc = polyScale(errLoc, gfInverse(delta))
			errLoc = newLoc
		}
		errLoc = polyXor(errLoc, polyScale(oldLoc, delta))
	}

	errLoc = stripLeadingZeros(errLoc)
	errs := len(errLoc) - 1
	if errs*2 > nsym {
		return nil, ErrTooManyErrors
	}
	return errLoc, nil
}

func polyScale(p []byte, x byte) []byte {
	out := make([]byte, len(p))
	for i, c := range p {
		out[i] = gfMul(c, x)
	}
	return out
}

func polyXor(p, q []byte) []byte {
	if len(p) < len(q) {
		p, q = q, p
	}
	out := make([]byte, len(p))
	copy(out, p)
	off := len(p) - len(q)
	for i, c := range q {
		out[off+i] ^= c
	}
	return out
}

func stripLeadingZeros(p []byte) []byte {
	i := 0
	for i < len(p)-1 && p[i] == 0 {
		i++
	}
	return p[i:]
}

// findErrorPositions runs a Chien search over the codeword of length n,
// returning the indices (0 = most significant / first byte) where errLoc
// has a root. errLoc's roots lie at the inverses of the error locator values
// X_k = alpha^(n-1-pos), so each candidate position's root is tested at
// alpha^-(n-1-pos), not at alpha^pos directly. Returns an error if the
// number of roots found does not match the locator's degree (uncorrectable —
// errors outnumber parity capacity or are not isolatable).
func findErrorPositions(errLoc []byte, n int) ([]int, error) {
	errs := len(errLoc) - 1
	var positions []int
	for pos := 0; pos < n; pos++ {
		degree := n - 1 - pos
		if polyEval(errLoc, gfPow(2, -degree)) == 0 {
			positions = append(positions, pos)
		}
	}
	if len(positions) != errs {
		return nil, ErrTooManyErrors
	}
	return positions, nil
}

// correctErrors applies Forney's algorithm to recover the magnitude of each
// error at the given positions (0 = first/most-significant byte of codeword)
// and XORs them into codeword in place. The errata locator used by Forney's
// formula is rebuilt directly from positions (errataLocator), the standard
// approach — it avoids depending on berlekampMassey's internal term order.
func correctErrors(codeword []byte, syn []byte, positions []int) error {
	n := len(codeword)
	errs := len(positions)

	// coefDegree[i] is the power-of-x degree of the error term at
	// positions[i]: position 0 (first byte) carries the highest degree,
	// n-1.
	coefDegree := make([]int, errs)
	x := make([]byte, errs) // X[i] = alpha^coefDegree[i], the error locator root
	for i, pos := range positions {
		coefDegree[i] = n - 1 - pos
		x[i] = gfPow(2, coefDegree[i])
	}

	errataLoc := errataLocator(coefDegree)
	errEval := errataEvaluator(syn, errataLoc, errs)

	for i, pos := range positions {
		xInv := gfInverse(x[i])

		var denom byte = 1
		for j := range x {
			if j == i {
				continue
			}
			denom = gfMul(denom, 1^gfMul(xInv, x[j]))
		}
		if denom == 0 {
			return ErrTooManyErrors
		}

		// denom equals Sigma'(X_i^-1) / X_i (the X_i factors cancel against
		// the X_i^(1-fcr) term of the textbook Forney formula since fcr=0
		// here), so the magnitude is the errata evaluator alone over denom,
		// with no extra X_i multiply.
		y := polyEval(errEval, xInv)
		magnitude := gfDiv(y, denom)
		codeword[pos] ^= magnitude
	}
	return nil
}

// errataLocator builds product_i (1 + alpha^degrees[i] * x), highest degree
// first, from the degrees of the known (or located) error positions.
func errataLocator(degrees []int) []byte {
	loc := []byte{1}
	for _, d := range degrees {
		loc = polyMul(loc, []byte{gfPow(2, d), 1})
	}
	return loc
}

// errataEvaluator computes Omega(x) = (S(x) * errataLoc(x)) mod x^(errs+1),
// highest degree first, where S(x) is the syndrome polynomial built from syn
// (syn[0..] = S_0..S_{nsym-1}, ascending power of alpha, so reversed here to
// become coefficients highest-degree-first before multiplying).
func errataEvaluator(syn []byte, errataLoc []byte, errs int) []byte {
	product := polyMul(reverse(syn), errataLoc)
	keep := errs + 1
	if len(product) > keep {
		product = product[len(product)-keep:]
	}
	return product
}

func reverse(p []byte) []byte {
	out := make([]byte, len(p))
	for i, c := range p {
		out[len(p)-1-i] = c
	}
	return out
}
