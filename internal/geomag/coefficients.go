// Package geomag evaluates the World Magnetic Model: a degree-12 spherical
// harmonic expansion of the Earth's main field with linear secular variation.
//
// Coefficients are read from the WMM.COF record format. When no usable
// coefficient source is available the built-in WMM-2010 table is used, so
// model construction never fails.
package geomag

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// MaxDegree is the highest degree (and order) of the expansion.
const MaxDegree = 12

const size = MaxDegree + 1

// numRecords is the number of (n, m) pairs with 1 <= n <= 12 and 0 <= m <= n.
const numRecords = (size*(size+1))/2 - 1

// ErrMalformedCoefficients is wrapped by every CoefficientError.
var ErrMalformedCoefficients = errors.New("malformed coefficient source")

// CoefficientError describes why a coefficient source was rejected.
type CoefficientError struct {
	Line   int // 1-based, 0 when not tied to a line
	Reason string
}

func (e *CoefficientError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("coefficients line %d: %s", e.Line, e.Reason)
	}
	return "coefficients: " + e.Reason
}

func (e *CoefficientError) Unwrap() error {
	return ErrMalformedCoefficients
}

// matrix holds coefficients packed the WMM way: g(n,m) at [m][n] and, for
// m > 0, h(n,m) at [n][m-1]. Both halves fit because g only uses m <= n and
// h only uses m-1 < n.
type matrix [size][size]float64

// Coefficients is an immutable Gauss coefficient set for one model epoch.
type Coefficients struct {
	Epoch    float64 // decimal year
	Model    string  // e.g. "WMM-2010"
	Released string  // release date as written in the header

	main matrix // g, h in nT
	rate matrix // dg/dt, dh/dt in nT/year
}

// G returns the main-field coefficient g(n,m).
func (c *Coefficients) G(n, m int) float64 { return c.main[m][n] }

// H returns h(n,m); zero for m == 0.
func (c *Coefficients) H(n, m int) float64 {
	if m == 0 {
		return 0
	}
	return c.main[n][m-1]
}

// GDot returns the secular variation of g(n,m).
func (c *Coefficients) GDot(n, m int) float64 { return c.rate[m][n] }

// HDot returns the secular variation of h(n,m); zero for m == 0.
func (c *Coefficients) HDot(n, m int) float64 {
	if m == 0 {
		return 0
	}
	return c.rate[n][m-1]
}

// ParseCoefficients reads a WMM.COF stream: a header "epoch model date",
// then one "n m g h dg/dt dh/dt" record per line, terminated by a line whose
// first field starts with 9999. Every (n, m) pair up to degree 12 must be
// present exactly once.
func ParseCoefficients(r io.Reader) (*Coefficients, error) {
	scanner := bufio.NewScanner(r)
	c := &Coefficients{}

	var (
		lineNo     int
		haveHeader bool
		terminated bool
		seen       [size][size]bool
		count      int
	)

	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if !haveHeader {
			if len(fields) < 2 {
				return nil, &CoefficientError{Line: lineNo, Reason: "header needs epoch and model name"}
			}
			epoch, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, &CoefficientError{Line: lineNo, Reason: fmt.Sprintf("invalid epoch %q", fields[0])}
			}
			c.Epoch = epoch
			c.Model = fields[1]
			if len(fields) > 2 {
				c.Released = fields[2]
			}
			haveHeader = true
			continue
		}

		if strings.HasPrefix(fields[0], "9999") {
			terminated = true
			break
		}

		if len(fields) != 6 {
			return nil, &CoefficientError{Line: lineNo, Reason: fmt.Sprintf("expected 6 fields, got %d", len(fields))}
		}
		n, errN := strconv.Atoi(fields[0])
		m, errM := strconv.Atoi(fields[1])
		if errN != nil || errM != nil {
			return nil, &CoefficientError{Line: lineNo, Reason: "degree and order must be integers"}
		}
		if n < 1 || n > MaxDegree || m < 0 || m > n {
			return nil, &CoefficientError{Line: lineNo, Reason: fmt.Sprintf("degree/order (%d,%d) out of range", n, m)}
		}
		if seen[n][m] {
			return nil, &CoefficientError{Line: lineNo, Reason: fmt.Sprintf("duplicate record (%d,%d)", n, m)}
		}

		var vals [4]float64
		for i := range vals {
			v, err := strconv.ParseFloat(fields[2+i], 64)
			if err != nil {
				return nil, &CoefficientError{Line: lineNo, Reason: fmt.Sprintf("invalid value %q", fields[2+i])}
			}
			vals[i] = v
		}

		c.main[m][n] = vals[0]
		c.rate[m][n] = vals[2]
		if m != 0 {
			c.main[n][m-1] = vals[1]
			c.rate[n][m-1] = vals[3]
		}
		seen[n][m] = true
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading coefficients: %w", err)
	}

	switch {
	case !haveHeader:
		return nil, &CoefficientError{Reason: "empty source"}
	case !terminated:
		return nil, &CoefficientError{Line: lineNo, Reason: "missing 9999 terminator"}
	case count != numRecords:
		return nil, &CoefficientError{Reason: fmt.Sprintf("expected %d records, got %d", numRecords, count)}
	}
	return c, nil
}

//go:embed wmm2010.cof
var defaultCOF string

var (
	defaultOnce sync.Once
	defaultSet  *Coefficients
)

// DefaultCoefficients returns the built-in WMM-2010 table. It panics if the
// embedded table is corrupt, which is a build defect.
func DefaultCoefficients() *Coefficients {
	defaultOnce.Do(func() {
		c, err := ParseCoefficients(strings.NewReader(defaultCOF))
		if err != nil {
			panic(fmt.Sprintf("geomag: embedded WMM table: %v", err))
		}
		defaultSet = c
	})
	return defaultSet
}
